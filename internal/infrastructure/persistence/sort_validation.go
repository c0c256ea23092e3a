package persistence

import (
	"strings"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// MedicineSortFields contains allowed sort fields for medicines
var MedicineSortFields = map[string]bool{
	"id":            true,
	"created_at":    true,
	"updated_at":    true,
	"code":          true,
	"name":          true,
	"category":      true,
	"stock_total":   true,
	"stock_minimum": true,
}

// BatchSortFields contains allowed sort fields for batches
var BatchSortFields = map[string]bool{
	"id":                 true,
	"created_at":         true,
	"updated_at":         true,
	"batch_number":       true,
	"expiry_date":        true,
	"received_date":      true,
	"available_quantity": true,
	"status":             true,
}

// OpnameSortFields contains allowed sort fields for stock opnames
var OpnameSortFields = map[string]bool{
	"id":          true,
	"created_at":  true,
	"updated_at":  true,
	"number":      true,
	"opname_date": true,
	"status":      true,
}

// DestructionSortFields contains allowed sort fields for destructions
var DestructionSortFields = map[string]bool{
	"id":               true,
	"created_at":       true,
	"updated_at":       true,
	"number":           true,
	"destruction_date": true,
	"status":           true,
}

// ScanLogSortFields contains allowed sort fields for scan logs
var ScanLogSortFields = map[string]bool{
	"id":         true,
	"scanned_at": true,
	"code":       true,
	"result":     true,
}

// AuditEntrySortFields contains allowed sort fields for audit entries
var AuditEntrySortFields = map[string]bool{
	"id":          true,
	"occurred_at": true,
	"action":      true,
}
