package shared

import "fmt"

// Error codes of the ledger error taxonomy
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeInsufficientStock   = "INSUFFICIENT_STOCK"
	CodeInvalidTransition   = "INVALID_STATE_TRANSITION"
	CodeStaleReference      = "STALE_REFERENCE"
	CodeNotFound            = "NOT_FOUND"
	CodeAlreadyExists       = "ALREADY_EXISTS"
	CodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
)

// Report storage error codes
const (
	CodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	CodeUploadURLFailed    = "UPLOAD_URL_FAILED"
	CodeStorageCheckFailed = "STORAGE_CHECK_FAILED"
	CodeUploadNotFound     = "UPLOAD_NOT_FOUND"
)

// DomainError represents a domain-level error.
// EntityID identifies the offending entity when there is one, so callers can
// point the user at the exact batch or document that needs attention.
type DomainError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	EntityID string `json:"entity_id,omitempty"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target is a DomainError with the same code.
// It lets callers write errors.Is(err, shared.ErrNotFound).
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithEntity returns a copy of the error bound to an entity id
func (e *DomainError) WithEntity(id string) *DomainError {
	return &DomainError{Code: e.Code, Message: e.Message, EntityID: id}
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError(CodeNotFound, "Resource not found")
	ErrAlreadyExists       = NewDomainError(CodeAlreadyExists, "Resource already exists")
	ErrValidation          = NewDomainError(CodeValidation, "Invalid input provided")
	ErrInsufficientStock   = NewDomainError(CodeInsufficientStock, "Insufficient stock available")
	ErrInvalidTransition   = NewDomainError(CodeInvalidTransition, "Operation not allowed in current state")
	ErrStaleReference      = NewDomainError(CodeStaleReference, "Referenced record is no longer active")
	ErrConcurrencyConflict = NewDomainError(CodeConcurrencyConflict, "Resource was modified by another process")
)

// NewValidationError reports malformed input caught before any mutation
func NewValidationError(format string, args ...any) *DomainError {
	return NewDomainError(CodeValidation, fmt.Sprintf(format, args...))
}

// NewNotFoundError reports an unknown id or identifier
func NewNotFoundError(entity, id string) *DomainError {
	return &DomainError{
		Code:     CodeNotFound,
		Message:  fmt.Sprintf("%s not found", entity),
		EntityID: id,
	}
}

// NewInsufficientStockError reports a request that would drive a batch below zero
func NewInsufficientStockError(batchID string, requested, available int64) *DomainError {
	return &DomainError{
		Code:     CodeInsufficientStock,
		Message:  fmt.Sprintf("Insufficient stock in batch %s: requested %d, available %d", batchID, requested, available),
		EntityID: batchID,
	}
}

// NewInvalidTransitionError reports a workflow action called out of order
func NewInvalidTransitionError(kind, entityID, action, from string) *DomainError {
	return &DomainError{
		Code:     CodeInvalidTransition,
		Message:  fmt.Sprintf("Cannot %s %s in status %s", action, kind, from),
		EntityID: entityID,
	}
}

// NewStaleReferenceError reports a batch that was removed after a workflow referenced it
func NewStaleReferenceError(batchID string) *DomainError {
	return &DomainError{
		Code:     CodeStaleReference,
		Message:  fmt.Sprintf("Batch %s is no longer active", batchID),
		EntityID: batchID,
	}
}
