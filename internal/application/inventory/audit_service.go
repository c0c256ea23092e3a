package inventory

import (
	"context"
	"time"

	"github.com/pharmaledger/backend/internal/domain/inventory"
	"github.com/pharmaledger/backend/internal/domain/shared"
)

// AuditService answers read-only questions about the scan log and the
// ledger audit trail
type AuditService struct {
	scanLogRepo inventory.ScanLogRepository
	auditRepo   inventory.AuditRepository
	now         func() time.Time
}

// scanTopLimit bounds the most-scanned batch and medicine lists
const scanTopLimit = 10

// NewAuditService creates a new AuditService
func NewAuditService(scanLogRepo inventory.ScanLogRepository, auditRepo inventory.AuditRepository) *AuditService {
	return &AuditService{
		scanLogRepo: scanLogRepo,
		auditRepo:   auditRepo,
		now:         time.Now,
	}
}

// ScanAnalytics summarises scan activity over period (today, week, month,
// year or all). The daily trend always ends today.
func (s *AuditService) ScanAnalytics(ctx context.Context, period string) (*ScanAnalyticsResponse, error) {
	p, err := inventory.ParseAnalyticsPeriod(period)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	days := p.TrendDays()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	trendSince := today.AddDate(0, 0, -(days - 1))

	analytics, err := s.scanLogRepo.Analytics(ctx, inventory.ScanAnalyticsQuery{
		Since:      p.Since(now),
		TrendSince: trendSince,
		Top:        scanTopLimit,
	})
	if err != nil {
		return nil, err
	}
	analytics.Trend = inventory.FillTrend(analytics.Trend, trendSince, days)
	return ToScanAnalyticsResponse(p, p.Since(now), analytics), nil
}

// ListScanLogs lists scan attempts, newest first
func (s *AuditService) ListScanLogs(ctx context.Context, filter ListFilter) ([]ScanLogResponse, int64, error) {
	if filter.Result != "" && !inventory.ScanResult(filter.Result).IsValid() {
		return nil, 0, shared.NewValidationError("unknown scan result %q", filter.Result)
	}
	f := filter.toFilter()
	total, err := s.scanLogRepo.Count(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	logs, err := s.scanLogRepo.FindAll(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	return ToScanLogResponses(logs), total, nil
}

// ListAuditEntries lists the audit trail of one batch or workflow document
func (s *AuditService) ListAuditEntries(ctx context.Context, kind, id string, filter ListFilter) ([]AuditEntryResponse, int64, error) {
	subject, err := inventory.ParseAuditSubject(kind, id)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.auditRepo.CountBySubject(ctx, subject)
	if err != nil {
		return nil, 0, err
	}
	entries, err := s.auditRepo.FindBySubject(ctx, subject, filter.toFilter())
	if err != nil {
		return nil, 0, err
	}
	return ToAuditEntryResponses(entries), total, nil
}
