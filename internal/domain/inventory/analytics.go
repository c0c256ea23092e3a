package inventory

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pharmaledger/backend/internal/domain/shared"
)

// AnalyticsPeriod selects the window scan analytics are computed over
type AnalyticsPeriod string

const (
	PeriodToday AnalyticsPeriod = "today"
	PeriodWeek  AnalyticsPeriod = "week"
	PeriodMonth AnalyticsPeriod = "month"
	PeriodYear  AnalyticsPeriod = "year"
	PeriodAll   AnalyticsPeriod = "all"
)

// DayLayout is the key format of daily scan counts
const DayLayout = "2006-01-02"

// ParseAnalyticsPeriod parses a period name. Empty means today.
func ParseAnalyticsPeriod(s string) (AnalyticsPeriod, error) {
	p := AnalyticsPeriod(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case "":
		return PeriodToday, nil
	case PeriodToday, PeriodWeek, PeriodMonth, PeriodYear, PeriodAll:
		return p, nil
	}
	return "", shared.NewValidationError("unknown period %q (want today, week, month, year or all)", s)
}

// Since returns the start of the window containing now, or nil for all time.
// Weeks start on Monday.
func (p AnalyticsPeriod) Since(now time.Time) *time.Time {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	var since time.Time
	switch p {
	case PeriodToday:
		since = midnight
	case PeriodWeek:
		offset := (int(midnight.Weekday()) + 6) % 7
		since = midnight.AddDate(0, 0, -offset)
	case PeriodMonth:
		since = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	case PeriodYear:
		since = time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	default:
		return nil
	}
	return &since
}

// TrendDays is how many days the daily trend covers, ending today
func (p AnalyticsPeriod) TrendDays() int {
	if p == PeriodMonth {
		return 30
	}
	return 7
}

// BatchScanCount is how often one batch was scanned
type BatchScanCount struct {
	BatchID     uuid.UUID
	Code        string
	BatchNumber string
	MedicineID  uuid.UUID
	Count       int64
}

// MedicineScanCount is how often the batches of one medicine were scanned
type MedicineScanCount struct {
	MedicineID uuid.UUID
	Code       string
	Name       string
	Count      int64
}

// DailyScanCount is the number of scans on one calendar day (DayLayout)
type DailyScanCount struct {
	Day   string
	Count int64
}

// ScanAnalyticsQuery bounds an analytics read
type ScanAnalyticsQuery struct {
	// Since is the window start; nil covers every log
	Since *time.Time
	// TrendSince is the first day of the daily trend
	TrendSince time.Time
	// Top limits the most-scanned lists
	Top int
}

// ScanAnalytics aggregates the scan log over a window
type ScanAnalytics struct {
	Total        int64
	ByResult     map[ScanResult]int64
	ByMethod     map[ScanMethod]int64
	TopBatches   []BatchScanCount
	TopMedicines []MedicineScanCount
	// Trend only holds days with at least one scan
	Trend []DailyScanCount
}

// FillTrend returns one entry per day from first through days-1 later,
// with zero for days that had no scans.
func FillTrend(counts []DailyScanCount, first time.Time, days int) []DailyScanCount {
	byDay := make(map[string]int64, len(counts))
	for _, c := range counts {
		byDay[c.Day] += c.Count
	}
	out := make([]DailyScanCount, days)
	for i := 0; i < days; i++ {
		day := first.AddDate(0, 0, i).Format(DayLayout)
		out[i] = DailyScanCount{Day: day, Count: byDay[day]}
	}
	return out
}

// BatchStatistics counts live batches by state
type BatchStatistics struct {
	Total int64
	// Available is active with stock left
	Available    int64
	Expired      int64
	Empty        int64
	Recalled     int64
	ExpiringSoon int64
}
