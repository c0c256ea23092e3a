package telemetry

import (
	"context"
	"fmt"

	"github.com/pharmaledger/backend/internal/domain/inventory"
	"github.com/pharmaledger/backend/internal/domain/shared"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// LedgerMetrics turns delivered ledger events into counters. It is
// subscribed to the event bus like any other handler.
type LedgerMetrics struct {
	events    metric.Int64Counter
	units     metric.Int64Counter
	expired   metric.Int64Counter
	stockLow  metric.Int64Counter
	sweepRuns metric.Int64Counter
}

var _ shared.EventHandler = (*LedgerMetrics)(nil)

func NewLedgerMetrics(meter metric.Meter) (*LedgerMetrics, error) {
	m := &LedgerMetrics{}
	var err error
	if m.events, err = meter.Int64Counter("pharmacy.ledger.events",
		metric.WithDescription("Ledger events delivered, by type")); err != nil {
		return nil, fmt.Errorf("events counter: %w", err)
	}
	if m.units, err = meter.Int64Counter("pharmacy.ledger.units",
		metric.WithDescription("Units moved in or out of stock, by movement"),
		metric.WithUnit("{unit}")); err != nil {
		return nil, fmt.Errorf("units counter: %w", err)
	}
	if m.expired, err = meter.Int64Counter("pharmacy.batches.expired",
		metric.WithDescription("Batches retired by the expiry sweep")); err != nil {
		return nil, fmt.Errorf("expired counter: %w", err)
	}
	if m.stockLow, err = meter.Int64Counter("pharmacy.medicines.stock_low",
		metric.WithDescription("Times a medicine dropped below its minimum")); err != nil {
		return nil, fmt.Errorf("stock low counter: %w", err)
	}
	if m.sweepRuns, err = meter.Int64Counter("pharmacy.expiry_sweep.runs",
		metric.WithDescription("Expiry sweep runs, by outcome")); err != nil {
		return nil, fmt.Errorf("sweep counter: %w", err)
	}
	return m, nil
}

func (m *LedgerMetrics) EventTypes() []string {
	return nil
}

func (m *LedgerMetrics) Handle(ctx context.Context, event shared.DomainEvent) error {
	m.events.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", event.EventType())))

	switch e := event.(type) {
	case *inventory.BatchReceivedEvent:
		m.addUnits(ctx, "received", e.Quantity)
	case *inventory.BatchAdjustedEvent:
		delta := e.Delta
		if delta < 0 {
			delta = -delta
		}
		m.addUnits(ctx, string(e.Action), delta)
	case *inventory.BatchExpiredEvent:
		m.expired.Add(ctx, 1)
	case *inventory.MedicineStockLowEvent:
		m.stockLow.Add(ctx, 1)
	}
	return nil
}

func (m *LedgerMetrics) addUnits(ctx context.Context, movement string, n int64) {
	if n == 0 {
		return
	}
	m.units.Add(ctx, n, metric.WithAttributes(attribute.String("movement", movement)))
}

// RecordSweep counts one expiry sweep run
func (m *LedgerMetrics) RecordSweep(ctx context.Context, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.sweepRuns.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
