package inventory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pharmaledger/backend/internal/domain/shared"
)

// saveEvents writes domain events to the outbox of the current transaction
func saveEvents(ctx context.Context, repos TransactionalRepositories, events ...shared.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}

	entries := make([]*shared.OutboxEntry, 0, len(events))
	for _, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", event.EventType(), err)
		}
		entries = append(entries, shared.NewOutboxEntry(event, payload))
	}

	if err := repos.OutboxRepo().Save(ctx, entries...); err != nil {
		return fmt.Errorf("save outbox entries: %w", err)
	}
	return nil
}

// flushEvents saves and clears the pending events of the given aggregates
func flushEvents(ctx context.Context, repos TransactionalRepositories, aggregates ...shared.AggregateRoot) error {
	var events []shared.DomainEvent
	for _, agg := range aggregates {
		events = append(events, agg.GetDomainEvents()...)
	}
	if err := saveEvents(ctx, repos, events...); err != nil {
		return err
	}
	for _, agg := range aggregates {
		agg.ClearDomainEvents()
	}
	return nil
}
