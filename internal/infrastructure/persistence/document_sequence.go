package persistence

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// nextDocumentSequence finds the highest number issued under prefix and
// returns the following sequence. Numbers have the form PREFIX-YYYYMMDD-NNNN.
// db must be the transaction that will insert the document: on postgres the
// prefix is held under a transaction-scoped advisory lock until it commits.
func nextDocumentSequence(ctx context.Context, db *gorm.DB, model any, prefix string) (int, error) {
	db = db.WithContext(ctx)
	if err := lockDocumentPrefix(db, prefix); err != nil {
		return 0, err
	}

	var numbers []string
	if err := db.Model(model).
		Where("number LIKE ?", prefix+"%").
		Order("number DESC").
		Limit(1).
		Pluck("number", &numbers).Error; err != nil {
		return 0, fmt.Errorf("find last document number: %w", err)
	}

	seq := 1
	if len(numbers) > 0 {
		var last int
		if _, err := fmt.Sscanf(strings.TrimPrefix(numbers[0], prefix), "%04d", &last); err == nil {
			seq = last + 1
		}
	}
	return seq, nil
}

// lockDocumentPrefix serialises numbering per prefix. SQLite already
// serialises writers and has no advisory locks, so it is skipped there.
func lockDocumentPrefix(db *gorm.DB, prefix string) error {
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	if err := db.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", prefix).Error; err != nil {
		return fmt.Errorf("lock document prefix %s: %w", prefix, err)
	}
	return nil
}
