package event

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/pharmaledger/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var outboxColumns = []string{
	"id", "event_id", "event_type", "aggregate_id",
	"aggregate_type", "payload", "status", "retry_count", "max_retries",
	"last_error", "next_retry_at", "processed_at", "created_at", "updated_at",
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	return db, mock
}

func TestGormOutboxRepository_Save(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts entries", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewGormOutboxRepository(db)
		entry := shared.NewOutboxEntry(newTestEvent("TestEvent"), []byte(`{"test": true}`))

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "outbox_events"`)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, repo.Save(ctx, entry))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no entries is a no-op", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewGormOutboxRepository(db)

		require.NoError(t, repo.Save(ctx))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormOutboxRepository_FindPending(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewGormOutboxRepository(db)

	entryID := uuid.New()
	now := time.Now()
	rows := sqlmock.NewRows(outboxColumns).AddRow(
		entryID, uuid.New(), "inventory.batch.adjusted", uuid.New(),
		"Batch", []byte(`{}`), "PENDING", 0, 5,
		"", nil, nil, now, now,
	)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "outbox_events" WHERE status = $1 ORDER BY created_at ASC LIMIT $2`)).
		WithArgs(shared.OutboxStatusPending, 10).
		WillReturnRows(rows)

	entries, err := repo.FindPending(context.Background(), 10)

	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entryID, entries[0].ID)
	assert.Equal(t, "inventory.batch.adjusted", entries[0].EventType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormOutboxRepository_FindRetryable(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewGormOutboxRepository(db)
	before := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "outbox_events" WHERE status = $1 AND next_retry_at <= $2 ORDER BY next_retry_at ASC LIMIT $3`)).
		WithArgs(shared.OutboxStatusFailed, before, 10).
		WillReturnRows(sqlmock.NewRows(outboxColumns))

	entries, err := repo.FindRetryable(context.Background(), before, 10)

	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormOutboxRepository_MarkProcessing(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewGormOutboxRepository(db)

	entryID := uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE SKIP LOCKED`)).
		WillReturnRows(sqlmock.NewRows(outboxColumns).AddRow(
			entryID, uuid.New(), "inventory.batch.adjusted", uuid.New(),
			"Batch", []byte(`{}`), "FAILED", 1, 5,
			"timeout", now, nil, now, now,
		))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "outbox_events" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	claimed, err := repo.MarkProcessing(context.Background(), []uuid.UUID{entryID})

	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, shared.OutboxStatusProcessing, claimed[0].Status)
	assert.Equal(t, 1, claimed[0].RetryCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormOutboxRepository_Update(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewGormOutboxRepository(db)

	entry := shared.NewOutboxEntry(newTestEvent("TestEvent"), []byte(`{}`))
	entry.MarkSent()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "outbox_events"`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Update(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormOutboxRepository_DeleteSentBefore(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewGormOutboxRepository(db)

	before := time.Now().Add(-7 * 24 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "outbox_events" WHERE status = $1 AND processed_at < $2`)).
		WithArgs(shared.OutboxStatusSent, before).
		WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectCommit()

	deleted, err := repo.DeleteSentBefore(context.Background(), before)

	require.NoError(t, err)
	assert.Equal(t, int64(5), deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormOutboxRepository_FindByID(t *testing.T) {
	t.Run("returns nil when missing", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewGormOutboxRepository(db)

		mock.ExpectQuery(`SELECT \* FROM "outbox_events" WHERE id = \$1`).
			WillReturnRows(sqlmock.NewRows(outboxColumns))

		entry, err := repo.FindByID(context.Background(), uuid.New())

		require.NoError(t, err)
		assert.Nil(t, entry)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps the row", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewGormOutboxRepository(db)
		id := uuid.New()
		now := time.Now().UTC()

		mock.ExpectQuery(`SELECT \* FROM "outbox_events" WHERE id = \$1`).
			WillReturnRows(sqlmock.NewRows(outboxColumns).AddRow(
				id, uuid.New(), "inventory.batch.expired", uuid.New(), "Batch",
				[]byte(`{}`), shared.OutboxStatusDead, 5, 5, "broker down", nil, nil, now, now,
			))

		entry, err := repo.FindByID(context.Background(), id)

		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.Equal(t, id, entry.ID)
		assert.True(t, entry.IsDead())
		assert.Equal(t, "broker down", entry.LastError)
	})
}

func TestGormOutboxRepository_FindDead(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewGormOutboxRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT count\(\*\) FROM "outbox_events" WHERE status = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT \* FROM "outbox_events" WHERE status = \$1 ORDER BY updated_at DESC`).
		WillReturnRows(sqlmock.NewRows(outboxColumns).AddRow(
			uuid.New(), uuid.New(), "inventory.batch.recalled", uuid.New(), "Batch",
			[]byte(`{}`), shared.OutboxStatusDead, 5, 5, "timeout", nil, nil, now, now,
		))

	entries, total, err := repo.FindDead(context.Background(), 1, 20)

	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, entries, 1)
	assert.Equal(t, "inventory.batch.recalled", entries[0].EventType)
	assert.NoError(t, mock.ExpectationsWereMet())
}
