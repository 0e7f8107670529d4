package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/studybuddy/analysis-api/internal/platform/logger"
	"github.com/studybuddy/analysis-api/internal/store"
)

// PostgresActivityStore implements the store.ActivityStore interface.
// Rows are append-only usage accounting records.
type PostgresActivityStore struct {
	db store.DBTX
}

// Ensure PostgresActivityStore implements store.ActivityStore interface
var _ store.ActivityStore = (*PostgresActivityStore)(nil)

// NewPostgresActivityStore creates a new PostgreSQL implementation of
// the ActivityStore interface.
func NewPostgresActivityStore(db store.DBTX) *PostgresActivityStore {
	return &PostgresActivityStore{
		db: db,
	}
}

// Append implements store.ActivityStore.Append
func (s *PostgresActivityStore) Append(ctx context.Context, userID uuid.UUID, tokensUsed int) error {
	log := logger.FromContext(ctx)

	query := `
		INSERT INTO user_activity (user_id, tokens_used, created_at)
		VALUES ($1, $2, $3)
	`

	_, err := s.db.ExecContext(ctx, query, userID, tokensUsed, time.Now().UTC())
	if err != nil {
		log.Error("failed to append usage record",
			"user_id", userID,
			"tokens_used", tokensUsed,
			"error", err)
		return MapError(err)
	}

	return nil
}

// WithTx implements store.ActivityStore.WithTx
func (s *PostgresActivityStore) WithTx(tx *sql.Tx) store.ActivityStore {
	return &PostgresActivityStore{db: tx}
}
