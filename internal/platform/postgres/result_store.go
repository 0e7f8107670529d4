package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/studybuddy/analysis-api/internal/domain"
	"github.com/studybuddy/analysis-api/internal/fingerprint"
	"github.com/studybuddy/analysis-api/internal/platform/logger"
	"github.com/studybuddy/analysis-api/internal/store"
)

// PostgresResultStore implements the store.ResultStore interface. Rows
// live in the events table; durable retention is enforced by
// TrimToRecent rather than at write time, mirroring the in-memory
// cache's flush-then-trim discipline.
type PostgresResultStore struct {
	db store.DBTX
}

// Ensure PostgresResultStore implements store.ResultStore interface
var _ store.ResultStore = (*PostgresResultStore)(nil)

// NewPostgresResultStore creates a new PostgreSQL implementation of the
// ResultStore interface.
func NewPostgresResultStore(db store.DBTX) *PostgresResultStore {
	return &PostgresResultStore{
		db: db,
	}
}

// SaveEntry implements store.ResultStore.SaveEntry
func (s *PostgresResultStore) SaveEntry(ctx context.Context, userID uuid.UUID, entry *domain.CacheEntry) error {
	log := logger.FromContext(ctx)

	if entry.Result == nil {
		return fmt.Errorf("%w: entry has no result", store.ErrInvalidEntity)
	}

	resultJSON, err := json.Marshal(entry.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	query := `
		INSERT INTO events (user_id, fingerprint, filename, result, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err = s.db.ExecContext(ctx, query,
		userID,
		entry.Fingerprint.String(),
		entry.Filename,
		resultJSON,
		entry.CreatedAt,
	)
	if err != nil {
		log.Error("failed to save result entry",
			"user_id", userID,
			"fingerprint", entry.Fingerprint,
			"error", err)
		return MapError(err)
	}

	return nil
}

// ListRecent implements store.ResultStore.ListRecent. It uses a window
// function to cap the rows read per user at the database.
func (s *PostgresResultStore) ListRecent(ctx context.Context, perUserLimit int) (map[uuid.UUID][]*domain.CacheEntry, error) {
	query := `
		SELECT user_id, fingerprint, filename, result, created_at
		FROM (
			SELECT user_id, fingerprint, filename, result, created_at,
			       ROW_NUMBER() OVER (PARTITION BY user_id ORDER BY id DESC) AS rn
			FROM events
		) ranked
		WHERE rn <= $1
	`

	rows, err := s.db.QueryContext(ctx, query, perUserLimit)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	entries := make(map[uuid.UUID][]*domain.CacheEntry)
	for rows.Next() {
		var userID uuid.UUID
		var fp, filename string
		var resultJSON []byte
		var entry domain.CacheEntry

		if err := rows.Scan(&userID, &fp, &filename, &resultJSON, &entry.CreatedAt); err != nil {
			return nil, MapError(err)
		}

		entry.Fingerprint = fingerprint.Fingerprint(fp)
		entry.Filename = filename
		if err := json.Unmarshal(resultJSON, &entry.Result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal stored result: %w", err)
		}

		e := entry
		entries[userID] = append(entries[userID], &e)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return entries, nil
}

// TrimToRecent implements store.ResultStore.TrimToRecent
func (s *PostgresResultStore) TrimToRecent(ctx context.Context, userID uuid.UUID, keep int) error {
	log := logger.FromContext(ctx)

	query := `
		DELETE FROM events
		WHERE user_id = $1 AND id NOT IN (
			SELECT id FROM events
			WHERE user_id = $1
			ORDER BY id DESC
			LIMIT $2
		)
	`

	result, err := s.db.ExecContext(ctx, query, userID, keep)
	if err != nil {
		log.Error("failed to trim stored results",
			"user_id", userID,
			"keep", keep,
			"error", err)
		return MapError(err)
	}

	if trimmed, err := result.RowsAffected(); err == nil && trimmed > 0 {
		log.Debug("trimmed stored results",
			"user_id", userID,
			"deleted", trimmed,
			"keep", keep)
	}

	return nil
}

// WithTx implements store.ResultStore.WithTx
func (s *PostgresResultStore) WithTx(tx *sql.Tx) store.ResultStore {
	return &PostgresResultStore{db: tx}
}
