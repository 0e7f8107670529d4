package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/studybuddy/analysis-api/internal/domain"
)

// ResultStore persists completed analysis results. It is the durable
// side of the write-back result cache: entries are written in bulk at
// controlled shutdown and read back at startup.
type ResultStore interface {
	// SaveEntry appends one completed cache entry for the user.
	SaveEntry(ctx context.Context, userID uuid.UUID, entry *domain.CacheEntry) error

	// ListRecent returns up to perUserLimit most recent entries for
	// every user that has any, newest first within each user.
	ListRecent(ctx context.Context, perUserLimit int) (map[uuid.UUID][]*domain.CacheEntry, error)

	// TrimToRecent deletes the user's stored entries beyond the keep
	// most recent ones, making durable retention mirror the in-memory
	// cap.
	TrimToRecent(ctx context.Context, userID uuid.UUID, keep int) error

	// WithTx returns a new ResultStore instance that uses the provided
	// transaction.
	WithTx(tx *sql.Tx) ResultStore
}
