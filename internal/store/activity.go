package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// ActivityStore records per-user usage accounting. Records are
// append-only: one row per successfully completed job.
type ActivityStore interface {
	// Append writes one usage record for the user.
	Append(ctx context.Context, userID uuid.UUID, tokensUsed int) error

	// WithTx returns a new ActivityStore instance that uses the
	// provided transaction.
	WithTx(tx *sql.Tx) ActivityStore
}
