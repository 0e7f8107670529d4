package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/studybuddy/analysis-api/internal/domain"
)

// UserStore defines the interface for user data persistence.
type UserStore interface {
	// Create saves a new user to the store. The user must already carry
	// a hashed password. Returns ErrUsernameExists if the username is
	// taken.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their unique ID.
	// Returns ErrUserNotFound if the user does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetByUsername retrieves a user by their username.
	// Returns ErrUserNotFound if the user does not exist.
	GetByUsername(ctx context.Context, username string) (*domain.User, error)

	// TouchLastActive records the time the user was last seen. Callers
	// treat this as best-effort; a failure must not fail the request
	// that triggered it.
	TouchLastActive(ctx context.Context, id uuid.UUID, at time.Time) error

	// WithTx returns a new UserStore instance that uses the provided
	// transaction. The transaction is created and managed by the caller.
	WithTx(tx *sql.Tx) UserStore
}
