package auth

import (
	"context"
	"time"

	"github.com/studybuddy/analysis-api/internal/domain"
)

// TokenService defines operations for issuing and verifying the signed
// bearer tokens used by both end users and the worker service.
type TokenService interface {
	// GenerateToken creates a signed token for the given subject and
	// role. Returns the token string or an error if signing fails.
	GenerateToken(ctx context.Context, subject string, role domain.Role) (string, error)

	// ValidateToken verifies the provided token string and extracts the
	// claims. Returns an error if validation fails (expired, invalid
	// signature, malformed, etc.).
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims represents the verified claim set of a token.
type Claims struct {
	// Subject identifies the caller: a username.
	Subject string `json:"sub,omitempty"`

	// Role distinguishes end users from the trusted worker service.
	Role domain.Role `json:"role,omitempty"`

	// Standard registered JWT claims
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}
