package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/studybuddy/analysis-api/internal/domain"
	"github.com/studybuddy/analysis-api/internal/platform/logger"
	"github.com/studybuddy/analysis-api/internal/store"
)

// Authenticator resolves verified tokens to caller identities. It
// implements the two verification contracts of the security boundary:
// end users on one side, the single trusted worker service on the
// other.
type Authenticator struct {
	tokens         TokenService
	users          store.UserStore
	trustedService string
}

// NewAuthenticator creates an Authenticator. trustedService is the one
// subject allowed to act in the service role.
func NewAuthenticator(tokens TokenService, users store.UserStore, trustedService string) (*Authenticator, error) {
	if tokens == nil {
		return nil, errors.New("token service cannot be nil")
	}
	if users == nil {
		return nil, errors.New("user store cannot be nil")
	}
	if trustedService == "" {
		return nil, errors.New("trusted service subject cannot be empty")
	}

	return &Authenticator{
		tokens:         tokens,
		users:          users,
		trustedService: trustedService,
	}, nil
}

// AuthenticateUser verifies the token and resolves its subject to a
// user record. Returns ErrUnknownSubject when the subject has no user.
func (a *Authenticator) AuthenticateUser(ctx context.Context, tokenString string) (*domain.User, error) {
	claims, err := a.tokens.ValidateToken(ctx, tokenString)
	if err != nil {
		return nil, err
	}

	user, err := a.users.GetByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSubject, claims.Subject)
		}
		return nil, fmt.Errorf("failed to resolve token subject: %w", err)
	}

	return user, nil
}

// AuthenticateService verifies the token and enforces the service-role
// contract: the role claim must be "service" and the subject must be
// the designated trusted service identity. A valid signature with any
// other subject is still rejected with ErrNotService.
func (a *Authenticator) AuthenticateService(ctx context.Context, tokenString string) (string, error) {
	log := logger.FromContext(ctx)

	claims, err := a.tokens.ValidateToken(ctx, tokenString)
	if err != nil {
		return "", err
	}

	if claims.Role != domain.RoleService {
		log.Warn("service authentication rejected: wrong role",
			"subject", claims.Subject,
			"role", claims.Role)
		return "", fmt.Errorf("%w: role %q", ErrNotService, claims.Role)
	}

	if claims.Subject != a.trustedService {
		log.Warn("service authentication rejected: untrusted subject",
			"subject", claims.Subject)
		return "", fmt.Errorf("%w: subject %q", ErrNotService, claims.Subject)
	}

	return claims.Subject, nil
}
