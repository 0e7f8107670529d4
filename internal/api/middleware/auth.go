package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/studybuddy/analysis-api/internal/redact"
	"github.com/studybuddy/analysis-api/internal/service/auth"

	"github.com/studybuddy/analysis-api/internal/api/shared"
)

// AuthMiddleware guards routes with bearer-token authentication. User
// routes and the service callback route use different guards: a
// service-role token never grants user access and vice versa.
type AuthMiddleware struct {
	authenticator *auth.Authenticator
}

// NewAuthMiddleware creates a new AuthMiddleware.
func NewAuthMiddleware(authenticator *auth.Authenticator) *AuthMiddleware {
	return &AuthMiddleware{authenticator: authenticator}
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

// AuthenticateUser validates a user token and adds the resolved user's
// ID to the request context.
func (m *AuthMiddleware) AuthenticateUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Authorization header required")
			return
		}

		user, err := m.authenticator.AuthenticateUser(r.Context(), token)
		if err != nil {
			m.respondAuthError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), shared.UserIDContextKey, user.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AuthenticateService validates a service token. Only the designated
// trusted service subject passes; any user token is rejected with 403.
func (m *AuthMiddleware) AuthenticateService(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Authorization header required")
			return
		}

		subject, err := m.authenticator.AuthenticateService(r.Context(), token)
		if err != nil {
			m.respondAuthError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), shared.ServiceContextKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) respondAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Token expired")
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrUnknownSubject):
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid token")
	case errors.Is(err, auth.ErrNotService):
		shared.RespondWithError(w, r, http.StatusForbidden, "Caller is not authorized to report results")
	default:
		slog.Error("failed to validate token", "error", redact.Error(err))
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Authentication error")
	}
}
