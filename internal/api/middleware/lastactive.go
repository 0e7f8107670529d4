package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/studybuddy/analysis-api/internal/store"

	"github.com/studybuddy/analysis-api/internal/api/shared"
)

// LastActiveMiddleware records when an authenticated user was last
// seen. The write is asynchronous and best-effort; it must never slow
// down or fail the request. Apply after user authentication.
type LastActiveMiddleware struct {
	users store.UserStore
}

// NewLastActiveMiddleware creates a new LastActiveMiddleware.
func NewLastActiveMiddleware(users store.UserStore) *LastActiveMiddleware {
	return &LastActiveMiddleware{users: users}
}

// Touch updates the user's last-active timestamp in the background.
func (m *LastActiveMiddleware) Touch(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID, ok := shared.GetUserID(r.Context()); ok {
			now := time.Now().UTC()
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := m.users.TouchLastActive(ctx, userID, now); err != nil {
					slog.Debug("failed to update last active timestamp",
						"user_id", userID,
						"error", err)
				}
			}()
		}
		next.ServeHTTP(w, r)
	})
}
