package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studybuddy/analysis-api/internal/config"
	"github.com/studybuddy/analysis-api/internal/domain"
	"github.com/studybuddy/analysis-api/internal/service/auth"
)

func testTokenService(t *testing.T) auth.TokenService {
	t.Helper()

	svc, err := auth.NewTokenService(config.AuthConfig{
		JWTSecret:            "test-secret-thats-at-least-32-characters",
		TokenLifetimeMinutes: 60,
		TrustedService:       "analysis_worker",
	})
	require.NoError(t, err)
	return svc
}

func newTestNotifier(t *testing.T, callbackURL string, attempts int) *HTTPNotifier {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	n, err := NewHTTPNotifier(config.NotifyConfig{
		CallbackURL:          callbackURL,
		Attempts:             attempts,
		TimeoutSeconds:       2,
		RefreshLeewaySeconds: 60,
	}, testTokenService(t), "analysis_worker", logger)
	require.NoError(t, err)
	return n
}

func successOutcome() *domain.Outcome {
	return &domain.Outcome{
		Result: &domain.AnalysisResult{
			Sections: map[string]string{domain.SectionSummary: "a summary"},
		},
		Usage: &domain.Usage{TokenCount: 12},
	}
}

func TestNotify_DeliversOutcome(t *testing.T) {
	t.Parallel()

	jobID := uuid.New()

	var mu sync.Mutex
	var gotPath, gotAuth string
	var gotBody struct {
		Result struct {
			Sections map[string]string `json:"sections"`
			Usage    *struct {
				TokenCount int `json:"token_count"`
			} `json:"usage"`
		} `json:"result"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := newTestNotifier(t, srv.URL+"/api/update-task-result", 3)
	require.NoError(t, n.Notify(context.Background(), jobID, successOutcome()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/api/update-task-result/"+jobID.String(), gotPath)
	assert.True(t, strings.HasPrefix(gotAuth, "Bearer "))
	assert.Equal(t, "a summary", gotBody.Result.Sections[domain.SectionSummary])
	require.NotNil(t, gotBody.Result.Usage, "usage must ride inside the result object")
	assert.Equal(t, 12, gotBody.Result.Usage.TokenCount)

	// The bearer token is a valid service token for the trusted subject.
	claims, err := testTokenService(t).ValidateToken(context.Background(), strings.TrimPrefix(gotAuth, "Bearer "))
	require.NoError(t, err)
	assert.Equal(t, "analysis_worker", claims.Subject)
	assert.Equal(t, domain.RoleService, claims.Role)
}

func TestNotify_RetriesUntilSuccess(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := newTestNotifier(t, srv.URL, 3)
	require.NoError(t, n.Notify(context.Background(), uuid.New(), successOutcome()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, calls)
}

func TestNotify_AttemptsExhausted(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := newTestNotifier(t, srv.URL, 3)
	err := n.Notify(context.Background(), uuid.New(), successOutcome())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, calls)
}

func TestNotify_FailureOutcomeBody(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := newTestNotifier(t, srv.URL, 1)
	require.NoError(t, n.Notify(context.Background(), uuid.New(), &domain.Outcome{Error: "analysis failed"}))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "analysis failed", gotBody["error"])
	_, hasResult := gotBody["result"]
	assert.False(t, hasResult)
}

func TestTokenSource(t *testing.T) {
	t.Parallel()

	t.Run("token is cached across calls", func(t *testing.T) {
		t.Parallel()

		src := newTokenSource(testTokenService(t), "analysis_worker", time.Minute)

		first, err := src.Token(context.Background())
		require.NoError(t, err)
		second, err := src.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("refresh deadline comes from the token's exp claim", func(t *testing.T) {
		t.Parallel()

		// The test token service mints 60-minute tokens; the source is
		// told nothing about that lifetime.
		src := newTokenSource(testTokenService(t), "analysis_worker", time.Minute)

		base := time.Now()
		now := base
		src.timeFunc = func() time.Time { return now }

		first, err := src.Token(context.Background())
		require.NoError(t, err)

		// Still comfortably before the refresh window: cached.
		now = base.Add(58 * time.Minute)
		cached, err := src.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, first, cached)

		// Inside the final minute before the claimed expiry: refreshed.
		now = base.Add(59*time.Minute + 30*time.Second)
		refreshed, err := src.Token(context.Background())
		require.NoError(t, err)
		assert.NotEqual(t, first, refreshed)
	})

	t.Run("invalidate forces a fresh token", func(t *testing.T) {
		t.Parallel()

		src := newTokenSource(testTokenService(t), "analysis_worker", time.Minute)

		first, err := src.Token(context.Background())
		require.NoError(t, err)

		src.Invalidate()

		second, err := src.Token(context.Background())
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})
}
