package api_test

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/studybuddy/analysis-api/internal/api"
	apiMiddleware "github.com/studybuddy/analysis-api/internal/api/middleware"
	"github.com/studybuddy/analysis-api/internal/cache"
	"github.com/studybuddy/analysis-api/internal/config"
	"github.com/studybuddy/analysis-api/internal/dispatch"
	"github.com/studybuddy/analysis-api/internal/domain"
	"github.com/studybuddy/analysis-api/internal/queue"
	"github.com/studybuddy/analysis-api/internal/service/auth"
	"github.com/studybuddy/analysis-api/internal/store"
)

const trustedService = "analysis_worker"

// memoryUserStore is an in-memory store.UserStore for handler tests.
type memoryUserStore struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMemoryUserStore() *memoryUserStore {
	return &memoryUserStore{users: make(map[string]*domain.User)}
}

func (s *memoryUserStore) Create(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.Username]; ok {
		return store.ErrUsernameExists
	}
	s.users[user.Username] = user
	return nil
}

func (s *memoryUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (s *memoryUserStore) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return u, nil
}

func (s *memoryUserStore) TouchLastActive(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			u.LastActive = &at
			return nil
		}
	}
	return store.ErrUserNotFound
}

func (s *memoryUserStore) WithTx(tx *sql.Tx) store.UserStore { return s }

// memoryActivityStore counts usage records per user.
type memoryActivityStore struct {
	mu      sync.Mutex
	appends map[uuid.UUID][]int
}

func newMemoryActivityStore() *memoryActivityStore {
	return &memoryActivityStore{appends: make(map[uuid.UUID][]int)}
}

func (s *memoryActivityStore) Append(ctx context.Context, userID uuid.UUID, tokensUsed int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appends[userID] = append(s.appends[userID], tokensUsed)
	return nil
}

func (s *memoryActivityStore) WithTx(tx *sql.Tx) store.ActivityStore { return s }

func (s *memoryActivityStore) count(userID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.appends[userID])
}

func (s *memoryActivityStore) records(userID uuid.UUID) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, len(s.appends[userID]))
	copy(out, s.appends[userID])
	return out
}

// testServer bundles the wired stack behind an httptest server.
type testServer struct {
	srv        *httptest.Server
	users      *memoryUserStore
	activity   *memoryActivityStore
	cache      *cache.ResultCache
	queue      *queue.MemoryQueue
	dispatcher *dispatch.Dispatcher
	tokens     auth.TokenService
	passwords  *auth.BcryptVerifier
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tokens, err := auth.NewTokenService(config.AuthConfig{
		JWTSecret:            "test-secret-thats-at-least-32-characters",
		TokenLifetimeMinutes: 60,
		TrustedService:       trustedService,
	})
	require.NoError(t, err)

	users := newMemoryUserStore()
	activity := newMemoryActivityStore()

	authenticator, err := auth.NewAuthenticator(tokens, users, trustedService)
	require.NoError(t, err)

	resultCache, err := cache.NewResultCache(5, logger)
	require.NoError(t, err)

	q := queue.NewMemoryQueue(16, 30*time.Second, logger)
	t.Cleanup(q.Close)

	dispatcher, err := dispatch.NewDispatcher(q, resultCache, activity, dispatch.Config{
		UploadDir:         t.TempDir(),
		ReconcileInterval: time.Hour,
		StuckJobAge:       time.Hour,
	}, logger)
	require.NoError(t, err)

	passwords := auth.NewBcryptVerifier()

	authHandler := api.NewAuthHandler(users, tokens, passwords)
	materialHandler := api.NewMaterialHandler(dispatcher, resultCache)
	callbackHandler := api.NewCallbackHandler(dispatcher)

	authMiddleware := apiMiddleware.NewAuthMiddleware(authenticator)
	lastActive := apiMiddleware.NewLastActiveMiddleware(users)

	r := chi.NewRouter()
	r.Use(apiMiddleware.TraceMiddleware)
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.AuthenticateUser)
			r.Use(lastActive.Touch)

			r.Post("/process-material", materialHandler.ProcessMaterial)
			r.Get("/task-status/{jobID}", materialHandler.TaskStatus)
			r.Get("/results/{fingerprint}", materialHandler.ResultByFingerprint)
			r.Get("/recent-results", materialHandler.RecentResults)
		})

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.AuthenticateService)

			r.Post("/update-task-result/{jobID}", callbackHandler.UpdateTaskResult)
		})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testServer{
		srv:        srv,
		users:      users,
		activity:   activity,
		cache:      resultCache,
		queue:      q,
		dispatcher: dispatcher,
		tokens:     tokens,
		passwords:  passwords,
	}
}

// registerUser creates a user directly in the store and returns a
// valid token for it.
func (ts *testServer) registerUser(t *testing.T, username string) (*domain.User, string) {
	t.Helper()

	hashed, err := ts.passwords.Hash("password123")
	require.NoError(t, err)

	user := &domain.User{
		ID:             uuid.New(),
		Username:       username,
		HashedPassword: hashed,
		Role:           domain.RoleUser,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	require.NoError(t, ts.users.Create(context.Background(), user))

	token, err := ts.tokens.GenerateToken(context.Background(), username, domain.RoleUser)
	require.NoError(t, err)

	return user, token
}

// serviceToken mints a token with the given subject and role.
func (ts *testServer) serviceToken(t *testing.T, subject string, role domain.Role) string {
	t.Helper()

	token, err := ts.tokens.GenerateToken(context.Background(), subject, role)
	require.NoError(t, err)
	return token
}

// do issues a request with an optional bearer token.
func (ts *testServer) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, ts.srv.URL+path, body)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}
