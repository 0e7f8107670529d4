package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/studybuddy/analysis-api/internal/domain"
	"github.com/studybuddy/analysis-api/internal/service/auth"
)

// tokenSource caches a single service token and mints a replacement
// when the cached one is within the refresh leeway of expiry. Minting
// is serialized so concurrent workers never race to refresh.
type tokenSource struct {
	tokens   auth.TokenService
	subject  string
	leeway   time.Duration
	timeFunc func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func newTokenSource(tokens auth.TokenService, subject string, leeway time.Duration) *tokenSource {
	return &tokenSource{
		tokens:   tokens,
		subject:  subject,
		leeway:   leeway,
		timeFunc: time.Now,
	}
}

// Token returns a service token valid for at least the refresh leeway.
func (s *tokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.timeFunc()
	if s.token != "" && now.Before(s.expiresAt.Add(-s.leeway)) {
		return s.token, nil
	}

	token, err := s.tokens.GenerateToken(ctx, s.subject, domain.RoleService)
	if err != nil {
		return "", fmt.Errorf("failed to mint service token: %w", err)
	}

	// The refresh deadline comes from the token's own exp claim; the
	// token service decides the lifetime, not this cache.
	claims, err := s.tokens.ValidateToken(ctx, token)
	if err != nil {
		return "", fmt.Errorf("minted service token did not validate: %w", err)
	}

	s.token = token
	s.expiresAt = claims.ExpiresAt
	return token, nil
}

// Invalidate discards the cached token so the next Token call mints a
// fresh one. Called after the callback rejects the current token.
func (s *tokenSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.expiresAt = time.Time{}
}
