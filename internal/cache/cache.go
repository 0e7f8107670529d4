// Package cache implements the bounded per-user write-back result
// cache. Lookups and insertions are in-memory only; durable
// persistence happens in bulk at process stop (FlushAll) and the cache
// is rebuilt at process start (Preload).
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/studybuddy/analysis-api/internal/domain"
	"github.com/studybuddy/analysis-api/internal/fingerprint"
	"github.com/studybuddy/analysis-api/internal/store"
)

// userCache holds one user's entries in insertion order. Operations on
// the same user are serialized by its mutex; different users are
// independent.
type userCache struct {
	mu      sync.Mutex
	entries []*domain.CacheEntry
}

// ResultCache is a bounded FIFO cache of recent results, keyed by user
// and fingerprint. Capacity is enforced per user: inserting beyond it
// evicts the entry inserted earliest. Eviction from memory does not
// delete from durable storage; the retention trim at flush time does.
type ResultCache struct {
	capacity int
	logger   *slog.Logger

	mu    sync.Mutex // guards the users map only
	users map[uuid.UUID]*userCache
}

// NewResultCache creates a ResultCache with the given per-user capacity.
func NewResultCache(capacity int, logger *slog.Logger) (*ResultCache, error) {
	if capacity <= 0 {
		return nil, errors.New("cache capacity must be positive")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &ResultCache{
		capacity: capacity,
		logger:   logger.With("component", "result_cache"),
		users:    make(map[uuid.UUID]*userCache),
	}, nil
}

// Capacity returns the per-user entry cap.
func (c *ResultCache) Capacity() int {
	return c.capacity
}

// user returns the cache bucket for the user, creating it if needed.
func (c *ResultCache) user(userID uuid.UUID) *userCache {
	c.mu.Lock()
	defer c.mu.Unlock()

	uc, ok := c.users[userID]
	if !ok {
		uc = &userCache{}
		c.users[userID] = uc
	}
	return uc
}

// Get returns the user's entry for the fingerprint, if present.
// It performs no I/O.
func (c *ResultCache) Get(userID uuid.UUID, fp fingerprint.Fingerprint) (*domain.CacheEntry, bool) {
	uc := c.user(userID)
	uc.mu.Lock()
	defer uc.mu.Unlock()

	for _, e := range uc.entries {
		if e.Fingerprint == fp {
			return e, true
		}
	}
	return nil, false
}

// Put inserts or updates the user's entry for the entry's fingerprint.
// An update replaces the existing entry in place, preserving its
// insertion position; a fresh insert beyond capacity evicts the oldest
// entry.
func (c *ResultCache) Put(userID uuid.UUID, entry *domain.CacheEntry) {
	uc := c.user(userID)
	uc.mu.Lock()
	defer uc.mu.Unlock()

	for i, e := range uc.entries {
		if e.Fingerprint == entry.Fingerprint {
			uc.entries[i] = entry
			return
		}
	}

	uc.entries = append(uc.entries, entry)
	if len(uc.entries) > c.capacity {
		evicted := uc.entries[0]
		uc.entries = uc.entries[1:]
		c.logger.Debug("evicted oldest cache entry",
			"user_id", userID,
			"fingerprint", evicted.Fingerprint)
	}
}

// Entries returns a copy of the user's entries in insertion order,
// oldest first.
func (c *ResultCache) Entries(userID uuid.UUID) []*domain.CacheEntry {
	uc := c.user(userID)
	uc.mu.Lock()
	defer uc.mu.Unlock()

	out := make([]*domain.CacheEntry, len(uc.entries))
	copy(out, uc.entries)
	return out
}

// Preload populates the cache from durable storage, bounded to the
// capacity most recent entries per user. Intended for process start,
// before the cache receives traffic.
func (c *ResultCache) Preload(ctx context.Context, results store.ResultStore) error {
	recent, err := results.ListRecent(ctx, c.capacity)
	if err != nil {
		return fmt.Errorf("failed to load recent results: %w", err)
	}

	loaded := 0
	for userID, entries := range recent {
		uc := c.user(userID)
		uc.mu.Lock()
		// ListRecent returns newest first; store oldest first so FIFO
		// eviction order matches the original insertion order.
		uc.entries = uc.entries[:0]
		for i := len(entries) - 1; i >= 0; i-- {
			uc.entries = append(uc.entries, entries[i])
		}
		loaded += len(entries)
		uc.mu.Unlock()
	}

	c.logger.Info("result cache preloaded",
		"users", len(recent),
		"entries", loaded)
	return nil
}

// FlushAll persists every completed entry currently held, then trims
// durable retention to capacity per user. A failure for one user is
// recorded and the flush continues for the remaining users; the joined
// error is returned so the caller can retry.
func (c *ResultCache) FlushAll(ctx context.Context, results store.ResultStore) error {
	c.mu.Lock()
	userIDs := make([]uuid.UUID, 0, len(c.users))
	for id := range c.users {
		userIDs = append(userIDs, id)
	}
	c.mu.Unlock()

	var errs []error
	for _, userID := range userIDs {
		if err := c.flushUser(ctx, results, userID); err != nil {
			c.logger.Error("failed to flush cache for user",
				"user_id", userID,
				"error", err)
			errs = append(errs, fmt.Errorf("user %s: %w", userID, err))
		}
	}

	return errors.Join(errs...)
}

// flushUser writes one user's completed entries and trims retention.
func (c *ResultCache) flushUser(ctx context.Context, results store.ResultStore, userID uuid.UUID) error {
	uc := c.user(userID)
	uc.mu.Lock()
	defer uc.mu.Unlock()

	for _, entry := range uc.entries {
		if !entry.Completed() {
			// In-flight handles and failed jobs are not durable.
			continue
		}
		if err := results.SaveEntry(ctx, userID, entry); err != nil {
			return fmt.Errorf("failed to save entry %s: %w", entry.Fingerprint, err)
		}
	}

	if err := results.TrimToRecent(ctx, userID, c.capacity); err != nil {
		return fmt.Errorf("failed to trim retention: %w", err)
	}

	return nil
}
