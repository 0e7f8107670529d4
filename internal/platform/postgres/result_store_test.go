package postgres_test

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studybuddy/analysis-api/internal/domain"
	"github.com/studybuddy/analysis-api/internal/fingerprint"
	"github.com/studybuddy/analysis-api/internal/platform/postgres"
	"github.com/studybuddy/analysis-api/internal/store"
)

func completedEntry(t *testing.T) (*domain.CacheEntry, []byte) {
	t.Helper()

	entry := &domain.CacheEntry{
		Fingerprint: fingerprint.Compute([]byte("lecture notes")),
		Filename:    "notes.txt",
		Result: &domain.AnalysisResult{
			Sections: map[string]string{domain.SectionSummary: "a summary"},
		},
		CreatedAt: time.Now().UTC(),
	}
	resultJSON, err := json.Marshal(entry.Result)
	require.NoError(t, err)
	return entry, resultJSON
}

func TestResultStore_SaveEntry(t *testing.T) {
	t.Parallel()

	t.Run("inserts a completed entry", func(t *testing.T) {
		t.Parallel()
		db, mock := newMockDB(t)
		s := postgres.NewPostgresResultStore(db)
		userID := uuid.New()
		entry, resultJSON := completedEntry(t)

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO events")).
			WithArgs(userID, entry.Fingerprint.String(), entry.Filename, resultJSON, entry.CreatedAt).
			WillReturnResult(sqlmock.NewResult(1, 1))

		require.NoError(t, s.SaveEntry(context.Background(), userID, entry))
	})

	t.Run("rejects entry without a result", func(t *testing.T) {
		t.Parallel()
		db, _ := newMockDB(t)
		s := postgres.NewPostgresResultStore(db)

		entry := &domain.CacheEntry{
			Fingerprint: fingerprint.Compute([]byte("pending")),
			Filename:    "pending.txt",
		}

		err := s.SaveEntry(context.Background(), uuid.New(), entry)
		assert.ErrorIs(t, err, store.ErrInvalidEntity)
	})
}

func TestResultStore_ListRecent(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	s := postgres.NewPostgresResultStore(db)

	alice := uuid.New()
	bob := uuid.New()
	entry, resultJSON := completedEntry(t)

	mock.ExpectQuery(regexp.QuoteMeta("ROW_NUMBER() OVER (PARTITION BY user_id ORDER BY id DESC)")).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "fingerprint", "filename", "result", "created_at"}).
			AddRow(alice, entry.Fingerprint.String(), "alice.txt", resultJSON, entry.CreatedAt).
			AddRow(alice, entry.Fingerprint.String(), "alice-older.txt", resultJSON, entry.CreatedAt).
			AddRow(bob, entry.Fingerprint.String(), "bob.txt", resultJSON, entry.CreatedAt))

	byUser, err := s.ListRecent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, byUser, 2)
	require.Len(t, byUser[alice], 2)
	require.Len(t, byUser[bob], 1)
	assert.Equal(t, "alice.txt", byUser[alice][0].Filename)
	assert.Equal(t, "bob.txt", byUser[bob][0].Filename)
	assert.Equal(t, entry.Fingerprint, byUser[bob][0].Fingerprint)
	require.NotNil(t, byUser[bob][0].Result)
	assert.Equal(t, "a summary", byUser[bob][0].Result.Sections[domain.SectionSummary])
}

func TestResultStore_TrimToRecent(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	s := postgres.NewPostgresResultStore(db)
	userID := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM events WHERE user_id = $1 AND id NOT IN")).
		WithArgs(userID, 5).
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, s.TrimToRecent(context.Background(), userID, 5))
}
