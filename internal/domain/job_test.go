package domain_test

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studybuddy/analysis-api/internal/domain"
	"github.com/studybuddy/analysis-api/internal/fingerprint"
)

func TestJobStateTerminal(t *testing.T) {
	t.Parallel()

	terminal := []domain.JobState{
		domain.JobStateSucceeded,
		domain.JobStateFailed,
		domain.JobStateNotified,
		domain.JobStateFinalized,
	}
	for _, s := range terminal {
		assert.True(t, s.Terminal(), "state %q should be terminal", s)
	}

	active := []domain.JobState{
		domain.JobStateSubmitted,
		domain.JobStateQueued,
		domain.JobStateRunning,
	}
	for _, s := range active {
		assert.False(t, s.Terminal(), "state %q should not be terminal", s)
	}
}

func TestNewJob(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	fp := fingerprint.Compute([]byte("content"))
	job := domain.NewJob(fp, userID, "notes.txt")

	assert.NotEqual(t, uuid.Nil, job.ID)
	assert.Equal(t, fp, job.Fingerprint)
	assert.Equal(t, userID, job.UserID)
	assert.Equal(t, domain.JobStateSubmitted, job.State)
	require.Len(t, job.Attachments, 1)
	assert.Equal(t, userID, job.Attachments[0].UserID)
	assert.Equal(t, "notes.txt", job.Attachments[0].Filename)
}

func TestJobAttach(t *testing.T) {
	t.Parallel()

	owner := uuid.New()
	job := domain.NewJob(fingerprint.Compute([]byte("content")), owner, "a.txt")

	other := uuid.New()
	job.Attach(other, "b.txt")
	require.Len(t, job.Attachments, 2)

	// Same user and filename is deduplicated.
	job.Attach(other, "b.txt")
	assert.Len(t, job.Attachments, 2)

	// Same user with a new filename attaches again.
	job.Attach(other, "c.txt")
	assert.Len(t, job.Attachments, 3)
}

func TestNewUser(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		user, err := domain.NewUser("alice", "password123")
		require.NoError(t, err)
		assert.Equal(t, domain.RoleUser, user.Role)
		assert.NotEqual(t, uuid.Nil, user.ID)
	})

	t.Run("short password", func(t *testing.T) {
		t.Parallel()
		_, err := domain.NewUser("alice", "short")
		assert.ErrorIs(t, err, domain.ErrPasswordTooShort)
	})

	t.Run("overlong password", func(t *testing.T) {
		t.Parallel()
		_, err := domain.NewUser("alice", strings.Repeat("x", 73))
		assert.ErrorIs(t, err, domain.ErrPasswordTooLong)
	})

	t.Run("empty username", func(t *testing.T) {
		t.Parallel()
		_, err := domain.NewUser("", "password123")
		assert.ErrorIs(t, err, domain.ErrEmptyUsername)
	})
}

func TestOutcomeFailed(t *testing.T) {
	t.Parallel()

	assert.False(t, domain.Outcome{Result: &domain.AnalysisResult{}}.Failed())
	assert.True(t, domain.Outcome{Error: "model refused"}.Failed())
}

func TestCacheEntryCompleted(t *testing.T) {
	t.Parallel()

	jobID := uuid.New()
	pending := &domain.CacheEntry{JobID: &jobID}
	assert.False(t, pending.Completed())

	done := &domain.CacheEntry{Result: &domain.AnalysisResult{}}
	assert.True(t, done.Completed())
}
