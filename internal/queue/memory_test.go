package queue

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studybuddy/analysis-api/internal/fingerprint"
)

func newTestQueue(t *testing.T, size int) *MemoryQueue {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	q := NewMemoryQueue(size, 30*time.Second, logger)
	t.Cleanup(q.Close)
	return q
}

func testDelivery() Delivery {
	return Delivery{
		JobID:        uuid.New(),
		Fingerprint:  fingerprint.Compute([]byte("doc")),
		UserID:       uuid.New(),
		DocumentPath: "/tmp/doc",
	}
}

func TestEnqueueDequeue(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t, 4)
	ctx := context.Background()

	d := testDelivery()
	require.NoError(t, q.Enqueue(ctx, d))

	st, _ := q.Status(d.JobID)
	assert.Equal(t, StatusPending, st)

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, d.JobID, got.JobID)
	assert.NotEqual(t, uuid.Nil, got.ID)
	assert.Equal(t, 1, got.Attempt)

	st, _ = q.Status(d.JobID)
	assert.Equal(t, StatusRunning, st)
}

func TestEnqueue_Full(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t, 1)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, testDelivery()))

	overflow := testDelivery()
	err := q.Enqueue(ctx, overflow)
	assert.ErrorIs(t, err, ErrQueueFull)

	// A rejected delivery leaves no status record behind.
	st, _ := q.Status(overflow.JobID)
	assert.Equal(t, StatusUnknown, st)
}

func TestDequeue_ContextCancelled(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestComplete(t *testing.T) {
	t.Parallel()

	t.Run("records terminal status", func(t *testing.T) {
		t.Parallel()

		q := newTestQueue(t, 2)
		ctx := context.Background()

		d := testDelivery()
		require.NoError(t, q.Enqueue(ctx, d))
		got, err := q.Dequeue(ctx)
		require.NoError(t, err)

		q.Complete(got.ID, StatusFailed, "model unavailable")

		st, errMsg := q.Status(d.JobID)
		assert.Equal(t, StatusFailed, st)
		assert.Equal(t, "model unavailable", errMsg)
	})

	t.Run("duplicate completion is a no-op", func(t *testing.T) {
		t.Parallel()

		q := newTestQueue(t, 2)
		ctx := context.Background()

		d := testDelivery()
		require.NoError(t, q.Enqueue(ctx, d))
		got, err := q.Dequeue(ctx)
		require.NoError(t, err)

		q.Complete(got.ID, StatusSucceeded, "")
		q.Complete(got.ID, StatusFailed, "should not overwrite")

		st, errMsg := q.Status(d.JobID)
		assert.Equal(t, StatusSucceeded, st)
		assert.Empty(t, errMsg)
	})

	t.Run("unknown delivery is a no-op", func(t *testing.T) {
		t.Parallel()

		q := newTestQueue(t, 2)
		q.Complete(uuid.New(), StatusSucceeded, "")
	})
}

func TestRedelivery(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t, 4)
	ctx := context.Background()

	d := testDelivery()
	require.NoError(t, q.Enqueue(ctx, d))

	first, err := q.Dequeue(ctx)
	require.NoError(t, err)

	// Force the deadline to lapse instead of waiting for the ticker.
	q.redeliverExpired(time.Now().Add(time.Minute))

	st, _ := q.Status(d.JobID)
	assert.Equal(t, StatusPending, st)

	second, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, d.JobID, second.JobID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.Attempt+1, second.Attempt)

	// The original consumer's late completion must not acknowledge the
	// redelivered copy.
	q.Complete(first.ID, StatusFailed, "late")
	st, _ = q.Status(d.JobID)
	assert.Equal(t, StatusRunning, st)

	q.Complete(second.ID, StatusSucceeded, "")
	st, _ = q.Status(d.JobID)
	assert.Equal(t, StatusSucceeded, st)
}

func TestClose(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	q := NewMemoryQueue(2, 30*time.Second, logger)
	q.Close()

	err := q.Enqueue(context.Background(), testDelivery())
	assert.ErrorIs(t, err, ErrQueueClosed)

	_, err = q.Dequeue(context.Background())
	assert.ErrorIs(t, err, ErrQueueClosed)

	// Closing again is safe.
	q.Close()
}
