// Package queue defines the work queue collaborator contract between
// the dispatcher and the worker pool: at-least-once delivery of
// analysis jobs plus a status query. The in-process implementation in
// this package is the seam where an external broker would plug in.
package queue

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/studybuddy/analysis-api/internal/fingerprint"
)

// Common errors returned by queue implementations.
var (
	ErrQueueClosed = errors.New("work queue is closed")
	ErrQueueFull   = errors.New("work queue is full")
)

// Status is the queue's view of a job.
type Status string

// Possible job status values as reported by the queue.
const (
	StatusUnknown   Status = "unknown"
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status is a settled outcome.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Delivery is one queued unit of work. A redelivered unit keeps its
// JobID but gets a fresh delivery ID and an incremented Attempt.
type Delivery struct {
	ID           uuid.UUID
	JobID        uuid.UUID
	Fingerprint  fingerprint.Fingerprint
	UserID       uuid.UUID
	DocumentPath string
	Attempt      int
}

// Queue is the work queue collaborator contract. Deliveries are
// at-least-once: a delivery that is dequeued but never completed is
// handed out again after its acknowledgement deadline lapses.
type Queue interface {
	// Enqueue adds a delivery. The job becomes visible to Status as
	// pending. Returns ErrQueueFull or ErrQueueClosed.
	Enqueue(ctx context.Context, d Delivery) error

	// Dequeue blocks until a delivery is available or the context is
	// cancelled. The delivered job is reported as running until
	// Complete is called or the acknowledgement deadline lapses.
	Dequeue(ctx context.Context) (Delivery, error)

	// Complete acknowledges the delivery and records the job's terminal
	// status. Completing an unknown delivery is a no-op: at-least-once
	// redelivery makes duplicates legitimate.
	Complete(deliveryID uuid.UUID, status Status, errMsg string)

	// Status reports the queue's view of a job and, for failed jobs,
	// the recorded error message.
	Status(jobID uuid.UUID) (Status, string)

	// Close shuts the queue down, preventing further submission.
	Close()
}
