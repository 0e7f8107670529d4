package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/studybuddy/analysis-api/internal/fingerprint"
)

// JobState represents the current position of a job in its lifecycle.
type JobState string

// Job lifecycle states. A job moves Submitted -> Queued -> Running ->
// Succeeded|Failed -> Notified -> Finalized; CacheHit is a terminal
// short-circuit that never produces a job.
const (
	JobStateSubmitted JobState = "submitted"
	JobStateQueued    JobState = "queued"
	JobStateRunning   JobState = "running"
	JobStateSucceeded JobState = "succeeded"
	JobStateFailed    JobState = "failed"
	JobStateNotified  JobState = "notified"
	JobStateFinalized JobState = "finalized"
)

// Terminal reports whether a job in this state has a settled outcome.
func (s JobState) Terminal() bool {
	switch s {
	case JobStateSucceeded, JobStateFailed, JobStateNotified, JobStateFinalized:
		return true
	}
	return false
}

// Attachment records one caller waiting on a job. Concurrent
// submissions of identical bytes attach additional callers to the
// single in-flight job instead of enqueuing duplicates.
type Attachment struct {
	UserID   uuid.UUID
	Filename string
}

// Job represents one unit of analysis work. It is created by the
// dispatcher on a cache miss and mutated only under the dispatcher's
// index lock.
type Job struct {
	ID           uuid.UUID
	Fingerprint  fingerprint.Fingerprint
	UserID       uuid.UUID // owning user: the first submitter
	DocumentPath string
	State        JobState
	Result       *AnalysisResult
	Usage        *Usage
	Error        string
	Attachments  []Attachment
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewJob creates a job for the given fingerprint, owned by the first
// submitter. The submitter is recorded as the first attachment.
func NewJob(fp fingerprint.Fingerprint, userID uuid.UUID, filename string) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:          uuid.New(),
		Fingerprint: fp,
		UserID:      userID,
		State:       JobStateSubmitted,
		Attachments: []Attachment{{UserID: userID, Filename: filename}},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Attach adds a caller to the job. A user already attached with the
// same filename is not duplicated.
func (j *Job) Attach(userID uuid.UUID, filename string) {
	for _, a := range j.Attachments {
		if a.UserID == userID && a.Filename == filename {
			return
		}
	}
	j.Attachments = append(j.Attachments, Attachment{UserID: userID, Filename: filename})
	j.UpdatedAt = time.Now().UTC()
}

// SetState advances the job to the given state.
func (j *Job) SetState(state JobState) {
	j.State = state
	j.UpdatedAt = time.Now().UTC()
}
