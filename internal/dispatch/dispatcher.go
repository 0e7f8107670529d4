// Package dispatch coordinates document submissions: content
// fingerprinting, in-flight deduplication, hand-off to the work queue,
// and application of completion callbacks to every attached user.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/studybuddy/analysis-api/internal/domain"
	"github.com/studybuddy/analysis-api/internal/fingerprint"
	"github.com/studybuddy/analysis-api/internal/queue"
	"github.com/studybuddy/analysis-api/internal/store"
)

// ErrUnknownJob indicates a job ID with no in-flight record.
var ErrUnknownJob = errors.New("unknown job")

// Submission is the outcome of Submit: either a cached result served
// immediately or a handle to an in-flight job.
type Submission struct {
	// CacheHit is set when the user already holds a completed result
	// for this document; Entry carries it and Job is nil.
	CacheHit bool
	Entry    *domain.CacheEntry

	// Job is the in-flight job the submission resolved to. It may be a
	// job another user started for the same content.
	Job *domain.Job
}

// Dispatcher owns the in-flight job index. At most one job exists per
// fingerprint at a time; concurrent submissions of identical content
// attach to the existing job instead of enqueueing a second one.
type Dispatcher struct {
	q         queue.Queue
	cache     ResultCache
	activity  store.ActivityStore
	uploadDir string
	logger    *slog.Logger

	mu       sync.Mutex
	inflight map[fingerprint.Fingerprint]*domain.Job
	byID     map[uuid.UUID]*domain.Job

	reconcileEvery time.Duration
	stuckAfter     time.Duration
	stopReconcile  chan struct{}
	reconcileDone  chan struct{}
}

// ResultCache is the slice of the cache the dispatcher needs.
type ResultCache interface {
	Get(userID uuid.UUID, fp fingerprint.Fingerprint) (*domain.CacheEntry, bool)
	Put(userID uuid.UUID, entry *domain.CacheEntry)
	Entries(userID uuid.UUID) []*domain.CacheEntry
}

// Config carries dispatcher tunables.
type Config struct {
	UploadDir         string
	ReconcileInterval time.Duration
	StuckJobAge       time.Duration
}

// NewDispatcher creates a Dispatcher. The reconciliation loop is not
// started until StartReconciler is called.
func NewDispatcher(
	q queue.Queue,
	cache ResultCache,
	activity store.ActivityStore,
	cfg Config,
	logger *slog.Logger,
) (*Dispatcher, error) {
	if q == nil {
		return nil, errors.New("queue cannot be nil")
	}
	if cache == nil {
		return nil, errors.New("cache cannot be nil")
	}
	if activity == nil {
		return nil, errors.New("activity store cannot be nil")
	}
	if cfg.UploadDir == "" {
		return nil, errors.New("upload directory cannot be empty")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &Dispatcher{
		q:              q,
		cache:          cache,
		activity:       activity,
		uploadDir:      cfg.UploadDir,
		logger:         logger.With("component", "dispatcher"),
		inflight:       make(map[fingerprint.Fingerprint]*domain.Job),
		byID:           make(map[uuid.UUID]*domain.Job),
		reconcileEvery: cfg.ReconcileInterval,
		stuckAfter:     cfg.StuckJobAge,
		stopReconcile:  make(chan struct{}),
		reconcileDone:  make(chan struct{}),
	}, nil
}

// Submit resolves a document submission for the user. Resolution order:
//
//  1. The user's cache holds a completed result for this content:
//     serve it, no job is created.
//  2. A job for this content is already in flight: attach the user to
//     it and return the existing handle.
//  3. Otherwise create a job, persist the document under the upload
//     directory, enqueue it, and record an in-flight handle in the
//     user's cache.
func (d *Dispatcher) Submit(ctx context.Context, userID uuid.UUID, filename string, data []byte) (*Submission, error) {
	log := d.logger.With("user_id", userID, "filename", filename)

	fp := fingerprint.Compute(data)

	if entry, ok := d.cache.Get(userID, fp); ok && entry.Completed() {
		log.Info("submission served from cache", "fingerprint", fp)
		return &Submission{CacheHit: true, Entry: entry}, nil
	}

	d.mu.Lock()
	// A settled job can still hold its marker for the moment between
	// the outcome being applied and finalize retiring it; attaching to
	// it would hand out a handle that never resolves. Treat it as
	// absent and let the new job take the marker over.
	if job, ok := d.inflight[fp]; ok && !job.State.Terminal() {
		job.Attach(userID, filename)
		d.mu.Unlock()
		d.cache.Put(userID, &domain.CacheEntry{
			Fingerprint: fp,
			Filename:    filename,
			JobID:       &job.ID,
			CreatedAt:   time.Now().UTC(),
		})
		log.Info("submission attached to in-flight job",
			"job_id", job.ID,
			"fingerprint", fp)
		return &Submission{Job: job}, nil
	}

	job := domain.NewJob(fp, userID, filename)
	d.inflight[fp] = job
	d.byID[job.ID] = job
	d.mu.Unlock()

	docPath, err := d.persistDocument(job.ID, data)
	if err != nil {
		d.release(fp, job.ID)
		return nil, fmt.Errorf("failed to persist document: %w", err)
	}
	job.DocumentPath = docPath

	if err := d.q.Enqueue(ctx, queue.Delivery{
		JobID:        job.ID,
		Fingerprint:  fp,
		UserID:       userID,
		DocumentPath: docPath,
	}); err != nil {
		d.release(fp, job.ID)
		if rmErr := os.Remove(docPath); rmErr != nil {
			log.Warn("failed to remove document after enqueue failure",
				"path", docPath,
				"error", rmErr)
		}
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}
	job.SetState(domain.JobStateQueued)

	d.cache.Put(userID, &domain.CacheEntry{
		Fingerprint: fp,
		Filename:    filename,
		JobID:       &job.ID,
		CreatedAt:   time.Now().UTC(),
	})

	log.Info("job enqueued", "job_id", job.ID, "fingerprint", fp)
	return &Submission{Job: job}, nil
}

// persistDocument writes the uploaded bytes to the upload directory,
// named by job ID so concurrent jobs never collide.
func (d *Dispatcher) persistDocument(jobID uuid.UUID, data []byte) (string, error) {
	if err := os.MkdirAll(d.uploadDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}
	path := filepath.Join(d.uploadDir, jobID.String())
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

// release removes an in-flight record, tolerating a concurrent
// replacement for the same fingerprint.
func (d *Dispatcher) release(fp fingerprint.Fingerprint, jobID uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if job, ok := d.inflight[fp]; ok && job.ID == jobID {
		delete(d.inflight, fp)
	}
	delete(d.byID, jobID)
}

// Job returns the in-flight job with the given ID.
func (d *Dispatcher) Job(jobID uuid.UUID) (*domain.Job, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	job, ok := d.byID[jobID]
	return job, ok
}

// Status reports the current state of a job. The in-flight record is
// authoritative while it exists; afterwards the queue's terminal status
// record answers for recently finished jobs.
func (d *Dispatcher) Status(ctx context.Context, jobID uuid.UUID) (domain.JobState, string, error) {
	d.mu.Lock()
	if job, ok := d.byID[jobID]; ok {
		state, errMsg := job.State, job.Error
		d.mu.Unlock()
		return state, errMsg, nil
	}
	d.mu.Unlock()

	st, errMsg := d.q.Status(jobID)
	switch st {
	case queue.StatusSucceeded:
		return domain.JobStateFinalized, "", nil
	case queue.StatusFailed:
		return domain.JobStateFailed, errMsg, nil
	case queue.StatusPending:
		return domain.JobStateQueued, "", nil
	case queue.StatusRunning:
		return domain.JobStateRunning, "", nil
	default:
		return "", "", ErrUnknownJob
	}
}

// ApplyOutcome applies a completion report to a job. The operation is
// idempotent: an unknown or already finalized job ID is a no-op, so a
// redelivered callback cannot double-count usage or mutate settled
// entries. On success every attached user's cache entry is completed
// and a single usage record is appended per attached user; on failure
// the in-flight handles are removed so a resubmission starts fresh.
func (d *Dispatcher) ApplyOutcome(ctx context.Context, jobID uuid.UUID, outcome *domain.Outcome) error {
	d.mu.Lock()
	job, ok := d.byID[jobID]
	if !ok || job.State.Terminal() {
		d.mu.Unlock()
		d.logger.Debug("ignoring outcome for unknown or settled job", "job_id", jobID)
		return nil
	}

	attached := make([]domain.Attachment, len(job.Attachments))
	copy(attached, job.Attachments)
	if outcome.Failed() {
		job.Error = outcome.Error
		job.SetState(domain.JobStateFailed)
	} else {
		job.Result = outcome.Result
		job.Usage = outcome.Usage
		job.SetState(domain.JobStateSucceeded)
	}
	job.SetState(domain.JobStateNotified)
	d.mu.Unlock()

	log := d.logger.With("job_id", jobID, "fingerprint", job.Fingerprint)

	if outcome.Failed() {
		log.Warn("job failed", "error", outcome.Error)
		for _, a := range attached {
			d.dropHandle(a.UserID, job)
		}
	} else {
		completedAt := time.Now().UTC()
		for _, a := range attached {
			d.cache.Put(a.UserID, &domain.CacheEntry{
				Fingerprint: job.Fingerprint,
				Filename:    a.Filename,
				Result:      outcome.Result,
				CreatedAt:   completedAt,
			})
			if outcome.Usage != nil {
				if err := d.activity.Append(ctx, a.UserID, outcome.Usage.TokenCount); err != nil {
					log.Error("failed to record usage",
						"user_id", a.UserID,
						"error", err)
				}
			}
		}
		log.Info("job succeeded", "attached_users", len(attached))
	}

	d.finalize(job)
	return nil
}

// dropHandle replaces a user's in-flight handle with a failed marker so
// a later Get does not report an active job. The entry is not durable;
// FlushAll skips entries without a result.
func (d *Dispatcher) dropHandle(userID uuid.UUID, job *domain.Job) {
	if entry, ok := d.cache.Get(userID, job.Fingerprint); ok && entry.JobID != nil && *entry.JobID == job.ID {
		d.cache.Put(userID, &domain.CacheEntry{
			Fingerprint: job.Fingerprint,
			Filename:    entry.Filename,
			JobID:       nil,
			CreatedAt:   time.Now().UTC(),
		})
	}
}

// finalize retires the in-flight fingerprint marker and removes the
// stored document. Retiring the marker is what allows the next
// submission of the same content to start a fresh job. The settled job
// stays in the ID index so status queries keep answering; the
// reconciliation sweep prunes old settled records.
func (d *Dispatcher) finalize(job *domain.Job) {
	d.mu.Lock()
	job.SetState(domain.JobStateFinalized)
	if cur, ok := d.inflight[job.Fingerprint]; ok && cur.ID == job.ID {
		delete(d.inflight, job.Fingerprint)
	}
	d.mu.Unlock()

	if job.DocumentPath != "" {
		if err := os.Remove(job.DocumentPath); err != nil && !os.IsNotExist(err) {
			d.logger.Warn("failed to remove document",
				"path", job.DocumentPath,
				"error", err)
		}
	}
}

// StartReconciler begins the periodic sweep for jobs whose completion
// callback was lost. A job older than the stuck-age threshold whose
// queue record is already terminal gets the outcome applied directly
// from the queue's terminal status.
func (d *Dispatcher) StartReconciler(ctx context.Context) {
	if d.reconcileEvery <= 0 {
		close(d.reconcileDone)
		return
	}

	go func() {
		defer close(d.reconcileDone)
		ticker := time.NewTicker(d.reconcileEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-d.stopReconcile:
				return
			case <-ticker.C:
				d.reconcile(ctx)
			}
		}
	}()
}

// StopReconciler stops the sweep and waits for it to exit.
func (d *Dispatcher) StopReconciler() {
	select {
	case <-d.stopReconcile:
	default:
		close(d.stopReconcile)
	}
	<-d.reconcileDone
}

// reconcile scans in-flight jobs for lost callbacks and prunes settled
// job records old enough that nobody is still polling them.
func (d *Dispatcher) reconcile(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-d.stuckAfter)

	d.mu.Lock()
	var stuck []*domain.Job
	for id, job := range d.byID {
		if job.UpdatedAt.After(cutoff) {
			continue
		}
		if job.State == domain.JobStateFinalized {
			delete(d.byID, id)
			continue
		}
		if job.State.Terminal() {
			continue
		}
		stuck = append(stuck, job)
	}
	d.mu.Unlock()

	for _, job := range stuck {
		st, errMsg := d.q.Status(job.ID)
		if !st.Terminal() {
			continue
		}
		d.logger.Warn("reconciling job with lost callback",
			"job_id", job.ID,
			"queue_status", st)

		outcome := &domain.Outcome{Error: errMsg}
		if outcome.Error == "" {
			// Either the worker finished but the result payload is gone
			// with the lost callback, or it failed without a message.
			// Fail the job so users can resubmit.
			outcome.Error = "analysis finished but the outcome was lost; please resubmit"
		}
		if err := d.ApplyOutcome(ctx, job.ID, outcome); err != nil {
			d.logger.Error("failed to reconcile job",
				"job_id", job.ID,
				"error", err)
		}
	}
}
