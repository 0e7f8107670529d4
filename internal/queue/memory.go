package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// statusRecord is the queue's bookkeeping for one job.
type statusRecord struct {
	status Status
	errMsg string
}

// inflightDelivery tracks a dequeued-but-unacknowledged delivery.
type inflightDelivery struct {
	delivery Delivery
	deadline time.Time
}

// MemoryQueue is the in-process Queue implementation: a buffered
// channel plus redelivery of deliveries whose acknowledgement deadline
// lapses, which preserves the at-least-once contract across worker
// crashes within the process.
type MemoryQueue struct {
	mu       sync.Mutex
	tasks    chan Delivery
	inflight map[uuid.UUID]inflightDelivery
	statuses map[uuid.UUID]statusRecord
	closed   bool

	ackTimeout time.Duration
	logger     *slog.Logger

	done chan struct{}
	wg   sync.WaitGroup
}

// Ensure MemoryQueue implements the Queue interface
var _ Queue = (*MemoryQueue)(nil)

// redeliverInterval controls how often expired deliveries are requeued.
const redeliverInterval = 10 * time.Second

// NewMemoryQueue creates a memory queue with the specified buffer size
// and acknowledgement timeout, and starts its redelivery loop.
func NewMemoryQueue(size int, ackTimeout time.Duration, logger *slog.Logger) *MemoryQueue {
	q := &MemoryQueue{
		tasks:      make(chan Delivery, size),
		inflight:   make(map[uuid.UUID]inflightDelivery),
		statuses:   make(map[uuid.UUID]statusRecord),
		ackTimeout: ackTimeout,
		logger:     logger.With("component", "memory_queue"),
		done:       make(chan struct{}),
	}

	q.wg.Add(1)
	go q.redeliverLoop()

	return q
}

// Enqueue adds a delivery to the queue.
// Returns an error if the queue is full or closed.
func (q *MemoryQueue) Enqueue(ctx context.Context, d Delivery) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.Attempt == 0 {
		d.Attempt = 1
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.statuses[d.JobID] = statusRecord{status: StatusPending}
	q.mu.Unlock()

	select {
	case q.tasks <- d:
		q.logger.Debug("delivery enqueued",
			"job_id", d.JobID,
			"fingerprint", d.Fingerprint,
			"queue_len", len(q.tasks),
			"queue_cap", cap(q.tasks))
		return nil
	default:
		q.mu.Lock()
		delete(q.statuses, d.JobID)
		q.mu.Unlock()
		return ErrQueueFull
	}
}

// Dequeue blocks until a delivery is available or ctx is cancelled.
func (q *MemoryQueue) Dequeue(ctx context.Context) (Delivery, error) {
	select {
	case <-ctx.Done():
		return Delivery{}, ctx.Err()
	case d, ok := <-q.tasks:
		if !ok {
			return Delivery{}, ErrQueueClosed
		}

		q.mu.Lock()
		q.statuses[d.JobID] = statusRecord{status: StatusRunning}
		q.inflight[d.ID] = inflightDelivery{
			delivery: d,
			deadline: time.Now().Add(q.ackTimeout),
		}
		q.mu.Unlock()

		return d, nil
	}
}

// Complete acknowledges the delivery and records the terminal status.
func (q *MemoryQueue) Complete(deliveryID uuid.UUID, status Status, errMsg string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	inf, ok := q.inflight[deliveryID]
	if !ok {
		// Duplicate or late completion after redelivery: legitimate
		// under at-least-once, nothing to do.
		q.logger.Debug("completion for unknown delivery ignored",
			"delivery_id", deliveryID,
			"status", status)
		return
	}

	delete(q.inflight, deliveryID)
	q.statuses[inf.delivery.JobID] = statusRecord{status: status, errMsg: errMsg}
}

// Status reports the queue's view of a job.
func (q *MemoryQueue) Status(jobID uuid.UUID) (Status, string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	rec, ok := q.statuses[jobID]
	if !ok {
		return StatusUnknown, ""
	}
	return rec.status, rec.errMsg
}

// Close shuts the queue down and stops the redelivery loop.
func (q *MemoryQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	close(q.done)
	q.wg.Wait()
	close(q.tasks)
	q.logger.Info("work queue closed")
}

// redeliverLoop requeues deliveries whose acknowledgement deadline has
// lapsed.
func (q *MemoryQueue) redeliverLoop() {
	defer q.wg.Done()

	ticker := time.NewTicker(redeliverInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.done:
			return
		case <-ticker.C:
			q.redeliverExpired(time.Now())
		}
	}
}

// redeliverExpired requeues every inflight delivery past its deadline.
// The redelivered copy gets a fresh delivery ID so a late Complete from
// the original consumer cannot acknowledge it.
func (q *MemoryQueue) redeliverExpired(now time.Time) {
	q.mu.Lock()
	var expired []Delivery
	for id, inf := range q.inflight {
		if now.After(inf.deadline) {
			delete(q.inflight, id)
			d := inf.delivery
			d.ID = uuid.New()
			d.Attempt++
			expired = append(expired, d)
		}
	}
	q.mu.Unlock()

	for _, d := range expired {
		select {
		case q.tasks <- d:
			q.mu.Lock()
			q.statuses[d.JobID] = statusRecord{status: StatusPending}
			q.mu.Unlock()
			q.logger.Warn("redelivered unacknowledged delivery",
				"job_id", d.JobID,
				"attempt", d.Attempt)
		default:
			// Queue is full; put it back inflight with a fresh deadline
			// and let a later sweep retry.
			q.mu.Lock()
			q.inflight[d.ID] = inflightDelivery{
				delivery: d,
				deadline: now.Add(q.ackTimeout),
			}
			q.mu.Unlock()
			q.logger.Error("failed to redeliver, queue is full",
				"job_id", d.JobID)
		}
	}
}
