// Package worker runs the analysis worker pool: each worker dequeues
// deliveries, runs the analysis engine against the stored document,
// and reports the outcome through the notifier.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/studybuddy/analysis-api/internal/domain"
	"github.com/studybuddy/analysis-api/internal/engine"
	"github.com/studybuddy/analysis-api/internal/notify"
	"github.com/studybuddy/analysis-api/internal/queue"
)

// Pool runs a fixed number of workers against the work queue.
type Pool struct {
	q           queue.Queue
	analyzer    engine.Analyzer
	notifier    notify.Notifier
	count       int
	retryBudget int
	logger      *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool creates a worker pool. Start must be called before it does
// any work.
func NewPool(
	q queue.Queue,
	analyzer engine.Analyzer,
	notifier notify.Notifier,
	count, retryBudget int,
	logger *slog.Logger,
) (*Pool, error) {
	if q == nil {
		return nil, errors.New("queue cannot be nil")
	}
	if analyzer == nil {
		return nil, errors.New("analyzer cannot be nil")
	}
	if notifier == nil {
		return nil, errors.New("notifier cannot be nil")
	}
	if count <= 0 {
		return nil, errors.New("worker count must be positive")
	}
	if retryBudget <= 0 {
		return nil, errors.New("retry budget must be positive")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &Pool{
		q:           q,
		analyzer:    analyzer,
		notifier:    notifier,
		count:       count,
		retryBudget: retryBudget,
		logger:      logger.With("component", "worker_pool"),
	}, nil
}

// Start launches the workers. They run until Stop is called or the
// parent context is cancelled.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	for i := 0; i < p.count; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.run(ctx, id)
		}(i)
	}

	p.logger.Info("worker pool started", "workers", p.count)
}

// Stop signals the workers to finish and waits for them. A worker in
// the middle of a job completes it before exiting.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

// run is the loop of one worker.
func (p *Pool) run(ctx context.Context, id int) {
	log := p.logger.With("worker", id)
	for {
		delivery, err := p.q.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, queue.ErrQueueClosed) {
				return
			}
			log.Error("dequeue failed", "error", err)
			continue
		}

		p.process(ctx, log, delivery)
	}
}

// process runs one delivery to a terminal state. The outcome is
// delivered via the notifier; the queue is told the terminal status
// regardless, so a lost callback is still reconcilable.
func (p *Pool) process(ctx context.Context, log *slog.Logger, delivery queue.Delivery) {
	log = log.With("job_id", delivery.JobID, "delivery_attempt", delivery.Attempt)
	start := time.Now()

	outcome := p.analyze(ctx, log, delivery)

	status := queue.StatusSucceeded
	if outcome.Failed() {
		status = queue.StatusFailed
	}

	if err := p.notifier.Notify(ctx, delivery.JobID, outcome); err != nil {
		// The outcome is dropped here; the dispatcher's reconciliation
		// sweep picks the job up from the queue's terminal record.
		log.Error("failed to deliver outcome", "error", err)
	}

	p.q.Complete(delivery.ID, status, outcome.Error)

	log.Info("job processed",
		"status", status,
		"duration_ms", time.Since(start).Milliseconds())
}

// analyze runs the engine with the retry budget, stopping early on
// permanent errors and returning the terminal outcome.
func (p *Pool) analyze(ctx context.Context, log *slog.Logger, delivery queue.Delivery) *domain.Outcome {
	var lastErr error
	for attempt := 1; attempt <= p.retryBudget; attempt++ {
		result, usage, err := p.analyzer.Analyze(ctx, delivery.DocumentPath)
		if err == nil {
			return &domain.Outcome{Result: result, Usage: usage}
		}
		lastErr = err

		if engine.Permanent(err) {
			log.Warn("analysis failed permanently", "attempt", attempt, "error", err)
			return &domain.Outcome{Error: err.Error()}
		}
		if ctx.Err() != nil {
			break
		}

		log.Warn("analysis attempt failed",
			"attempt", attempt,
			"retry_budget", p.retryBudget,
			"error", err)
	}

	return &domain.Outcome{
		Error: fmt.Sprintf("analysis failed after %d attempts: %v", p.retryBudget, lastErr),
	}
}
