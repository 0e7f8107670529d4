// Package notify delivers job completion reports to the callback
// endpoint, authenticating with short-lived service tokens.
package notify

import (
	"context"

	"github.com/google/uuid"

	"github.com/studybuddy/analysis-api/internal/domain"
)

// Notifier delivers a job's terminal outcome. Implementations must be
// safe for concurrent use by multiple workers.
type Notifier interface {
	// Notify reports the outcome for the job. It returns an error only
	// after exhausting its delivery attempts.
	Notify(ctx context.Context, jobID uuid.UUID, outcome *domain.Outcome) error
}
