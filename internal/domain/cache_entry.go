package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/studybuddy/analysis-api/internal/fingerprint"
)

// CacheEntry is one per-user record in the result cache. While the
// analysis is running it carries the job handle; on completion the
// handle is replaced by the result. One user's entries never reference
// another's.
type CacheEntry struct {
	Fingerprint fingerprint.Fingerprint `json:"fingerprint"`
	Filename    string                  `json:"filename"`
	Result      *AnalysisResult         `json:"result,omitempty"`
	JobID       *uuid.UUID              `json:"job_id,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
}

// Completed reports whether the entry holds a finished result rather
// than an in-flight job handle.
func (e *CacheEntry) Completed() bool {
	return e.Result != nil
}
