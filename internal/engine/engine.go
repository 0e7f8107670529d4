// Package engine defines the document analysis engine interface and its
// Gemini-backed implementation.
package engine

import (
	"context"
	"errors"

	"github.com/studybuddy/analysis-api/internal/domain"
)

// Analyzer produces an analysis of a stored document. Implementations
// must be safe for concurrent use by multiple workers.
type Analyzer interface {
	// Analyze reads the document at the given path and generates all
	// analysis sections, reporting the token usage consumed. It returns
	// an error when the document cannot be read or generation fails.
	Analyze(ctx context.Context, documentPath string) (*domain.AnalysisResult, *domain.Usage, error)
}

// Engine error types. Callers can check with errors.Is to distinguish
// permanent failures, which must not be retried, from transient ones.
var (
	// ErrInvalidConfig indicates the engine configuration is unusable.
	ErrInvalidConfig = errors.New("invalid engine configuration")

	// ErrInvalidResponse indicates the model returned output the engine
	// could not use. Permanent for the given document.
	ErrInvalidResponse = errors.New("invalid model response")

	// ErrContentBlocked indicates the model refused the document on
	// safety grounds. Permanent for the given document.
	ErrContentBlocked = errors.New("content blocked by safety filters")

	// ErrTransientFailure indicates a retryable failure such as an API
	// outage or rate limit.
	ErrTransientFailure = errors.New("transient analysis failure")
)

// Permanent reports whether the error must not be retried.
func Permanent(err error) bool {
	return errors.Is(err, ErrInvalidResponse) ||
		errors.Is(err, ErrContentBlocked) ||
		errors.Is(err, ErrInvalidConfig)
}
