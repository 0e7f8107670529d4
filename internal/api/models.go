package api

import (
	"github.com/google/uuid"

	"github.com/studybuddy/analysis-api/internal/domain"
)

// RegisterRequest is the payload for user registration.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest is the payload for user login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is returned on successful registration or login.
type AuthResponse struct {
	UserID uuid.UUID `json:"user_id"`
	Token  string    `json:"token"`
}

// SubmissionResponse is returned by the material submission endpoint.
// For a cache hit Result is populated and Status is "cache_hit"; for an
// accepted job JobID identifies the handle to poll.
type SubmissionResponse struct {
	Status      string                 `json:"status"`
	JobID       *uuid.UUID             `json:"job_id,omitempty"`
	Fingerprint string                 `json:"fingerprint"`
	Result      *domain.AnalysisResult `json:"result,omitempty"`
}

// StatusResponse reports a job's progress. Status is one of "pending",
// "running", "succeeded" or "failed"; the internal lifecycle states are
// not exposed.
type StatusResponse struct {
	JobID  uuid.UUID `json:"job_id"`
	Status string    `json:"status"`
	Error  string    `json:"error,omitempty"`
}

// ResultResponse carries one cached analysis result.
type ResultResponse struct {
	Fingerprint string                 `json:"fingerprint"`
	Filename    string                 `json:"filename"`
	Result      *domain.AnalysisResult `json:"result,omitempty"`
	Pending     bool                   `json:"pending,omitempty"`
}

// RecentResultsResponse lists the caller's cached results, most recent
// first.
type RecentResultsResponse struct {
	Results []ResultResponse `json:"results"`
}

// CallbackRequest is the completion report posted by the worker
// service. Exactly one of Result or Error is set.
type CallbackRequest struct {
	Result *CallbackResult `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// CallbackResult is the success half of a completion report.
type CallbackResult struct {
	Sections map[string]string `json:"sections" validate:"required"`
	Usage    *CallbackUsage    `json:"usage,omitempty"`
}

// CallbackUsage carries the token consumption of a completed analysis.
type CallbackUsage struct {
	TokenCount int `json:"token_count" validate:"gte=0"`
}
