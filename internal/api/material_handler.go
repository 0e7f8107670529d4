package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/studybuddy/analysis-api/internal/dispatch"
	"github.com/studybuddy/analysis-api/internal/domain"
	"github.com/studybuddy/analysis-api/internal/fingerprint"
	"github.com/studybuddy/analysis-api/internal/platform/logger"
	"github.com/studybuddy/analysis-api/internal/queue"

	"github.com/studybuddy/analysis-api/internal/api/shared"
)

// maxUploadBytes bounds document uploads at 10 MiB.
const maxUploadBytes = 10 << 20

// ResultCache is the slice of the cache the material handler reads.
type ResultCache interface {
	Get(userID uuid.UUID, fp fingerprint.Fingerprint) (*domain.CacheEntry, bool)
	Entries(userID uuid.UUID) []*domain.CacheEntry
}

// MaterialHandler handles document submission and result retrieval.
type MaterialHandler struct {
	dispatcher *dispatch.Dispatcher
	cache      ResultCache
}

// NewMaterialHandler creates a new MaterialHandler.
func NewMaterialHandler(dispatcher *dispatch.Dispatcher, cache ResultCache) *MaterialHandler {
	return &MaterialHandler{
		dispatcher: dispatcher,
		cache:      cache,
	}
}

// ProcessMaterial handles POST /process-material. The document arrives
// as the multipart field "file"; the response is either the cached
// result or a job handle to poll.
func (h *MaterialHandler) ProcessMaterial(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), slog.Default())

	userID, ok := shared.GetUserID(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Missing or invalid file upload")
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Failed to read uploaded file")
		return
	}
	if len(data) == 0 {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Uploaded file is empty")
		return
	}

	submission, err := h.dispatcher.Submit(r.Context(), userID, header.Filename, data)
	if err != nil {
		if errors.Is(err, queue.ErrQueueFull) {
			shared.RespondWithError(w, r, http.StatusServiceUnavailable, GetSafeErrorMessage(err))
			return
		}
		log.Error("failed to submit document",
			"error", err,
			"user_id", userID,
			"filename", header.Filename)
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to process document")
		return
	}

	if submission.CacheHit {
		shared.RespondWithJSON(w, r, http.StatusOK, SubmissionResponse{
			Status:      "cache_hit",
			Fingerprint: submission.Entry.Fingerprint.String(),
			Result:      submission.Entry.Result,
		})
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, SubmissionResponse{
		Status:      "accepted",
		JobID:       &submission.Job.ID,
		Fingerprint: submission.Job.Fingerprint.String(),
	})
}

// TaskStatus handles GET /task-status/{jobID}.
func (h *MaterialHandler) TaskStatus(w http.ResponseWriter, r *http.Request) {
	if _, ok := shared.GetUserID(r.Context()); !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	jobID, err := getPathUUID(r, "jobID")
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	state, errMsg, err := h.dispatcher.Status(r.Context(), jobID)
	if err != nil {
		shared.RespondWithError(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err))
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, StatusResponse{
		JobID:  jobID,
		Status: statusLabel(state, errMsg),
		Error:  errMsg,
	})
}

// statusLabel collapses the internal job lifecycle to the four statuses
// callers act on. Settled jobs carry an error message exactly when they
// failed.
func statusLabel(state domain.JobState, errMsg string) string {
	switch state {
	case domain.JobStateSubmitted, domain.JobStateQueued:
		return "pending"
	case domain.JobStateRunning:
		return "running"
	case domain.JobStateFailed:
		return "failed"
	default:
		if errMsg != "" {
			return "failed"
		}
		return "succeeded"
	}
}

// ResultByFingerprint handles GET /results/{fingerprint}, serving the
// caller's cached result for the given content.
func (h *MaterialHandler) ResultByFingerprint(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.GetUserID(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	fp := fingerprint.Fingerprint(chi.URLParam(r, "fingerprint"))
	if !fp.Valid() {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid fingerprint format")
		return
	}

	entry, found := h.cache.Get(userID, fp)
	if !found {
		shared.RespondWithError(w, r, http.StatusNotFound, "Result not found")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, ResultResponse{
		Fingerprint: entry.Fingerprint.String(),
		Filename:    entry.Filename,
		Result:      entry.Result,
		Pending:     !entry.Completed(),
	})
}

// RecentResults handles GET /recent-results, listing the caller's
// cached entries, most recent first.
func (h *MaterialHandler) RecentResults(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.GetUserID(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	entries := h.cache.Entries(userID)

	results := make([]ResultResponse, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		results = append(results, ResultResponse{
			Fingerprint: entry.Fingerprint.String(),
			Filename:    entry.Filename,
			Result:      entry.Result,
			Pending:     !entry.Completed(),
		})
	}

	shared.RespondWithJSON(w, r, http.StatusOK, RecentResultsResponse{Results: results})
}
