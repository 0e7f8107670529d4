package api

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/studybuddy/analysis-api/internal/dispatch"
	"github.com/studybuddy/analysis-api/internal/domain"

	"github.com/studybuddy/analysis-api/internal/api/shared"
)

// CallbackHandler receives completion reports from the worker service.
// The route is guarded by the service-role middleware; only the trusted
// service subject reaches it.
type CallbackHandler struct {
	dispatcher *dispatch.Dispatcher
	validator  *validator.Validate
}

// NewCallbackHandler creates a new CallbackHandler.
func NewCallbackHandler(dispatcher *dispatch.Dispatcher) *CallbackHandler {
	return &CallbackHandler{
		dispatcher: dispatcher,
		validator:  validator.New(),
	}
}

// UpdateTaskResult handles POST /update-task-result/{jobID}. Repeated
// reports for the same job are acknowledged without effect.
func (h *CallbackHandler) UpdateTaskResult(w http.ResponseWriter, r *http.Request) {
	jobID, err := getPathUUID(r, "jobID")
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var req CallbackRequest
	if err := DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if (req.Result == nil) == (req.Error == "") {
		shared.RespondWithError(w, r, http.StatusBadRequest,
			"Exactly one of result or error must be provided")
		return
	}

	outcome := &domain.Outcome{Error: req.Error}
	if req.Result != nil {
		if err := h.validator.Struct(req.Result); err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
			return
		}
		outcome.Result = &domain.AnalysisResult{Sections: req.Result.Sections}
		if req.Result.Usage != nil {
			outcome.Usage = &domain.Usage{TokenCount: req.Result.Usage.TokenCount}
		}
	}

	if err := h.dispatcher.ApplyOutcome(r.Context(), jobID, outcome); err != nil {
		slog.Error("failed to apply job outcome", "error", err, "job_id", jobID)
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to record result")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
