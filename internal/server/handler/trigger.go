package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/localoracle/internal/scheduler"
)

// Triggerer fires a named job out of schedule.
type Triggerer interface {
	Trigger(name string) error
}

// TriggerHandler lets an operator run a workflow cycle immediately.
type TriggerHandler struct {
	jobs   Triggerer
	logger *slog.Logger
}

// NewTriggerHandler creates a TriggerHandler.
func NewTriggerHandler(jobs Triggerer, logger *slog.Logger) *TriggerHandler {
	return &TriggerHandler{jobs: jobs, logger: logger}
}

// TriggerCycle enqueues one run of the named workflow.
// POST /api/cycles/{workflow}/trigger
func (h *TriggerHandler) TriggerCycle(w http.ResponseWriter, r *http.Request) {
	wf := r.PathValue("workflow")
	err := h.jobs.Trigger(wf)
	if errors.Is(err, scheduler.ErrUnknownJob) {
		writeError(w, http.StatusNotFound, "workflow not running: "+wf)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.logger.InfoContext(r.Context(), "cycle trigger requested", slog.String("workflow", wf))
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":       "accepted",
		"workflow":     wf,
		"requested_at": time.Now().UTC().Format(time.RFC3339),
	})
}
