package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/localoracle/internal/domain"
)

// AuditHandler serves the append-only audit log.
type AuditHandler struct {
	store  domain.AuditStore
	logger *slog.Logger
}

// NewAuditHandler creates an AuditHandler.
func NewAuditHandler(store domain.AuditStore, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{store: store, logger: logger.With(slog.String("handler", "audit"))}
}

// ListAudit returns recent audit entries, optionally limited to one
// workflow, cycle or market.
// GET /api/audit?workflow=settlement|agent&cycle_id=...&market_id=...
func (h *AuditHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOpts(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	switch wf := domain.Workflow(q.Get("workflow")); wf {
	case "", domain.WorkflowSettlement, domain.WorkflowAgent:
		opts.Workflow = wf
	default:
		writeError(w, http.StatusBadRequest, "workflow must be settlement or agent")
		return
	}
	opts.CycleID = q.Get("cycle_id")
	if v := q.Get("market_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "market_id must be a non-negative integer")
			return
		}
		opts.MarketID = &id
	}

	entries, err := h.store.List(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list audit failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list audit log")
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
