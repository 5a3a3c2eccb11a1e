package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/localoracle/internal/domain"
)

// DecisionHandler serves the persisted settlement and trade decisions.
type DecisionHandler struct {
	store  domain.DecisionStore
	logger *slog.Logger
}

// NewDecisionHandler creates a DecisionHandler.
func NewDecisionHandler(store domain.DecisionStore, logger *slog.Logger) *DecisionHandler {
	return &DecisionHandler{store: store, logger: logger.With(slog.String("handler", "decisions"))}
}

// ListDecisions returns recent decisions, newest first.
// GET /api/decisions?kind=settlement|trade&since=RFC3339&limit=&offset=
func (h *DecisionHandler) ListDecisions(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOpts(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	switch kind := domain.DecisionKind(r.URL.Query().Get("kind")); kind {
	case "", domain.DecisionSettlement, domain.DecisionTrade:
		opts.Kind = kind
	default:
		writeError(w, http.StatusBadRequest, "kind must be settlement or trade")
		return
	}

	recs, err := h.store.ListRecent(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list decisions failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list decisions")
		return
	}
	if recs == nil {
		recs = []domain.DecisionRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"decisions": recs,
		"limit":     opts.Limit,
		"offset":    opts.Offset,
	})
}
