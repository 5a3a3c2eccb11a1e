package handler

import (
	"net/http"
	"time"

	"github.com/alanyoungcy/localoracle/internal/domain"
)

// CycleSource exposes the latest report of each workflow.
type CycleSource interface {
	Snapshot() map[domain.Workflow]domain.CycleReport
}

// StatusInfo is the static part of the status response.
type StatusInfo struct {
	Mode              string   `json:"mode"`
	ChainID           int64    `json:"chain_id"`
	ChainSelectorName string   `json:"chain_selector_name,omitempty"`
	PredictionMarket  string   `json:"prediction_market"`
	MarketAgent       string   `json:"market_agent,omitempty"`
	Oracle            string   `json:"oracle"`
	Workflows         []string `json:"workflows"`
}

// StatusHandler serves the oracle's mode, contracts and last cycle of each
// workflow.
type StatusHandler struct {
	info      StatusInfo
	cycles    CycleSource
	startedAt time.Time
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(info StatusInfo, cycles CycleSource, startedAt time.Time) *StatusHandler {
	return &StatusHandler{info: info, cycles: cycles, startedAt: startedAt}
}

// GetStatus responds with the static info plus the most recent cycle reports.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	var last map[domain.Workflow]domain.CycleReport
	if h.cycles != nil {
		last = h.cycles.Snapshot()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"info":           h.info,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"last_cycles":    last,
	})
}
