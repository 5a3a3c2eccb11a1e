package service

import (
	"sync"

	"github.com/alanyoungcy/localoracle/internal/domain"
)

// CycleTracker remembers the most recent report of each workflow for the
// status API.
type CycleTracker struct {
	mu   sync.RWMutex
	last map[domain.Workflow]domain.CycleReport
}

// NewCycleTracker creates an empty tracker.
func NewCycleTracker() *CycleTracker {
	return &CycleTracker{last: make(map[domain.Workflow]domain.CycleReport)}
}

// Record stores r as the latest report of its workflow.
func (t *CycleTracker) Record(r domain.CycleReport) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last[r.Workflow] = r
}

// Last returns the latest report of w.
func (t *CycleTracker) Last(w domain.Workflow) (domain.CycleReport, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.last[w]
	return r, ok
}

// Snapshot returns a copy of every workflow's latest report.
func (t *CycleTracker) Snapshot() map[domain.Workflow]domain.CycleReport {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[domain.Workflow]domain.CycleReport, len(t.last))
	for w, r := range t.last {
		out[w] = r
	}
	return out
}
