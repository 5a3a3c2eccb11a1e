package domain

import (
	"context"
	"strings"
	"time"
)

// ListOpts provides pagination and filtering for list queries. Kind applies
// to decisions; Workflow, CycleID and MarketID to audit entries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Kind   DecisionKind

	Workflow Workflow
	CycleID  string
	MarketID *uint64
}

// DecisionKind separates settlement rows from trading rows.
type DecisionKind string

const (
	DecisionSettlement DecisionKind = "settlement"
	DecisionTrade      DecisionKind = "trade"
)

// DecisionRecord is the persisted audit row for every on-chain action the
// oracle or the agent attempted.
type DecisionRecord struct {
	ID            string       `json:"id"`
	CycleID       string       `json:"cycle_id"`
	Kind          DecisionKind `json:"kind"`
	MarketID      uint64       `json:"market_id"`
	Question      string       `json:"question"`
	Outcome       bool         `json:"outcome"`
	Method        string       `json:"method,omitempty"`
	Amount        string       `json:"amount,omitempty"`
	Justification string       `json:"justification"`
	Status        TxStatus     `json:"status"`
	TxHash        string       `json:"tx_hash,omitempty"`
	Error         string       `json:"error,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

// DecisionStore persists decision records.
type DecisionStore interface {
	Insert(ctx context.Context, rec DecisionRecord) error
	ListRecent(ctx context.Context, opts ListOpts) ([]DecisionRecord, error)
}

// AuditEntry is a single audit log row. Workflow, CycleID and MarketID are
// lifted out of the event name and detail so the log can be filtered by them.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Workflow  Workflow       `json:"workflow"`
	CycleID   string         `json:"cycle_id,omitempty"`
	MarketID  *uint64        `json:"market_id,omitempty"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditTags derives the indexed columns of an audit row. Events are named
// "<workflow>.<what>"; cycle_id and market_id are read from detail when
// present.
func AuditTags(event string, detail map[string]any) (wf Workflow, cycleID string, marketID *uint64) {
	if prefix, _, ok := strings.Cut(event, "."); ok {
		wf = Workflow(prefix)
	}
	if id, ok := detail["cycle_id"].(string); ok {
		cycleID = id
	}
	switch id := detail["market_id"].(type) {
	case uint64:
		marketID = &id
	case int:
		if id >= 0 {
			u := uint64(id)
			marketID = &u
		}
	case int64:
		if id >= 0 {
			u := uint64(id)
			marketID = &u
		}
	case float64:
		if id >= 0 {
			u := uint64(id)
			marketID = &u
		}
	}
	return wf, cycleID, marketID
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
