package domain

import "time"

// Workflow names one of the two scheduled pipelines.
type Workflow string

const (
	WorkflowSettlement Workflow = "settlement"
	WorkflowAgent      Workflow = "agent"
)

// Trigger carries the context of one scheduled invocation.
type Trigger struct {
	ScheduledExecutionTime time.Time
}

// MarketOutcome is what a cycle did with one market.
type MarketOutcome struct {
	MarketID uint64   `json:"market_id"`
	Action   string   `json:"action"`
	Detail   string   `json:"detail,omitempty"`
	Status   TxStatus `json:"status,omitempty"`
	TxHash   string   `json:"tx_hash,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// CycleReport summarises one invocation of a pipeline.
type CycleReport struct {
	ID          string          `json:"id"`
	Workflow    Workflow        `json:"workflow"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  time.Time       `json:"finished_at"`
	Scanned     int             `json:"scanned"`
	Acted       int             `json:"acted"`
	Skipped     int             `json:"skipped"`
	Failed      int             `json:"failed"`
	Summary     string          `json:"summary"`
	Outcomes    []MarketOutcome `json:"outcomes,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// Add appends a market outcome to the report.
func (r *CycleReport) Add(o MarketOutcome) {
	r.Outcomes = append(r.Outcomes, o)
}
