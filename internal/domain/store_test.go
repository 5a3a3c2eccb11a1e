package domain

import "testing"

func TestAuditTags(t *testing.T) {
	tests := []struct {
		name       string
		event      string
		detail     map[string]any
		wantWF     Workflow
		wantCycle  string
		wantMarket int64 // -1 for none
	}{
		{"cycle", "agent.cycle", map[string]any{"cycle_id": "c-1"}, WorkflowAgent, "c-1", -1},
		{"market uint64", "settlement.arbitration", map[string]any{"market_id": uint64(4)}, WorkflowSettlement, "", 4},
		{"market int", "settlement.deferred", map[string]any{"cycle_id": "c-2", "market_id": 9}, WorkflowSettlement, "c-2", 9},
		{"decoded json number", "settlement.deferred", map[string]any{"market_id": float64(3)}, WorkflowSettlement, "", 3},
		{"no prefix", "startup", nil, "", "", -1},
		{"wrong types ignored", "agent.cycle", map[string]any{"cycle_id": 5, "market_id": "x"}, WorkflowAgent, "", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wf, cycle, market := AuditTags(tt.event, tt.detail)
			if wf != tt.wantWF || cycle != tt.wantCycle {
				t.Errorf("workflow, cycle = %q, %q", wf, cycle)
			}
			switch {
			case tt.wantMarket < 0 && market != nil:
				t.Errorf("market = %d, want none", *market)
			case tt.wantMarket >= 0 && (market == nil || *market != uint64(tt.wantMarket)):
				t.Errorf("market = %v, want %d", market, tt.wantMarket)
			}
		})
	}
}
