package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alanyoungcy/localoracle/internal/domain"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "oracle.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if err := Migrate(db); err != nil {
		t.Fatal(err)
	}
	return db
}

func TestMigrateIdempotent(t *testing.T) {
	db := openTestDB(t)
	if err := Migrate(db); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

func TestDecisionStoreInsertAndList(t *testing.T) {
	ctx := context.Background()
	store := NewDecisionStore(openTestDB(t))
	base := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

	recs := []domain.DecisionRecord{
		{CycleID: "c1", Kind: domain.DecisionSettlement, MarketID: 1, Question: "Rain in Paris?",
			Outcome: true, Method: string(domain.MethodUnanimous), Status: domain.TxSuccess,
			TxHash: "0xaa", CreatedAt: base},
		{CycleID: "c2", Kind: domain.DecisionTrade, MarketID: 2, Outcome: false, Amount: "1500000",
			Justification: "edge", Status: domain.TxReverted, Error: "market closed",
			CreatedAt: base.Add(time.Minute)},
		{CycleID: "c3", Kind: domain.DecisionSettlement, MarketID: 3, Outcome: false,
			Status: domain.TxFailed, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, r := range recs {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	all, err := store.ListRecent(ctx, domain.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d records, want 3", len(all))
	}
	if all[0].MarketID != 3 || all[2].MarketID != 1 {
		t.Errorf("order = %d,%d,%d, want newest first", all[0].MarketID, all[1].MarketID, all[2].MarketID)
	}
	if all[2].ID == "" || !all[2].Outcome || all[2].TxHash != "0xaa" || !all[2].CreatedAt.Equal(base) {
		t.Errorf("round-tripped record = %+v", all[2])
	}

	trades, err := store.ListRecent(ctx, domain.ListOpts{Kind: domain.DecisionTrade})
	if err != nil {
		t.Fatal(err)
	}
	if len(trades) != 1 || trades[0].Amount != "1500000" || trades[0].Status != domain.TxReverted {
		t.Errorf("trades = %+v", trades)
	}

	page, err := store.ListRecent(ctx, domain.ListOpts{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 1 || page[0].MarketID != 2 {
		t.Errorf("page = %+v, want market 2", page)
	}

	since := base.Add(90 * time.Second)
	recent, err := store.ListRecent(ctx, domain.ListOpts{Since: &since})
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 1 || recent[0].MarketID != 3 {
		t.Errorf("since filter = %+v", recent)
	}
}

func TestAuditStore(t *testing.T) {
	ctx := context.Background()
	store := NewAuditStore(openTestDB(t))
	tick := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}

	logs := []struct {
		event  string
		detail map[string]any
	}{
		{"settlement.arbitration", map[string]any{"market_id": uint64(7), "fell_back": true}},
		{"settlement.cycle", map[string]any{"cycle_id": "c-1", "summary": "settled:1/2"}},
		{"agent.cycle", map[string]any{"cycle_id": "c-2", "summary": "analysed:3"}},
	}
	for _, l := range logs {
		if err := store.Log(ctx, l.event, l.detail); err != nil {
			t.Fatal(err)
		}
	}

	seven := uint64(7)
	tests := []struct {
		name string
		opts domain.ListOpts
		want []string
	}{
		{"all newest first", domain.ListOpts{Limit: 10}, []string{"agent.cycle", "settlement.cycle", "settlement.arbitration"}},
		{"workflow", domain.ListOpts{Workflow: domain.WorkflowSettlement}, []string{"settlement.cycle", "settlement.arbitration"}},
		{"cycle", domain.ListOpts{CycleID: "c-2"}, []string{"agent.cycle"}},
		{"market", domain.ListOpts{MarketID: &seven}, []string{"settlement.arbitration"}},
		{"offset", domain.ListOpts{Offset: 2}, []string{"settlement.arbitration"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := store.List(ctx, tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			var got []string
			for _, e := range entries {
				got = append(got, e.Event)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("events = %v, want %v", got, tt.want)
			}
		})
	}

	arb, err := store.List(ctx, domain.ListOpts{MarketID: &seven})
	if err != nil {
		t.Fatal(err)
	}
	if e := arb[0]; e.Workflow != domain.WorkflowSettlement || e.MarketID == nil || *e.MarketID != 7 || e.Detail["fell_back"] != true {
		t.Errorf("entry = %+v", e)
	}
}

func TestMigrateAddsAuditColumns(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "old.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := db.Exec(`CREATE TABLE audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event TEXT NOT NULL,
		detail TEXT,
		created_at INTEGER NOT NULL
	)`); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`INSERT INTO audit_log (event, detail, created_at) VALUES ('settlement.cycle', '{}', 1)`); err != nil {
		t.Fatal(err)
	}

	if err := Migrate(db); err != nil {
		t.Fatal(err)
	}
	store := NewAuditStore(db)
	if err := store.Log(context.Background(), "agent.cycle", map[string]any{"cycle_id": "c-9"}); err != nil {
		t.Fatal(err)
	}
	entries, err := store.List(context.Background(), domain.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].CycleID != "c-9" || entries[1].Workflow != "" {
		t.Errorf("entries = %+v", entries)
	}
}
