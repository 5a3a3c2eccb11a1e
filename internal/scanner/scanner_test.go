package scanner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alanyoungcy/localoracle/internal/domain"
)

var now = time.Unix(1_760_000_000, 0)

type fakeChain struct {
	markets   map[uint64]domain.Market
	count     uint64
	positions map[uint64]bool
}

func (f *fakeChain) MarketCount(context.Context) (uint64, error) { return f.count, nil }

func (f *fakeChain) GetMarket(_ context.Context, id uint64) (domain.Market, error) {
	m, ok := f.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrEmptyResponse
	}
	return m, nil
}

func (f *fakeChain) AgentStats(context.Context) (domain.AgentPortfolioSnapshot, error) {
	return domain.AgentPortfolioSnapshot{}, errors.New("unused")
}

func (f *fakeChain) HasPosition(_ context.Context, id uint64) (bool, error) {
	return f.positions[id], nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestIsSettleable(t *testing.T) {
	n := now.Unix()
	tests := []struct {
		name string
		m    domain.Market
		want bool
	}{
		{"expired", domain.Market{EndTime: n - 60}, true},
		{"deadline is now", domain.Market{EndTime: n}, true},
		{"still open", domain.Market{EndTime: n + 1}, false},
		{"already resolved", domain.Market{EndTime: n - 60, Resolved: true}, false},
		{"no deadline", domain.Market{EndTime: 0}, false},
	}
	for _, tt := range tests {
		if got := IsSettleable(tt.m, now); got != tt.want {
			t.Errorf("%s: IsSettleable = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestIsTradeable(t *testing.T) {
	n := now.Unix()
	tests := []struct {
		name string
		m    domain.Market
		want bool
	}{
		{"closes in an hour", domain.Market{EndTime: n + 3600}, true},
		{"closes at window edge", domain.Market{EndTime: n + 24*3600}, true},
		{"beyond window", domain.Market{EndTime: n + 24*3600 + 1}, false},
		{"deadline passed", domain.Market{EndTime: n}, false},
		{"resolved", domain.Market{EndTime: n + 3600, Resolved: true}, false},
	}
	for _, tt := range tests {
		if got := IsTradeable(tt.m, now); got != tt.want {
			t.Errorf("%s: IsTradeable = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSettlementCandidatesSkipsEmptyRecords(t *testing.T) {
	n := now.Unix()
	f := &fakeChain{
		count: 4,
		markets: map[uint64]domain.Market{
			0: {ID: 0, EndTime: n - 10},
			1: {ID: 1, EndTime: n - 10, Resolved: true},
			3: {ID: 3, EndTime: n - 10},
		},
	}
	res, err := New(f, f, discard()).SettlementCandidates(context.Background(), now)
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 4 || len(res.Selected) != 2 || res.Selected[0].ID != 0 || res.Selected[1].ID != 3 {
		t.Errorf("SettlementCandidates = %+v", res)
	}
}

func TestTradingCandidatesDropsHeldPositions(t *testing.T) {
	n := now.Unix()
	f := &fakeChain{
		count: 3,
		markets: map[uint64]domain.Market{
			0: {ID: 0, EndTime: n + 3600},
			1: {ID: 1, EndTime: n + 7200},
			2: {ID: 2, EndTime: n + 48*3600},
		},
		positions: map[uint64]bool{0: true},
	}
	res, err := New(f, f, discard()).TradingCandidates(context.Background(), now)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Selected) != 1 || res.Selected[0].ID != 1 {
		t.Errorf("TradingCandidates = %+v", res.Selected)
	}
}
