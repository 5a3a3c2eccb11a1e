// Package scanner enumerates on-chain markets and selects the ones each
// pipeline should act on.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/localoracle/internal/domain"
)

// TradingWindow is how far ahead of its deadline a market becomes tradeable.
const TradingWindow = 24 * time.Hour

// IsSettleable reports whether a market has passed its deadline and still
// awaits an outcome. Markets with no deadline are never settled.
func IsSettleable(m domain.Market, now time.Time) bool {
	return !m.Resolved && m.EndTime > 0 && m.EndTime <= now.Unix()
}

// IsTradeable reports whether a market is open and closes within the
// trading window.
func IsTradeable(m domain.Market, now time.Time) bool {
	n := now.Unix()
	return !m.Resolved && m.EndTime > n && m.EndTime <= n+int64(TradingWindow/time.Second)
}

// Scanner reads every market record and filters it.
type Scanner struct {
	markets domain.MarketReader
	agent   domain.AgentReader
	logger  *slog.Logger
}

// New creates a Scanner. agent may be nil when only settlement candidates are
// needed.
func New(markets domain.MarketReader, agent domain.AgentReader, logger *slog.Logger) *Scanner {
	return &Scanner{
		markets: markets,
		agent:   agent,
		logger:  logger.With(slog.String("component", "scanner")),
	}
}

// Result is the outcome of one scan: the number of market records present
// and the ones that passed the filter, in ascending id order.
type Result struct {
	Total    uint64
	Selected []domain.Market
}

// SettlementCandidates returns the expired, unresolved markets.
func (s *Scanner) SettlementCandidates(ctx context.Context, now time.Time) (Result, error) {
	res, err := s.scan(ctx, func(m domain.Market) bool { return IsSettleable(m, now) })
	if err != nil {
		return res, err
	}
	for _, m := range res.Selected {
		s.logger.InfoContext(ctx, "market expired, needs settlement",
			slog.Uint64("market_id", m.ID),
			slog.String("question", m.Question),
		)
	}
	return res, nil
}

// TradingCandidates returns the open markets closing within TradingWindow on
// which the agent holds no position yet.
func (s *Scanner) TradingCandidates(ctx context.Context, now time.Time) (Result, error) {
	if s.agent == nil {
		return Result{}, fmt.Errorf("scanner: trading scan requires an agent reader")
	}
	res, err := s.scan(ctx, func(m domain.Market) bool { return IsTradeable(m, now) })
	if err != nil {
		return res, err
	}

	kept := res.Selected[:0]
	for _, m := range res.Selected {
		has, err := s.agent.HasPosition(ctx, m.ID)
		if err != nil {
			s.logger.WarnContext(ctx, "position lookup failed, skipping market",
				slog.Uint64("market_id", m.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if has {
			s.logger.InfoContext(ctx, "already holds a position, skipping",
				slog.Uint64("market_id", m.ID),
			)
			continue
		}
		s.logger.InfoContext(ctx, "market tradeable",
			slog.Uint64("market_id", m.ID),
			slog.String("question", m.Question),
			slog.Float64("hours_left", m.EndsAt().Sub(now).Hours()),
		)
		kept = append(kept, m)
	}
	res.Selected = kept
	return res, nil
}

func (s *Scanner) scan(ctx context.Context, keep func(domain.Market) bool) (Result, error) {
	total, err := s.markets.MarketCount(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("scanner: market count: %w", err)
	}
	res := Result{Total: total}

	for id := uint64(0); id < total; id++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		m, err := s.markets.GetMarket(ctx, id)
		if err != nil {
			s.logger.WarnContext(ctx, "market read failed, skipping",
				slog.Uint64("market_id", id),
				slog.String("error", err.Error()),
			)
			continue
		}
		if keep(m) {
			res.Selected = append(res.Selected, m)
		}
	}

	s.logger.InfoContext(ctx, "scan complete",
		slog.Uint64("total", total),
		slog.Int("selected", len(res.Selected)),
	)
	return res, nil
}
