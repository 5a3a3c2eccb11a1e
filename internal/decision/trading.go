package decision

import (
	"fmt"
	"math/big"

	"github.com/alanyoungcy/localoracle/internal/domain"
)

const (
	// EdgeThresholdPP is the minimum |forecast - market| in percentage points
	// required to bet. The comparison is strict.
	EdgeThresholdPP = 20
	// BetSizeBps is the stake as a fraction of bankroll (1.5%).
	BetSizeBps = 150
	// HardCapBps is the agent contract's own per-bet limit (2%).
	HardCapBps = 200
	// MaxActiveBets is the maximum number of open positions.
	MaxActiveBets = 5

	bpsDenominator = 10_000
)

// SkipReason explains why a trade was not placed. The empty value means a
// trade was produced.
type SkipReason string

const (
	SkipNone             SkipReason = ""
	SkipNoBankroll       SkipReason = "no-bankroll"
	SkipMaxBets          SkipReason = "max-bets"
	SkipEmptyPool        SkipReason = "empty-pool"
	SkipNoForecast       SkipReason = "no-forecast"
	SkipInsufficientEdge SkipReason = "insufficient-edge"
	SkipZeroSize         SkipReason = "zero-size"
)

// CanTrade applies the portfolio gates. placed counts bets already placed
// in the current cycle on top of the snapshot's active bets.
func CanTrade(s domain.AgentPortfolioSnapshot, placed int) SkipReason {
	if s.Bankroll == nil || s.Bankroll.Sign() <= 0 {
		return SkipNoBankroll
	}
	if s.ActiveBets+uint64(placed) >= MaxActiveBets {
		return SkipMaxBets
	}
	return SkipNone
}

// MarketYesPct returns the implied YES probability of a pool in whole
// percent. The share is floored to basis points before rounding. The
// boolean is false for an empty pool.
func MarketYesPct(yes, no *big.Int) (int, bool) {
	total := new(big.Int)
	if yes != nil {
		total.Add(total, yes)
	}
	if no != nil {
		total.Add(total, no)
	}
	if total.Sign() == 0 {
		return 0, false
	}
	bps := new(big.Int)
	if yes != nil {
		bps.Mul(yes, big.NewInt(bpsDenominator))
	}
	bps.Quo(bps, total)
	return int((bps.Int64() + 50) / 100), true
}

// CombineForecasts averages the available forecasts, rounding half up. The
// boolean is false when neither is available.
func CombineForecasts(a, b domain.ForecastReading) (int, bool) {
	switch {
	case a.Available && b.Available:
		return (a.RainProbability + b.RainProbability + 1) / 2, true
	case a.Available:
		return a.RainProbability, true
	case b.Available:
		return b.RainProbability, true
	default:
		return 0, false
	}
}

// SizeBet returns floor(bankroll * BetSizeBps / 10000).
func SizeBet(bankroll *big.Int) *big.Int {
	if bankroll == nil || bankroll.Sign() <= 0 {
		return new(big.Int)
	}
	amt := new(big.Int).Mul(bankroll, big.NewInt(BetSizeBps))
	return amt.Quo(amt, big.NewInt(bpsDenominator))
}

// TradeInput is everything Evaluate needs for one market.
type TradeInput struct {
	Market          domain.Market
	Portfolio       domain.AgentPortfolioSnapshot
	PlacedThisCycle int
	Primary         domain.ForecastReading
	Secondary       domain.ForecastReading
}

// Evaluate decides whether to bet on a market and on which side.
func Evaluate(in TradeInput) (domain.TradeDecision, SkipReason) {
	if reason := CanTrade(in.Portfolio, in.PlacedThisCycle); reason != SkipNone {
		return domain.TradeDecision{}, reason
	}

	marketPct, ok := MarketYesPct(in.Market.TotalYesStake, in.Market.TotalNoStake)
	if !ok {
		return domain.TradeDecision{}, SkipEmptyPool
	}

	combined, ok := CombineForecasts(in.Primary, in.Secondary)
	if !ok {
		return domain.TradeDecision{}, SkipNoForecast
	}

	edge := combined - marketPct
	if abs(edge) <= EdgeThresholdPP {
		return domain.TradeDecision{
			MarketID:     in.Market.ID,
			CombinedPct:  combined,
			MarketYesPct: marketPct,
			Edge:         edge,
		}, SkipInsufficientEdge
	}

	amount := SizeBet(in.Portfolio.Bankroll)
	if amount.Sign() == 0 {
		return domain.TradeDecision{}, SkipZeroSize
	}

	return domain.TradeDecision{
		MarketID:      in.Market.ID,
		Side:          edge > 0,
		Amount:        amount,
		Justification: Justification(in.Primary, in.Secondary, combined, marketPct, edge),
		CombinedPct:   combined,
		MarketYesPct:  marketPct,
		Edge:          edge,
	}, SkipNone
}

// Justification renders the reasoning string stored on-chain with a bet,
// e.g. "OWM: 60% | WeatherAPI: N/A | Combined: 60% vs market 30% → +30 pp edge".
func Justification(a, b domain.ForecastReading, combined, marketPct, edge int) string {
	return fmt.Sprintf("OWM: %s | WeatherAPI: %s | Combined: %d%% vs market %d%% → %+d pp edge",
		pct(a), pct(b), combined, marketPct, edge)
}

func pct(f domain.ForecastReading) string {
	if !f.Available {
		return "N/A"
	}
	return fmt.Sprintf("%d%%", f.RainProbability)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
