package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/localoracle/internal/consensus"
	"github.com/alanyoungcy/localoracle/internal/decision"
	"github.com/alanyoungcy/localoracle/internal/domain"
	"github.com/alanyoungcy/localoracle/internal/notify"
	"github.com/alanyoungcy/localoracle/internal/scanner"
)

// AgentConfig holds the tunables of the trading pipeline.
type AgentConfig struct {
	LockTTL time.Duration
}

// AgentService bets on markets closing within a day when the combined
// forecast disagrees with the market's implied odds by more than the edge
// threshold.
type AgentService struct {
	scanner   *scanner.Scanner
	agent     domain.AgentReader
	primary   domain.WeatherProvider
	secondary domain.WeatherProvider
	writer    domain.ChainWriter
	runner    *consensus.Runner
	cfg       AgentConfig
	rep       *reporter
	logger    *slog.Logger
}

// NewAgentService wires the trading pipeline.
func NewAgentService(
	sc *scanner.Scanner,
	agent domain.AgentReader,
	primary, secondary domain.WeatherProvider,
	writer domain.ChainWriter,
	runner *consensus.Runner,
	sinks Sinks,
	cfg AgentConfig,
	logger *slog.Logger,
) *AgentService {
	logger = logger.With(slog.String("component", "agent"))
	return &AgentService{
		scanner:   sc,
		agent:     agent,
		primary:   primary,
		secondary: secondary,
		writer:    writer,
		runner:    runner,
		cfg:       cfg,
		rep:       newReporter(sinks, logger),
		logger:    logger,
	}
}

// Handle adapts RunCycle to the scheduler.
func (s *AgentService) Handle(ctx context.Context, trig domain.Trigger) error {
	_, err := s.RunCycle(ctx, trig)
	return err
}

// RunCycle runs one trading pass. The portfolio is read once and reused for
// every market; bets placed during the cycle count against the active-bet
// cap. The summary is "analysed:N", "no-markets", "no-bankroll",
// "max-bets" or "stats-error".
func (s *AgentService) RunCycle(ctx context.Context, trig domain.Trigger) (domain.CycleReport, error) {
	return s.rep.run(ctx, domain.WorkflowAgent, trig, s.cfg.LockTTL, s.trade)
}

func (s *AgentService) trade(ctx context.Context, now time.Time, rep *domain.CycleReport) {
	snap, err := s.agent.AgentStats(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "agent stats read failed", slog.String("error", err.Error()))
		rep.Error = err.Error()
		rep.Summary = "stats-error"
		return
	}
	s.logger.InfoContext(ctx, "portfolio",
		slog.String("bankroll", domain.FormatUSDC(snap.Bankroll)+" USDC"),
		slog.String("active_bets", fmt.Sprintf("%d / %d", snap.ActiveBets, decision.MaxActiveBets)),
		slog.Uint64("wins", snap.Wins),
		slog.Uint64("losses", snap.Losses),
		slog.String("pnl", domain.FormatUSDC(snap.TotalPnL)+" USDC"),
	)

	if reason := decision.CanTrade(snap, 0); reason != decision.SkipNone {
		s.logger.InfoContext(ctx, "not trading this cycle", slog.String("reason", string(reason)))
		rep.Summary = string(reason)
		return
	}

	res, err := s.scanner.TradingCandidates(ctx, now)
	rep.Scanned = int(res.Total)
	if err != nil {
		s.logger.ErrorContext(ctx, "market scan failed", slog.String("error", err.Error()))
		rep.Error = err.Error()
		rep.Summary = "no-markets"
		return
	}
	if len(res.Selected) == 0 {
		s.logger.InfoContext(ctx, "no tradeable markets", slog.Uint64("total", res.Total))
		rep.Summary = "no-markets"
		return
	}

	placed, analysed := 0, 0
	for _, m := range res.Selected {
		if ctx.Err() != nil {
			break
		}
		analysed++
		stop := s.tradeMarket(ctx, m, snap, &placed, rep)
		if stop {
			break
		}
	}
	rep.Summary = fmt.Sprintf("analysed:%d", analysed)
}

// tradeMarket evaluates one market and places a bet when warranted. It
// reports true once the active-bet cap is reached.
func (s *AgentService) tradeMarket(ctx context.Context, m domain.Market, snap domain.AgentPortfolioSnapshot, placed *int, rep *domain.CycleReport) bool {
	log := s.logger.With(slog.Uint64("market_id", m.ID))
	skip := func(reason decision.SkipReason) bool {
		rep.Skipped++
		rep.Add(domain.MarketOutcome{MarketID: m.ID, Action: "skip", Detail: string(reason)})
		return false
	}

	// Cap and pool gates run before any forecast request.
	if decision.CanTrade(snap, *placed) == decision.SkipMaxBets {
		log.InfoContext(ctx, "active bet cap reached, stopping", slog.Int("placed_this_cycle", *placed))
		return true
	}
	if _, ok := decision.MarketYesPct(m.TotalYesStake, m.TotalNoStake); !ok {
		log.InfoContext(ctx, "no bet", slog.String("reason", string(decision.SkipEmptyPool)))
		return skip(decision.SkipEmptyPool)
	}

	loc := m.Location()
	a := observeForecast(ctx, s.runner, s.primary, loc)
	b := observeForecast(ctx, s.runner, s.secondary, loc)
	log.InfoContext(ctx, "forecasts",
		slog.String("question", m.Question),
		slog.String("yes_stake", domain.FormatUSDC(m.TotalYesStake)),
		slog.String("no_stake", domain.FormatUSDC(m.TotalNoStake)),
		slog.Any("primary", a),
		slog.Any("secondary", b),
	)

	td, reason := decision.Evaluate(decision.TradeInput{
		Market:          m,
		Portfolio:       snap,
		PlacedThisCycle: *placed,
		Primary:         a,
		Secondary:       b,
	})
	switch reason {
	case decision.SkipNone:
	case decision.SkipMaxBets:
		log.InfoContext(ctx, "active bet cap reached, stopping", slog.Int("placed_this_cycle", *placed))
		return true
	default:
		log.InfoContext(ctx, "no bet",
			slog.String("reason", string(reason)),
			slog.Int("combined_pct", td.CombinedPct),
			slog.Int("market_pct", td.MarketYesPct),
			slog.Int("edge", td.Edge),
		)
		return skip(reason)
	}

	log.InfoContext(ctx, "placing bet",
		slog.String("side", domain.OutcomeLabel(td.Side)),
		slog.String("amount", domain.FormatUSDC(td.Amount)+" USDC"),
		slog.String("justification", td.Justification),
	)
	res := s.writer.PlaceBet(ctx, td)

	// A FAILED write with a hash may still have been mined, so it counts
	// toward the cap like a successful one.
	if res.Status == domain.TxSuccess || (res.Status == domain.TxFailed && res.TxHash != "") {
		*placed++
	}

	s.rep.record(ctx, domain.DecisionRecord{
		CycleID:       rep.ID,
		Kind:          domain.DecisionTrade,
		MarketID:      m.ID,
		Question:      m.Question,
		Outcome:       td.Side,
		Amount:        td.Amount.String(),
		Justification: td.Justification,
		Status:        res.Status,
		TxHash:        res.TxHash,
		Error:         res.ErrorMessage,
	})
	rep.Add(domain.MarketOutcome{
		MarketID: m.ID,
		Action:   "bet " + domain.OutcomeLabel(td.Side),
		Detail:   td.Justification,
		Status:   res.Status,
		TxHash:   res.TxHash,
		Error:    res.ErrorMessage,
	})

	if res.Status != domain.TxSuccess {
		log.ErrorContext(ctx, "placeBet failed",
			slog.String("status", string(res.Status)),
			slog.String("error", res.ErrorMessage),
		)
		rep.Failed++
		title, body := notify.WriteFailedMessage("placeBet", m.ID, res)
		s.rep.notify(ctx, notify.EventWriteFailed, title, body)
		return false
	}

	log.InfoContext(ctx, "bet placed", slog.String("tx_hash", res.TxHash))
	rep.Acted++
	title, body := notify.BetMessage(td, res)
	s.rep.notify(ctx, notify.EventBetPlaced, title, body)
	return false
}
