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

// SettlementConfig holds the tunables of the settlement pipeline.
type SettlementConfig struct {
	LockTTL time.Duration
}

// SettlementService resolves expired markets from two weather providers,
// asking the arbiter only when they disagree.
type SettlementService struct {
	scanner   *scanner.Scanner
	primary   domain.WeatherProvider
	secondary domain.WeatherProvider
	arbiter   *consensusArbiter
	writer    domain.ChainWriter
	runner    *consensus.Runner
	cfg       SettlementConfig
	rep       *reporter
	logger    *slog.Logger
}

// NewSettlementService wires the settlement pipeline.
func NewSettlementService(
	sc *scanner.Scanner,
	primary, secondary domain.WeatherProvider,
	arbiter domain.Arbiter,
	writer domain.ChainWriter,
	runner *consensus.Runner,
	sinks Sinks,
	cfg SettlementConfig,
	logger *slog.Logger,
) *SettlementService {
	logger = logger.With(slog.String("component", "settlement"))
	s := &SettlementService{
		scanner:   sc,
		primary:   primary,
		secondary: secondary,
		writer:    writer,
		runner:    runner,
		cfg:       cfg,
		rep:       newReporter(sinks, logger),
		logger:    logger,
	}
	s.arbiter = &consensusArbiter{
		inner:     arbiter,
		runner:    runner,
		logger:    logger,
		onVerdict: s.onVerdict,
	}
	return s
}

// Handle adapts RunCycle to the scheduler.
func (s *SettlementService) Handle(ctx context.Context, trig domain.Trigger) error {
	_, err := s.RunCycle(ctx, trig)
	return err
}

// RunCycle settles every expired, unresolved market once. Markets are
// processed strictly in id order and a failure on one never stops the next.
// The summary is "settled:N/M" or "no-markets".
func (s *SettlementService) RunCycle(ctx context.Context, trig domain.Trigger) (domain.CycleReport, error) {
	return s.rep.run(ctx, domain.WorkflowSettlement, trig, s.cfg.LockTTL, s.settle)
}

func (s *SettlementService) settle(ctx context.Context, now time.Time, rep *domain.CycleReport) {
	res, err := s.scanner.SettlementCandidates(ctx, now)
	rep.Scanned = int(res.Total)
	if err != nil {
		s.logger.ErrorContext(ctx, "market scan failed", slog.String("error", err.Error()))
		rep.Error = err.Error()
		rep.Summary = "no-markets"
		return
	}
	if len(res.Selected) == 0 {
		s.logger.InfoContext(ctx, "no markets to settle", slog.Uint64("total", res.Total))
		rep.Summary = "no-markets"
		return
	}

	settled := 0
	for _, m := range res.Selected {
		if ctx.Err() != nil {
			break
		}
		if s.settleMarket(ctx, m, rep) {
			settled++
		}
	}
	rep.Summary = fmt.Sprintf("settled:%d/%d", settled, len(res.Selected))
}

func (s *SettlementService) settleMarket(ctx context.Context, m domain.Market, rep *domain.CycleReport) bool {
	log := s.logger.With(slog.Uint64("market_id", m.ID))
	loc := m.Location()

	a := observeWeather(ctx, s.runner, s.primary, loc)
	b := observeWeather(ctx, s.runner, s.secondary, loc)
	log.InfoContext(ctx, "weather observed",
		slog.String("location", loc.String()),
		slog.Any("primary", a),
		slog.Any("secondary", b),
	)

	d, ok := decision.Settle(ctx, m, a, b, s.arbiter)
	if !ok {
		log.WarnContext(ctx, "settlement deferred", slog.String("reason", d.Note))
		rep.Skipped++
		rep.Add(domain.MarketOutcome{MarketID: m.ID, Action: "defer", Detail: d.Note})
		s.rep.audit(ctx, "settlement.deferred", map[string]any{
			"cycle_id":  rep.ID,
			"market_id": m.ID,
			"primary":   a.Description,
			"secondary": b.Description,
		})
		title, body := notify.DeferredMessage(m, d.Note)
		s.rep.notify(ctx, notify.EventSettlementDeferred, title, body)
		return false
	}

	res := s.writer.ResolveMarket(ctx, m.ID, d.Outcome)

	log.InfoContext(ctx, "settlement summary",
		slog.String("question", m.Question),
		slog.String("primary", a.Description),
		slog.String("secondary", b.Description),
		slog.String("method", string(d.Method)),
		slog.String("source", d.Source),
		slog.String("outcome", domain.OutcomeLabel(d.Outcome)),
		slog.String("status", string(res.Status)),
		slog.String("tx_hash", res.TxHash),
	)

	s.rep.record(ctx, domain.DecisionRecord{
		CycleID:       rep.ID,
		Kind:          domain.DecisionSettlement,
		MarketID:      m.ID,
		Question:      m.Question,
		Outcome:       d.Outcome,
		Method:        string(d.Method),
		Justification: d.Note,
		Status:        res.Status,
		TxHash:        res.TxHash,
		Error:         res.ErrorMessage,
	})
	rep.Add(domain.MarketOutcome{
		MarketID: m.ID,
		Action:   "resolve " + domain.OutcomeLabel(d.Outcome),
		Detail:   d.Note,
		Status:   res.Status,
		TxHash:   res.TxHash,
		Error:    res.ErrorMessage,
	})

	if res.Status != domain.TxSuccess {
		log.ErrorContext(ctx, "resolveMarket failed",
			slog.String("status", string(res.Status)),
			slog.String("error", res.ErrorMessage),
		)
		rep.Failed++
		title, body := notify.WriteFailedMessage("resolveMarket", m.ID, res)
		s.rep.notify(ctx, notify.EventWriteFailed, title, body)
		return false
	}

	rep.Acted++
	title, body := notify.SettlementMessage(m.Question, d, res)
	s.rep.notify(ctx, notify.EventMarketSettled, title, body)
	return true
}

func (s *SettlementService) onVerdict(ctx context.Context, d domain.Dispute, v domain.ArbitrationVerdict) {
	s.rep.audit(ctx, "settlement.arbitration", map[string]any{
		"market_id": d.MarketID,
		"question":  d.Question,
		"location":  d.Location.String(),
		"primary":   d.Primary.Description,
		"secondary": d.Secondary.Description,
		"raining":   v.Raining,
		"fell_back": v.FellBack,
		"reason":    v.Reason,
	})
	title, body := notify.ArbitrationMessage(d, v)
	s.rep.notify(ctx, notify.EventArbitration, title, body)
}
