// Package app provides the top-level application lifecycle. It wires the
// chain, weather, arbiter and storage dependencies, registers the pipelines
// the configured mode calls for, and runs them with the status server.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/localoracle/internal/config"
	"github.com/alanyoungcy/localoracle/internal/domain"
	"github.com/alanyoungcy/localoracle/internal/scanner"
	"github.com/alanyoungcy/localoracle/internal/scheduler"
	"github.com/alanyoungcy/localoracle/internal/server"
	"github.com/alanyoungcy/localoracle/internal/server/handler"
	"github.com/alanyoungcy/localoracle/internal/server/ws"
	"github.com/alanyoungcy/localoracle/internal/service"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg       *config.Config
	logger    *slog.Logger
	closers   []func()
	startedAt time.Time
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:       cfg,
		logger:    logger,
		startedAt: time.Now().UTC(),
	}
}

// Run wires the dependencies, starts the scheduled pipelines and, when
// enabled, the status server. It blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	deps, sched, err := a.setup(ctx)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(ctx) })

	if a.cfg.Server.Enabled {
		var hub *ws.Hub
		if deps.Sinks.Bus != nil {
			hub = ws.NewHub(deps.Sinks.Bus, a.cfg.Server.CORSOrigins, a.logger)
			g.Go(func() error { return hub.Run(ctx) })
		}
		srv := server.NewServer(server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIKey:      a.cfg.Server.APIKey,
		}, a.handlers(deps, sched), hub, a.logger)
		g.Go(func() error { return srv.Run(ctx) })
	}

	return g.Wait()
}

// RunOnce fires every configured pipeline a single time with the current time
// as the scheduled execution time, then returns.
func (a *App) RunOnce(ctx context.Context) error {
	_, sched, err := a.setup(ctx)
	if err != nil {
		return err
	}
	return sched.RunOnce(ctx)
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) setup(ctx context.Context) (*Dependencies, *scheduler.Scheduler, error) {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.Int64("chain_id", a.cfg.Chain.ChainID),
		slog.String("chain", a.cfg.Chain.ChainSelectorName),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	sched, err := a.schedule(deps)
	if err != nil {
		return nil, nil, err
	}
	return deps, sched, nil
}

// schedule registers one job per pipeline the mode runs. Job names are the
// workflow names so the trigger endpoint can address them.
func (a *App) schedule(deps *Dependencies) (*scheduler.Scheduler, error) {
	sched := scheduler.New(a.logger)
	sc := scanner.New(deps.Reader, deps.Reader, a.logger)

	if a.cfg.RunsSettlement() {
		settle := service.NewSettlementService(
			sc, deps.Primary, deps.Secondary, deps.Arbiter, deps.Writer, deps.Runner, deps.Sinks,
			service.SettlementConfig{LockTTL: a.cfg.Settlement.LockTTL.Duration},
			a.logger,
		)
		if err := sched.Register(scheduler.Job{
			Name:     string(domain.WorkflowSettlement),
			Schedule: a.cfg.Settlement.Schedule,
			Handler:  settle.Handle,
		}); err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
	}

	if a.cfg.RunsAgent() {
		agent := service.NewAgentService(
			sc, deps.Reader, deps.Primary, deps.Secondary, deps.Writer, deps.Runner, deps.Sinks,
			service.AgentConfig{LockTTL: a.cfg.Agent.LockTTL.Duration},
			a.logger,
		)
		if err := sched.Register(scheduler.Job{
			Name:     string(domain.WorkflowAgent),
			Schedule: a.cfg.Agent.Schedule,
			Handler:  agent.Handle,
		}); err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
	}
	return sched, nil
}

func (a *App) handlers(deps *Dependencies, sched *scheduler.Scheduler) server.Handlers {
	h := server.Handlers{
		Health: handler.NewHealthHandler(deps.Checks, a.logger),
		Status: handler.NewStatusHandler(handler.StatusInfo{
			Mode:              a.cfg.Mode,
			ChainID:           a.cfg.Chain.ChainID,
			ChainSelectorName: a.cfg.Chain.ChainSelectorName,
			PredictionMarket:  a.cfg.Chain.PredictionMarketAddress,
			MarketAgent:       a.cfg.Chain.MarketAgentAddress,
			Oracle:            deps.Signer.Address().Hex(),
			Workflows:         sched.Jobs(),
		}, deps.Sinks.Tracker, a.startedAt),
		Trigger: handler.NewTriggerHandler(sched, a.logger),
	}
	if deps.Sinks.Decisions != nil {
		h.Decisions = handler.NewDecisionHandler(deps.Sinks.Decisions, a.logger)
	}
	if deps.Sinks.Audit != nil {
		h.Audit = handler.NewAuditHandler(deps.Sinks.Audit, a.logger)
	}
	return h
}
