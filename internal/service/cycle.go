package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/localoracle/internal/domain"
	"github.com/alanyoungcy/localoracle/internal/notify"
)

// cycleBody does the per-market work of one invocation. now is the trigger's
// scheduled time, so every replica evaluates the same market windows.
type cycleBody func(ctx context.Context, now time.Time, rep *domain.CycleReport)

// reporter owns the parts of a cycle both pipelines share: the cross-replica
// lock, decision records, the bus, the archive and notifications. Failures
// of these backends are logged and never abort a cycle.
type reporter struct {
	sinks  Sinks
	logger *slog.Logger
	now    func() time.Time
}

func newReporter(sinks Sinks, logger *slog.Logger) *reporter {
	return &reporter{sinks: sinks.withDefaults(), logger: logger, now: time.Now}
}

// run executes body under the workflow's cycle lock and publishes the
// resulting report. Only a missing scheduled time is returned as an error.
func (r *reporter) run(ctx context.Context, wf domain.Workflow, trig domain.Trigger, lockTTL time.Duration, body cycleBody) (domain.CycleReport, error) {
	if trig.ScheduledExecutionTime.IsZero() {
		r.logger.ErrorContext(ctx, "trigger rejected", slog.String("error", domain.ErrMissingScheduledTime.Error()))
		return domain.CycleReport{Workflow: wf}, domain.ErrMissingScheduledTime
	}

	rep := domain.CycleReport{
		ID:          uuid.NewString(),
		Workflow:    wf,
		ScheduledAt: trig.ScheduledExecutionTime.UTC(),
		StartedAt:   r.now().UTC(),
	}
	log := r.logger.With(slog.String("cycle_id", rep.ID))

	release, err := r.sinks.Locks.Acquire(ctx, "cycle:"+string(wf), lockTTL)
	if err != nil {
		rep.FinishedAt = r.now().UTC()
		if errors.Is(err, domain.ErrLockHeld) {
			log.InfoContext(ctx, "cycle skipped, another instance holds the lock")
			rep.Summary = "lock-held"
			return rep, nil
		}
		log.ErrorContext(ctx, "cycle lock unavailable, skipping", slog.String("error", err.Error()))
		rep.Summary = "lock-error"
		rep.Error = err.Error()
		r.finish(ctx, rep)
		return rep, nil
	}
	defer release()

	log.InfoContext(ctx, "cycle started", slog.Time("scheduled_at", rep.ScheduledAt))
	body(ctx, rep.ScheduledAt, &rep)
	rep.FinishedAt = r.now().UTC()

	log.InfoContext(ctx, "cycle finished",
		slog.String("summary", rep.Summary),
		slog.Int("scanned", rep.Scanned),
		slog.Int("acted", rep.Acted),
		slog.Int("skipped", rep.Skipped),
		slog.Int("failed", rep.Failed),
		slog.Duration("took", rep.FinishedAt.Sub(rep.StartedAt)),
	)
	r.finish(ctx, rep)
	return rep, nil
}

// finish tracks, archives and broadcasts a completed report.
func (r *reporter) finish(ctx context.Context, rep domain.CycleReport) {
	r.sinks.Tracker.Record(rep)

	if err := r.sinks.Archive.ArchiveCycle(ctx, rep); err != nil {
		r.logger.WarnContext(ctx, "cycle archive failed",
			slog.String("cycle_id", rep.ID),
			slog.String("error", err.Error()),
		)
	}
	r.publish(ctx, domain.ChannelCycle, rep)
	r.audit(ctx, string(rep.Workflow)+".cycle", map[string]any{
		"cycle_id": rep.ID,
		"summary":  rep.Summary,
		"scanned":  rep.Scanned,
		"acted":    rep.Acted,
		"skipped":  rep.Skipped,
		"failed":   rep.Failed,
		"error":    rep.Error,
	})
	if rep.Error != "" {
		title, body := notify.CycleErrorMessage(rep)
		r.notify(ctx, notify.EventCycleError, title, body)
	}
}

// record persists a decision and streams it to live subscribers.
func (r *reporter) record(ctx context.Context, rec domain.DecisionRecord) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now().UTC()
	}
	if err := r.sinks.Decisions.Insert(ctx, rec); err != nil {
		r.logger.WarnContext(ctx, "decision insert failed",
			slog.Uint64("market_id", rec.MarketID),
			slog.String("error", err.Error()),
		)
	}

	payload := r.publish(ctx, domain.ChannelDecision, rec)
	if payload == nil {
		return
	}
	if err := r.sinks.Bus.StreamAppend(ctx, domain.StreamDecisions, payload); err != nil {
		r.logger.WarnContext(ctx, "decision stream append failed", slog.String("error", err.Error()))
	}
}

// publish marshals v onto channel and returns the payload, or nil when
// marshalling failed.
func (r *reporter) publish(ctx context.Context, channel string, v any) []byte {
	payload, err := json.Marshal(v)
	if err != nil {
		r.logger.WarnContext(ctx, "bus payload marshal failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if err := r.sinks.Bus.Publish(ctx, channel, payload); err != nil {
		r.logger.WarnContext(ctx, "bus publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
	return payload
}

func (r *reporter) audit(ctx context.Context, event string, detail map[string]any) {
	if err := r.sinks.Audit.Log(ctx, event, detail); err != nil {
		r.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (r *reporter) notify(ctx context.Context, event, title, body string) {
	if err := r.sinks.Notifier.Notify(ctx, event, title, body); err != nil {
		r.logger.WarnContext(ctx, "notification failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
