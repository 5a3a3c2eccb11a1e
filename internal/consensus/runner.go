package consensus

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// DefaultNodes is the redundancy used when none is configured.
const DefaultNodes = 3

// Runner executes fetches redundantly. It holds no state between calls.
type Runner struct {
	nodes  int
	logger *slog.Logger
}

// NewRunner creates a Runner that performs each fetch on the given number of
// nodes. Values below one fall back to DefaultNodes.
func NewRunner(nodes int, logger *slog.Logger) *Runner {
	if nodes < 1 {
		nodes = DefaultNodes
	}
	return &Runner{
		nodes:  nodes,
		logger: logger.With(slog.String("component", "consensus")),
	}
}

// Nodes returns the redundancy factor.
func (r *Runner) Nodes() int { return r.nodes }

// Execute runs fetch once per node concurrently, waits for every run and
// aggregates the results. It returns false when the runs disagree or the
// context ends before all runs complete.
func Execute[T any](ctx context.Context, r *Runner, name string, fetch func(context.Context) T, agg Aggregator[T]) (T, bool) {
	results := make([]T, r.nodes)

	g, gctx := errgroup.WithContext(ctx)
	for i := range results {
		g.Go(func() error {
			results[i] = fetch(gctx)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		r.logger.WarnContext(ctx, "redundant fetch interrupted",
			slog.String("fetch", name),
			slog.String("error", err.Error()),
		)
		var zero T
		return zero, false
	}

	value, ok := agg.Aggregate(results)
	if !ok {
		attrs := []any{
			slog.String("fetch", name),
			slog.Int("nodes", r.nodes),
		}
		if fw, isFieldwise := agg.(*FieldwiseAggregator[T]); isFieldwise {
			attrs = append(attrs, slog.Any("fields", fw.Disagreements(results)))
		}
		r.logger.WarnContext(ctx, "nodes did not reach consensus", attrs...)
		return value, false
	}
	return value, true
}
