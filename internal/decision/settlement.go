// Package decision holds the pure decision rules of both pipelines: how two
// weather observations become a settlement outcome, and how forecasts and
// market odds become a bet.
package decision

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/localoracle/internal/domain"
)

// ResolutionKind is the branch of the settlement table a market falls in.
type ResolutionKind int

const (
	Deferred ResolutionKind = iota
	SingleSource
	Unanimous
	NeedsArbitration
)

func (k ResolutionKind) String() string {
	switch k {
	case Deferred:
		return "deferred"
	case SingleSource:
		return "single-source"
	case Unanimous:
		return "unanimous"
	case NeedsArbitration:
		return "needs-arbitration"
	default:
		return fmt.Sprintf("ResolutionKind(%d)", int(k))
	}
}

// Resolution is the result of comparing the two observations. Outcome and
// Source are meaningful only for SingleSource and Unanimous.
type Resolution struct {
	Kind    ResolutionKind
	Outcome bool
	Source  string
	Note    string
}

// Resolve applies the settlement table to the primary (a) and secondary (b)
// observations. It performs no I/O.
func Resolve(a, b domain.WeatherReading) Resolution {
	switch {
	case !a.Available() && !b.Available():
		return Resolution{Kind: Deferred, Note: "both sources unavailable"}
	case !a.Available():
		return Resolution{
			Kind:    SingleSource,
			Outcome: b.IsRaining,
			Source:  b.Source,
			Note:    fmt.Sprintf("single-source (%s, %s failed)", b.Source, a.Source),
		}
	case !b.Available():
		return Resolution{
			Kind:    SingleSource,
			Outcome: a.IsRaining,
			Source:  a.Source,
			Note:    fmt.Sprintf("single-source (%s, %s failed)", a.Source, b.Source),
		}
	case a.IsRaining == b.IsRaining:
		return Resolution{
			Kind:    Unanimous,
			Outcome: a.IsRaining,
			Source:  "both",
			Note:    "unanimous (both sources agree)",
		}
	default:
		return Resolution{Kind: NeedsArbitration, Note: "sources disagreed"}
	}
}

// Settle turns the observations for one market into a settlement decision.
// The arbiter is consulted exactly once, and only when the sources disagree.
// The boolean is false when settlement must be deferred to a later cycle.
func Settle(ctx context.Context, m domain.Market, a, b domain.WeatherReading, arbiter domain.Arbiter) (domain.SettlementDecision, bool) {
	res := Resolve(a, b)

	d := domain.SettlementDecision{MarketID: m.ID, Note: res.Note}
	switch res.Kind {
	case Deferred:
		return d, false
	case SingleSource:
		d.Method = domain.MethodSingleSource
	case Unanimous:
		d.Method = domain.MethodUnanimous
	case NeedsArbitration:
		v := arbiter.Adjudicate(ctx, domain.Dispute{
			MarketID:  m.ID,
			Question:  m.Question,
			Location:  m.Location(),
			Primary:   a,
			Secondary: b,
		})
		d.Method = domain.MethodAIAdjudicated
		d.Outcome = v.Raining
		d.Source = "arbiter"
		d.Note = "ai-adjudicated (sources disagreed)"
		if v.FellBack {
			d.Source = "arbiter-fallback"
			d.Note = fmt.Sprintf("ai-adjudicated (sources disagreed, arbiter unavailable: %s; used %s)", v.Reason, a.Source)
		}
		return d, true
	}

	d.Outcome = res.Outcome
	d.Source = res.Source
	return d, true
}
