package consensus

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
)

type reading struct {
	Source string
	Code   int
	Rain   bool
}

var readingFields = ByFields(
	FieldOf("source", func(r reading) string { return r.Source }),
	FieldOf("code", func(r reading) int { return r.Code }),
	FieldOf("rain", func(r reading) bool { return r.Rain }),
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIdentical(t *testing.T) {
	agg := Identical[bool]()

	if v, ok := agg.Aggregate([]bool{true, true, true}); !ok || !v {
		t.Errorf("unanimous true: got (%v, %v)", v, ok)
	}
	if _, ok := agg.Aggregate([]bool{true, false, true}); ok {
		t.Error("split verdict should not reach consensus")
	}
	if _, ok := agg.Aggregate(nil); ok {
		t.Error("empty results should not reach consensus")
	}
}

func TestByFields(t *testing.T) {
	a := reading{Source: "OpenWeatherMap", Code: 500, Rain: true}

	if v, ok := readingFields.Aggregate([]reading{a, a, a}); !ok || v != a {
		t.Errorf("agreeing runs: got (%+v, %v)", v, ok)
	}

	b := a
	b.Code = 501
	if _, ok := readingFields.Aggregate([]reading{a, b, a}); ok {
		t.Error("code disagreement should reject the result")
	}
	got := readingFields.Disagreements([]reading{a, b, a})
	if len(got) != 1 || got[0] != "code" {
		t.Errorf("Disagreements = %v, want [code]", got)
	}
}

func TestExecuteRunsEveryNode(t *testing.T) {
	var calls atomic.Int32
	r := NewRunner(4, discardLogger())

	v, ok := Execute(context.Background(), r, "static", func(context.Context) reading {
		calls.Add(1)
		return reading{Source: "WeatherAPI", Code: 1000}
	}, readingFields)

	if !ok || v.Code != 1000 {
		t.Errorf("Execute = (%+v, %v)", v, ok)
	}
	if calls.Load() != 4 {
		t.Errorf("fetch called %d times, want 4", calls.Load())
	}
}

func TestExecuteDisagreement(t *testing.T) {
	var n atomic.Int32
	r := NewRunner(3, discardLogger())

	_, ok := Execute(context.Background(), r, "flaky", func(context.Context) reading {
		return reading{Source: "WeatherAPI", Code: int(n.Add(1))}
	}, readingFields)
	if ok {
		t.Error("diverging runs should not reach consensus")
	}
}

func TestNewRunnerDefaults(t *testing.T) {
	if got := NewRunner(0, discardLogger()).Nodes(); got != DefaultNodes {
		t.Errorf("Nodes() = %d, want %d", got, DefaultNodes)
	}
}
