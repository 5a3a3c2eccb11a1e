package decision

import (
	"context"
	"strings"
	"testing"

	"github.com/alanyoungcy/localoracle/internal/domain"
)

func owm(code int, rain bool) domain.WeatherReading {
	return domain.WeatherReading{Source: "OpenWeatherMap", ConditionCode: code, IsRaining: rain}
}

func wapi(code int, rain bool) domain.WeatherReading {
	return domain.WeatherReading{Source: "WeatherAPI", ConditionCode: code, IsRaining: rain}
}

var (
	owmDown  = domain.UnavailableWeather("OpenWeatherMap", "API error (503)")
	wapiDown = domain.UnavailableWeather("WeatherAPI", "API error (401)")
)

type countingArbiter struct {
	calls   int
	verdict domain.ArbitrationVerdict
}

func (c *countingArbiter) Adjudicate(context.Context, domain.Dispute) domain.ArbitrationVerdict {
	c.calls++
	return c.verdict
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name        string
		a, b        domain.WeatherReading
		wantKind    ResolutionKind
		wantOutcome bool
		wantSource  string
	}{
		{"both down", owmDown, wapiDown, Deferred, false, ""},
		{"primary down", owmDown, wapi(1183, true), SingleSource, true, "WeatherAPI"},
		{"secondary down", owm(800, false), wapiDown, SingleSource, false, "OpenWeatherMap"},
		{"agree rain", owm(500, true), wapi(1063, true), Unanimous, true, "both"},
		{"agree dry", owm(800, false), wapi(1000, false), Unanimous, false, "both"},
		{"disagree", owm(701, false), wapi(1063, true), NeedsArbitration, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.a, tt.b)
			if got.Kind != tt.wantKind || got.Outcome != tt.wantOutcome || got.Source != tt.wantSource {
				t.Errorf("Resolve = %+v, want kind=%s outcome=%v source=%q", got, tt.wantKind, tt.wantOutcome, tt.wantSource)
			}
		})
	}
}

func TestSettleInvokesArbiterOnlyOnDisagreement(t *testing.T) {
	m := domain.Market{ID: 4, Question: "Will it rain in London today?"}

	arb := &countingArbiter{verdict: domain.ArbitrationVerdict{Raining: true}}
	for _, pair := range [][2]domain.WeatherReading{
		{owm(500, true), wapi(1063, true)},
		{owmDown, wapi(1000, false)},
		{owmDown, wapiDown},
	} {
		Settle(context.Background(), m, pair[0], pair[1], arb)
	}
	if arb.calls != 0 {
		t.Fatalf("arbiter called %d times without a disagreement", arb.calls)
	}

	d, ok := Settle(context.Background(), m, owm(701, false), wapi(1063, true), arb)
	if !ok || arb.calls != 1 {
		t.Fatalf("Settle = (%+v, %v), arbiter calls = %d", d, ok, arb.calls)
	}
	if d.Method != domain.MethodAIAdjudicated || !d.Outcome || d.Source != "arbiter" {
		t.Errorf("Settle = %+v", d)
	}
}

func TestSettleDeferred(t *testing.T) {
	_, ok := Settle(context.Background(), domain.Market{ID: 1}, owmDown, wapiDown, &countingArbiter{})
	if ok {
		t.Error("both sources down should defer settlement")
	}
}

func TestSettleArbiterFallback(t *testing.T) {
	arb := &countingArbiter{verdict: domain.ArbitrationVerdict{Raining: false, FellBack: true, Reason: "anthropic: API error (529)"}}
	d, ok := Settle(context.Background(), domain.Market{ID: 2}, owm(701, false), wapi(1063, true), arb)
	if !ok || d.Outcome || d.Source != "arbiter-fallback" {
		t.Fatalf("Settle = (%+v, %v)", d, ok)
	}
	if !strings.Contains(d.Note, "used OpenWeatherMap") {
		t.Errorf("Note = %q", d.Note)
	}
}

func TestSettleSingleSourceNote(t *testing.T) {
	d, ok := Settle(context.Background(), domain.Market{ID: 3}, owmDown, wapi(1183, true), &countingArbiter{})
	if !ok || d.Method != domain.MethodSingleSource || !d.Outcome {
		t.Fatalf("Settle = (%+v, %v)", d, ok)
	}
	if d.Note != "single-source (WeatherAPI, OpenWeatherMap failed)" {
		t.Errorf("Note = %q", d.Note)
	}
}
