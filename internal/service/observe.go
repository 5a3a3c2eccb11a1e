package service

import (
	"context"
	"log/slog"

	"github.com/alanyoungcy/localoracle/internal/consensus"
	"github.com/alanyoungcy/localoracle/internal/domain"
)

var weatherAgreement = consensus.ByFields(
	consensus.FieldOf("source", func(w domain.WeatherReading) string { return w.Source }),
	consensus.FieldOf("condition_code", func(w domain.WeatherReading) int { return w.ConditionCode }),
	consensus.FieldOf("description", func(w domain.WeatherReading) string { return w.Description }),
	consensus.FieldOf("is_raining", func(w domain.WeatherReading) bool { return w.IsRaining }),
)

var forecastAgreement = consensus.ByFields(
	consensus.FieldOf("source", func(f domain.ForecastReading) string { return f.Source }),
	consensus.FieldOf("rain_probability", func(f domain.ForecastReading) int { return f.RainProbability }),
	consensus.FieldOf("description", func(f domain.ForecastReading) string { return f.Description }),
	consensus.FieldOf("available", func(f domain.ForecastReading) bool { return f.Available }),
)

// verdictAgreement ignores Reason so nodes that fell back for different
// transport errors still agree, keeping the first node's cause.
var verdictAgreement = consensus.ByFields(
	consensus.FieldOf("raining", func(v domain.ArbitrationVerdict) bool { return v.Raining }),
	consensus.FieldOf("fell_back", func(v domain.ArbitrationVerdict) bool { return v.FellBack }),
)

// observeWeather reads current conditions on every node. Disagreement makes
// the reading unavailable.
func observeWeather(ctx context.Context, r *consensus.Runner, p domain.WeatherProvider, loc domain.Location) domain.WeatherReading {
	fetch := func(ctx context.Context) domain.WeatherReading { return p.CurrentWeather(ctx, loc) }
	w, ok := consensus.Execute(ctx, r, p.Name()+".current", fetch, weatherAgreement)
	if !ok {
		return domain.UnavailableWeather(p.Name(), domain.ErrNoConsensus.Error())
	}
	return w
}

// observeForecast is observeWeather for forecasts.
func observeForecast(ctx context.Context, r *consensus.Runner, p domain.WeatherProvider, loc domain.Location) domain.ForecastReading {
	fetch := func(ctx context.Context) domain.ForecastReading { return p.Forecast(ctx, loc) }
	f, ok := consensus.Execute(ctx, r, p.Name()+".forecast", fetch, forecastAgreement)
	if !ok {
		return domain.UnavailableForecast(p.Name(), domain.ErrNoConsensus.Error())
	}
	return f
}

// consensusArbiter runs the arbiter on every node and requires the same
// verdict. If the nodes disagree it falls back to the primary observation,
// the same rule the arbiter applies when it cannot answer.
type consensusArbiter struct {
	inner     domain.Arbiter
	runner    *consensus.Runner
	logger    *slog.Logger
	onVerdict func(context.Context, domain.Dispute, domain.ArbitrationVerdict)
}

func (a *consensusArbiter) Adjudicate(ctx context.Context, d domain.Dispute) domain.ArbitrationVerdict {
	fetch := func(ctx context.Context) domain.ArbitrationVerdict { return a.inner.Adjudicate(ctx, d) }
	v, ok := consensus.Execute(ctx, a.runner, "arbiter", fetch, verdictAgreement)
	if !ok {
		v = domain.ArbitrationVerdict{
			Raining:  d.Primary.IsRaining,
			FellBack: true,
			Reason:   domain.ErrNoConsensus.Error(),
		}
	}
	if v.FellBack {
		a.logger.WarnContext(ctx, "arbiter unavailable, using primary observation",
			slog.String("source", d.Primary.Source),
			slog.Bool("raining", v.Raining),
			slog.String("reason", v.Reason),
		)
	} else {
		a.logger.InfoContext(ctx, "arbiter verdict", slog.String("verdict", domain.OutcomeLabel(v.Raining)))
	}
	if a.onVerdict != nil {
		a.onVerdict(ctx, d, v)
	}
	return v
}
