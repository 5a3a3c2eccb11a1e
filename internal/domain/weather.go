package domain

import "context"

// Sentinels marking a reading that could not be obtained.
const (
	UnavailableCode        = -1
	UnavailableProbability = -1
)

// WeatherReading is an observation of current conditions from one provider.
// A ConditionCode of UnavailableCode means the provider could not be read.
type WeatherReading struct {
	Source        string `json:"source"`
	ConditionCode int    `json:"condition_code"`
	Description   string `json:"description"`
	IsRaining     bool   `json:"is_raining"`
}

// Available reports whether the reading holds real data.
func (r WeatherReading) Available() bool {
	return r.ConditionCode != UnavailableCode
}

// UnavailableWeather builds the sentinel reading for a failed fetch.
func UnavailableWeather(source, reason string) WeatherReading {
	return WeatherReading{
		Source:        source,
		ConditionCode: UnavailableCode,
		Description:   reason,
	}
}

// ForecastReading is a near-term probability of rain (0-100) from one provider.
type ForecastReading struct {
	Source          string `json:"source"`
	RainProbability int    `json:"rain_probability"`
	Description     string `json:"description"`
	Available       bool   `json:"available"`
}

// UnavailableForecast builds the sentinel forecast for a failed fetch.
func UnavailableForecast(source, reason string) ForecastReading {
	return ForecastReading{
		Source:          source,
		RainProbability: UnavailableProbability,
		Description:     reason,
	}
}

// WeatherProvider fetches observations and forecasts for a location. It never
// returns an error: any failure degrades to the unavailable sentinel.
type WeatherProvider interface {
	Name() string
	CurrentWeather(ctx context.Context, loc Location) WeatherReading
	Forecast(ctx context.Context, loc Location) ForecastReading
}

// Dispute is the context handed to the arbiter when the providers disagree.
type Dispute struct {
	MarketID  uint64
	Question  string
	Location  Location
	Primary   WeatherReading
	Secondary WeatherReading
}

// ArbitrationVerdict is the arbiter's ruling. FellBack is set when the
// arbiter could not produce a usable answer and the primary provider's raw
// observation was used instead.
type ArbitrationVerdict struct {
	Raining  bool
	FellBack bool
	Reason   string
}

// Arbiter resolves disagreements between weather providers.
type Arbiter interface {
	Adjudicate(ctx context.Context, d Dispute) ArbitrationVerdict
}
