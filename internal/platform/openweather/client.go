// Package openweather is the OpenWeatherMap client used as the primary
// weather source for settlement and as one of the two forecast sources for
// the trading agent.
package openweather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/alanyoungcy/localoracle/internal/domain"
)

const (
	// SourceName identifies current-weather readings from this client.
	SourceName = "OpenWeatherMap"
	// ForecastSourceName identifies forecast readings from this client.
	ForecastSourceName = "OWM-Forecast"

	// DefaultBaseURL is the public API root.
	DefaultBaseURL = "https://api.openweathermap.org"

	// forecastSlots is the number of 3-hour slots averaged, roughly the next
	// 12 hours.
	forecastSlots = 4
)

// Client talks to the OpenWeatherMap REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new OpenWeatherMap client. An empty baseURL uses
// DefaultBaseURL and a non-positive timeout uses 10s.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name implements domain.WeatherProvider.
func (c *Client) Name() string { return SourceName }

// IsRainCode reports whether an OpenWeatherMap condition id describes
// precipitation: thunderstorm (2xx), drizzle (3xx), rain (5xx) and snow (6xx).
func IsRainCode(code int) bool {
	return code >= 200 && code < 700
}

type currentResponse struct {
	Weather []struct {
		ID          int    `json:"id"`
		Description string `json:"description"`
	} `json:"weather"`
}

type forecastResponse struct {
	List []struct {
		Pop     float64 `json:"pop"`
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
	} `json:"list"`
}

// CurrentWeather returns the current conditions at loc. Any failure yields
// the unavailable sentinel.
func (c *Client) CurrentWeather(ctx context.Context, loc domain.Location) domain.WeatherReading {
	body, err := c.doGet(ctx, "/data/2.5/weather", c.coordParams(loc))
	if err != nil {
		return domain.UnavailableWeather(SourceName, describeError(err))
	}

	var resp currentResponse
	if err := json.Unmarshal(body, &resp); err != nil || len(resp.Weather) == 0 {
		return domain.UnavailableWeather(SourceName, "malformed response")
	}

	code := resp.Weather[0].ID
	return domain.WeatherReading{
		Source:        SourceName,
		ConditionCode: code,
		Description:   resp.Weather[0].Description,
		IsRaining:     IsRainCode(code),
	}
}

// Forecast returns the mean probability of precipitation over the next
// forecastSlots 3-hour slots.
func (c *Client) Forecast(ctx context.Context, loc domain.Location) domain.ForecastReading {
	params := c.coordParams(loc)
	params.Set("cnt", strconv.Itoa(forecastSlots))

	body, err := c.doGet(ctx, "/data/2.5/forecast", params)
	if err != nil {
		return domain.UnavailableForecast(ForecastSourceName, describeError(err))
	}

	var resp forecastResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.UnavailableForecast(ForecastSourceName, "malformed response")
	}
	if len(resp.List) == 0 {
		return domain.UnavailableForecast(ForecastSourceName, "empty forecast")
	}

	slots := resp.List
	if len(slots) > forecastSlots {
		slots = slots[:forecastSlots]
	}
	var sum float64
	for _, s := range slots {
		sum += s.Pop
	}
	avg := sum / float64(len(slots))

	desc := "unknown"
	if w := resp.List[0].Weather; len(w) > 0 {
		desc = w[0].Description
	}

	return domain.ForecastReading{
		Source:          ForecastSourceName,
		RainProbability: int(math.Floor(avg*100 + 0.5)),
		Description:     desc,
		Available:       true,
	}
}

func (c *Client) coordParams(loc domain.Location) url.Values {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(loc.Lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(loc.Lng, 'f', -1, 64))
	params.Set("appid", c.apiKey)
	return params
}

// statusError is returned by doGet for non-2xx responses.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

func describeError(err error) string {
	var se *statusError
	if errors.As(err, &se) {
		return fmt.Sprintf("API error (%d)", se.code)
	}
	return "request failed"
}

func (c *Client) doGet(ctx context.Context, path string, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("openweather: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openweather: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openweather: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{code: resp.StatusCode}
	}
	return body, nil
}
