// Package weatherapi is the WeatherAPI.com client, the secondary weather
// source.
package weatherapi

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
	SourceName         = "WeatherAPI"
	ForecastSourceName = "WeatherAPI-Forecast"
	DefaultBaseURL     = "https://api.weatherapi.com"
)

// rainCodes lists the WeatherAPI condition codes that mean precipitation.
var rainCodes = map[int]bool{
	1063: true, 1150: true, 1153: true, 1168: true, 1171: true, 1180: true,
	1183: true, 1186: true, 1189: true, 1192: true, 1195: true, 1198: true,
	1201: true, 1240: true, 1243: true, 1246: true, 1273: true, 1276: true,
}

// IsRainCode reports whether code is one of the precipitation conditions.
func IsRainCode(code int) bool {
	return rainCodes[code]
}

// Client talks to the WeatherAPI.com REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new WeatherAPI client.
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

type condition struct {
	Text string `json:"text"`
	Code *int   `json:"code"`
}

type currentResponse struct {
	Current *struct {
		Condition condition `json:"condition"`
	} `json:"current"`
}

type forecastResponse struct {
	Forecast struct {
		ForecastDay []struct {
			Day struct {
				DailyChanceOfRain *float64 `json:"daily_chance_of_rain"`
				Condition         condition `json:"condition"`
			} `json:"day"`
		} `json:"forecastday"`
	} `json:"forecast"`
}

// query renders loc as "lat,lng" at full precision.
func query(loc domain.Location) string {
	return strconv.FormatFloat(loc.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(loc.Lng, 'f', -1, 64)
}

// CurrentWeather returns the current conditions at loc.
func (c *Client) CurrentWeather(ctx context.Context, loc domain.Location) domain.WeatherReading {
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("q", query(loc))

	body, err := c.doGet(ctx, "/v1/current.json", params)
	if err != nil {
		return domain.UnavailableWeather(SourceName, describeError(err))
	}

	var resp currentResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.Current == nil || resp.Current.Condition.Code == nil {
		return domain.UnavailableWeather(SourceName, "malformed response")
	}

	code := *resp.Current.Condition.Code
	return domain.WeatherReading{
		Source:        SourceName,
		ConditionCode: code,
		Description:   resp.Current.Condition.Text,
		IsRaining:     IsRainCode(code),
	}
}

// Forecast returns today's daily chance of rain at loc.
func (c *Client) Forecast(ctx context.Context, loc domain.Location) domain.ForecastReading {
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("q", query(loc))
	params.Set("days", "1")

	body, err := c.doGet(ctx, "/v1/forecast.json", params)
	if err != nil {
		return domain.UnavailableForecast(ForecastSourceName, describeError(err))
	}

	var resp forecastResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.UnavailableForecast(ForecastSourceName, "malformed response")
	}
	if len(resp.Forecast.ForecastDay) == 0 {
		return domain.UnavailableForecast(ForecastSourceName, "empty forecast")
	}

	day := resp.Forecast.ForecastDay[0].Day
	if day.DailyChanceOfRain == nil || *day.DailyChanceOfRain < 0 {
		return domain.UnavailableForecast(ForecastSourceName, "no rain probability")
	}

	desc := day.Condition.Text
	if desc == "" {
		desc = "unknown"
	}
	return domain.ForecastReading{
		Source:          ForecastSourceName,
		RainProbability: int(math.Floor(*day.DailyChanceOfRain + 0.5)),
		Description:     desc,
		Available:       true,
	}
}

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
		return nil, fmt.Errorf("weatherapi: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weatherapi: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("weatherapi: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{code: resp.StatusCode}
	}
	return body, nil
}
