// Package anthropic adjudicates weather disputes with the Anthropic Messages
// API. The model is asked for a single YES/NO word; anything it cannot turn
// into a clean answer falls back to the primary provider's observation.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alanyoungcy/localoracle/internal/domain"
)

const (
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultModel     = "claude-sonnet-4-20250514"
	DefaultMaxTokens = 10
	apiVersion       = "2023-06-01"
)

// ClientConfig holds the arbiter settings.
type ClientConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// Client is a domain.Arbiter backed by the Messages API.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	httpClient *http.Client
}

// NewClient creates an arbiter client. Zero-valued settings take the package
// defaults.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Adjudicate implements domain.Arbiter.
func (c *Client) Adjudicate(ctx context.Context, d domain.Dispute) domain.ArbitrationVerdict {
	if c.apiKey == "" {
		return fallback(d, "arbiter not configured")
	}

	text, err := c.complete(ctx, BuildPrompt(d))
	if err != nil {
		return fallback(d, err.Error())
	}

	raining, ok := ParseVerdict(text)
	if !ok {
		return fallback(d, fmt.Sprintf("unparseable answer %q", text))
	}
	return domain.ArbitrationVerdict{Raining: raining}
}

// fallback trusts the primary provider's raw observation.
func fallback(d domain.Dispute, reason string) domain.ArbitrationVerdict {
	return domain.ArbitrationVerdict{
		Raining:  d.Primary.IsRaining,
		FellBack: true,
		Reason:   reason,
	}
}

// ParseVerdict normalises a model answer. Only a bare YES or NO, optionally
// wrapped in code fences or followed by punctuation, is accepted.
func ParseVerdict(text string) (raining bool, ok bool) {
	answer := strings.ToUpper(strings.TrimSpace(text))
	answer = strings.ReplaceAll(answer, "```", "")
	answer = strings.TrimSpace(answer)
	answer = strings.TrimRight(answer, ".!")
	switch answer {
	case "YES":
		return true, true
	case "NO":
		return false, true
	default:
		return false, false
	}
}

// BuildPrompt renders the adjudication prompt for a dispute.
func BuildPrompt(d domain.Dispute) string {
	var b strings.Builder
	b.WriteString("You are the weather adjudicator for an on-chain prediction market. ")
	b.WriteString("Two weather data sources disagree about current conditions and you must decide the outcome.\n\n")
	fmt.Fprintf(&b, "Market question: %q\n", d.Question)
	fmt.Fprintf(&b, "Location: %.4f, %.4f\n\n", d.Location.Lat, d.Location.Lng)
	writeSource(&b, 1, d.Primary)
	writeSource(&b, 2, d.Secondary)
	b.WriteString("Is it raining at this location right now? Weigh:\n")
	b.WriteString("- how specific each condition description is (mist or overcast is not rain, drizzle is)\n")
	b.WriteString("- the severity implied by each condition code\n")
	b.WriteString("- which classification fits the market question better\n\n")
	b.WriteString("Answer with exactly one word: YES or NO")
	return b.String()
}

func writeSource(b *strings.Builder, n int, r domain.WeatherReading) {
	fmt.Fprintf(b, "Source %d (%s):\n", n, r.Source)
	fmt.Fprintf(b, "  Condition: %s (code %d)\n", r.Description, r.ConditionCode)
	fmt.Fprintf(b, "  Rain detected: %t\n\n", r.IsRaining)
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(messagesRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages:  []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("anthropic: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("anthropic: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("anthropic: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("anthropic: API error (%d)", resp.StatusCode)
	}

	var out messagesResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("anthropic: decode response: %w", err)
	}
	if len(out.Content) == 0 {
		return "", fmt.Errorf("anthropic: empty content")
	}
	return out.Content[0].Text, nil
}
