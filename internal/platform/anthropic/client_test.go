package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alanyoungcy/localoracle/internal/domain"
)

var dispute = domain.Dispute{
	Question: "Will it rain in London today?",
	Location: domain.Location{Lat: 51.5074, Lng: -0.1278},
	Primary: domain.WeatherReading{
		Source: "OpenWeatherMap", ConditionCode: 701, Description: "mist", IsRaining: false,
	},
	Secondary: domain.WeatherReading{
		Source: "WeatherAPI", ConditionCode: 1063, Description: "Patchy rain possible", IsRaining: true,
	},
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		in       string
		wantRain bool
		wantOK   bool
	}{
		{"YES", true, true},
		{" yes\n", true, true},
		{"NO", false, true},
		{"```\nYES\n```", true, true},
		{"No.", false, true},
		{"MAYBE", false, false},
		{"YES, it is raining", false, false},
		{"", false, false},
	}
	for _, tt := range tests {
		rain, ok := ParseVerdict(tt.in)
		if rain != tt.wantRain || ok != tt.wantOK {
			t.Errorf("ParseVerdict(%q) = (%v, %v), want (%v, %v)", tt.in, rain, ok, tt.wantRain, tt.wantOK)
		}
	}
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt(dispute)
	for _, want := range []string{
		`"Will it rain in London today?"`,
		"51.5074, -0.1278",
		"mist (code 701)",
		"Patchy rain possible (code 1063)",
		"YES or NO",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func newServer(t *testing.T, status int, text string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "secret" {
			t.Errorf("x-api-key = %q", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != apiVersion {
			t.Errorf("anthropic-version = %q", r.Header.Get("anthropic-version"))
		}
		var req messagesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.MaxTokens != DefaultMaxTokens || req.Model != DefaultModel {
			t.Errorf("request = %+v", req)
		}
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"type": "text", "text": text}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAdjudicate(t *testing.T) {
	srv := newServer(t, http.StatusOK, "YES")
	got := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "secret"}).Adjudicate(context.Background(), dispute)
	if !got.Raining || got.FellBack {
		t.Errorf("Adjudicate = %+v, want raining without fallback", got)
	}
}

func TestAdjudicateFallsBackToPrimary(t *testing.T) {
	tests := []struct {
		name   string
		status int
		text   string
	}{
		{"server error", http.StatusInternalServerError, "YES"},
		{"garbage answer", http.StatusOK, "I cannot tell"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, tt.status, tt.text)
			got := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "secret"}).Adjudicate(context.Background(), dispute)
			if !got.FellBack || got.Raining != dispute.Primary.IsRaining || got.Reason == "" {
				t.Errorf("Adjudicate = %+v, want fallback to primary", got)
			}
		})
	}
}

func TestAdjudicateWithoutKey(t *testing.T) {
	got := NewClient(ClientConfig{}).Adjudicate(context.Background(), dispute)
	if !got.FellBack || got.Reason != "arbiter not configured" {
		t.Errorf("Adjudicate = %+v", got)
	}
}
