package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alanyoungcy/localoracle/internal/domain"
)

type recordingSender struct {
	name  string
	err   error
	calls []string
}

func (r *recordingSender) Send(_ context.Context, title, _ string) error {
	r.calls = append(r.calls, title)
	return r.err
}

func (r *recordingSender) Name() string { return r.name }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifierFiltersEvents(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{EventBetPlaced, " " + EventWriteFailed}, discardLogger())

	ctx := context.Background()
	_ = n.Notify(ctx, EventMarketSettled, "settled", "")
	_ = n.Notify(ctx, EventBetPlaced, "bet", "")
	_ = n.Notify(ctx, EventWriteFailed, "failed", "")

	if strings.Join(s.calls, ",") != "bet,failed" {
		t.Errorf("calls = %v", s.calls)
	}
}

func TestNotifierContinuesAfterSenderError(t *testing.T) {
	bad := &recordingSender{name: "bad", err: errors.New("boom")}
	good := &recordingSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, discardLogger())

	err := n.Notify(context.Background(), EventCycleError, "x", "y")
	if err == nil || !strings.Contains(err.Error(), "bad: boom") {
		t.Errorf("err = %v", err)
	}
	if len(good.calls) != 1 {
		t.Error("second sender not called")
	}
}

func TestNilNotifierIsDisabled(t *testing.T) {
	var n *Notifier
	if n.Enabled() {
		t.Error("nil notifier reports enabled")
	}
	if err := n.Notify(context.Background(), EventBetPlaced, "a", "b"); err != nil {
		t.Errorf("Notify on nil = %v", err)
	}
}

func TestTelegramSender(t *testing.T) {
	var got map[string]string
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	s := NewTelegramSender("tok", "42")
	s.baseURL = srv.URL
	if err := s.Send(context.Background(), "Title", "Body"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if path != "/bottok/sendMessage" {
		t.Errorf("path = %q", path)
	}
	if got["chat_id"] != "42" || got["text"] != "*Title*\nBody" {
		t.Errorf("payload = %v", got)
	}
}

func TestDiscordSenderStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "t", "m")
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Errorf("err = %v, want status 429", err)
	}
}

func TestBetMessage(t *testing.T) {
	title, body := BetMessage(domain.TradeDecision{
		MarketID:      3,
		Side:          true,
		Amount:        big.NewInt(1_500_000),
		Justification: "edge",
	}, domain.WriteResult{Status: domain.TxSuccess, TxHash: "0xbeef"})

	if title != "Bet YES on market #3" {
		t.Errorf("title = %q", title)
	}
	if !strings.HasPrefix(body, "1.50 USDC") || !strings.HasSuffix(body, "Tx: 0xbeef") {
		t.Errorf("body = %q", body)
	}
}
