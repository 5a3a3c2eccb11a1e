package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/localoracle/internal/domain"
)

type chanBus struct {
	chans map[string]chan []byte
}

func newChanBus() *chanBus {
	b := &chanBus{chans: make(map[string]chan []byte)}
	for _, ch := range Channels {
		b.chans[ch] = make(chan []byte, 16)
	}
	return b
}

func (b *chanBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.chans[channel] <- payload
	return nil
}

func (b *chanBus) Subscribe(_ context.Context, channel string) (<-chan []byte, error) {
	return b.chans[channel], nil
}

func (b *chanBus) StreamAppend(context.Context, string, []byte) error { return nil }

func (b *chanBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func TestHubRelaysCycleReports(t *testing.T) {
	bus := newChanBus()
	hub := NewHub(bus, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	// Registration races the dial returning, so keep publishing until the
	// client sees a frame.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		tick := time.NewTicker(20 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-stop:
				return
			case <-tick.C:
				select {
				case bus.chans[domain.ChannelCycle] <- []byte(`{"workflow":"settlement","summary":"no-markets"}`):
				default:
				}
			}
		}
	}()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	kind, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if kind != websocket.TextMessage {
		t.Errorf("frame type = %d, want text", kind)
	}
	var env struct {
		Channel string             `json:"channel"`
		Data    domain.CycleReport `json:"data"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatal(err)
	}
	if env.Channel != domain.ChannelCycle || env.Data.Summary != "no-markets" {
		t.Errorf("envelope = %+v", env)
	}
}

func TestIsSubscribed(t *testing.T) {
	c := &client{subs: map[string]bool{"ch:*": true}}
	if !c.isSubscribed(domain.ChannelDecision) {
		t.Error("wildcard did not match ch:decision")
	}
	c.handleSubscription(subscribeMsg{Action: "unsubscribe", Channels: []string{"ch:*"}})
	if c.isSubscribed(domain.ChannelDecision) {
		t.Error("still subscribed after unsubscribe")
	}
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://dash.example"})
	req := httptest.NewRequest("GET", "/ws", nil)
	if !check(req) {
		t.Error("request without Origin rejected")
	}
	req.Header.Set("Origin", "https://evil.example")
	if check(req) {
		t.Error("foreign origin accepted")
	}
}
