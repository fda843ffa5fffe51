package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/fxquant/fx-engine/internal/event"
	"github.com/fxquant/fx-engine/internal/model"
)

// wsTickMessage is the JSON frame a live price stream delivers.
type wsTickMessage struct {
	Pair string          `json:"pair"`
	Time time.Time       `json:"time"`
	Bid  decimal.Decimal `json:"bid"`
	Ask  decimal.Decimal `json:"ask"`
}

// WebSocketDataFeeder streams live ticks from a brokerage WebSocket
// endpoint onto the feed queue. It reconnects with a capped backoff on
// read errors and only stops when ctx is canceled.
type WebSocketDataFeeder struct {
	url    string
	pairs  map[model.Pair]bool
	feedQ  chan<- event.Tick
	cont   atomic.Bool
	dialer *websocket.Dialer
}

// NewWebSocketDataFeeder creates a live feeder for url, forwarding only
// ticks for the given pairs.
func NewWebSocketDataFeeder(pairs []model.Pair, feedQ chan<- event.Tick, url string) *WebSocketDataFeeder {
	tracked := make(map[model.Pair]bool, len(pairs))
	for _, p := range pairs {
		tracked[p] = true
	}
	f := &WebSocketDataFeeder{
		url:    url,
		pairs:  tracked,
		feedQ:  feedQ,
		dialer: websocket.DefaultDialer,
	}
	f.cont.Store(true)
	return f
}

// ContinueBacktest reports whether the live stream is still running.
func (f *WebSocketDataFeeder) ContinueBacktest() bool { return f.cont.Load() }

// Run consumes the stream until ctx is canceled, then closes the feed
// queue.
func (f *WebSocketDataFeeder) Run(ctx context.Context) error {
	defer close(f.feedQ)
	defer f.cont.Store(false)

	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, _, err := f.dialer.DialContext(ctx, f.url, nil)
		if err != nil {
			slog.Error("price stream dial failed", "url", f.url, "err", err)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		slog.Info("price stream connected", "url", f.url)
		backoff = time.Second

		if err := f.readLoop(ctx, conn); err != nil {
			slog.Error("price stream read failed, reconnecting", "err", err)
		}
		conn.Close()
	}
}

func (f *WebSocketDataFeeder) readLoop(ctx context.Context, conn *websocket.Conn) error {
	// Unblock ReadMessage when ctx is canceled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.SetReadDeadline(time.Now())
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		var msg wsTickMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("dropping malformed tick frame", "err", err)
			continue
		}
		pair, err := model.ParsePair(msg.Pair)
		if err != nil || !f.pairs[pair] {
			continue
		}
		tick := event.Tick{
			Instrument: pair,
			Timestamp:  msg.Time,
			Bid:        model.RoundPrice(msg.Bid),
			Ask:        model.RoundPrice(msg.Ask),
		}
		select {
		case f.feedQ <- tick:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
