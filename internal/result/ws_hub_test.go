package result

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

// --- WSHub tests ---

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return conn
}

func TestWSHub_BroadcastSurvivesDisconnect(t *testing.T) {
	h := NewWSHub()
	go h.Run()
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWS))
	defer srv.Close()

	alive := dialWS(t, srv)
	defer alive.Close()
	gone := dialWS(t, srv)
	gone.Close()

	// Registration is asynchronous, so keep publishing until a frame
	// arrives; the dead client gets dropped from the hub along the way.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		tick := time.NewTicker(10 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-stop:
				return
			case <-tick.C:
				h.WriteEquity(EquityResult{
					Time:    time.Now(),
					Equity:  d("1000950"),
					Balance: d("1000000"),
					UPL:     map[string]decimal.Decimal{"USDJPY": d("950")},
				})
			}
		}
	}()

	alive.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := alive.ReadMessage()
	if err != nil {
		t.Fatalf("live client received no frame: %v", err)
	}
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("frame did not decode: %v", err)
	}
	if msg.Type != "equity" || msg.Equity != "1000950" {
		t.Errorf("unexpected frame: type=%s equity=%s", msg.Type, msg.Equity)
	}
	if msg.UPL["USDJPY"] != "950" {
		t.Errorf("expected per-pair upl 950, got %q", msg.UPL["USDJPY"])
	}
}
