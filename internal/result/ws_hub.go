package result

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fxquant/fx-engine/internal/metrics"
)

// WSMessage is a JSON frame sent to WebSocket clients when the account
// state changes.
type WSMessage struct {
	Type    string            `json:"type"` // "equity" or "execution"
	Time    time.Time         `json:"time"`
	Equity  string            `json:"equity,omitempty"`
	Balance string            `json:"balance,omitempty"`
	UPL     map[string]string `json:"upl,omitempty"`
	Pair    string            `json:"pair,omitempty"`
	Units   string            `json:"units,omitempty"`
	Price   string            `json:"price,omitempty"`
}

// WSHub manages WebSocket connections and broadcasts equity and
// execution updates to all connected clients. It implements Sink, so a
// live run can stream its result feed to dashboards.
type WSHub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub() *WSHub {
	return &WSHub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
	}
}

// Run starts the hub's main event loop. Must be called in a goroutine.
func (h *WSHub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			metrics.WebSocketClients.Set(float64(len(h.clients)))
			h.mu.Unlock()
			slog.Info("ws client connected", "total", len(h.clients))

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			metrics.WebSocketClients.Set(float64(len(h.clients)))
			h.mu.Unlock()

		case msg := <-h.broadcast:
			// Write lock: dead clients are dropped while iterating.
			h.mu.Lock()
			for conn := range h.clients {
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					conn.Close()
					delete(h.clients, conn)
				}
			}
			h.mu.Unlock()
		}
	}
}

// WriteEquity broadcasts an equity snapshot to connected clients.
func (h *WSHub) WriteEquity(r EquityResult) error {
	upl := make(map[string]string, len(r.UPL))
	for k, v := range r.UPL {
		upl[k] = v.String()
	}
	h.send(WSMessage{
		Type:    "equity",
		Time:    r.Time,
		Equity:  r.Equity.String(),
		Balance: r.Balance.String(),
		UPL:     upl,
	})
	return nil
}

// WriteExecution broadcasts an execution record to connected clients.
func (h *WSHub) WriteExecution(r ExecutionResult) error {
	h.send(WSMessage{
		Type:  "execution",
		Time:  r.Time,
		Pair:  string(r.Pair),
		Units: r.Units.String(),
		Price: r.Price.String(),
	})
	return nil
}

// Close is a no-op; connections are owned by their read pumps.
func (h *WSHub) Close() error { return nil }

func (h *WSHub) send(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- data:
	default:
		// Drop if buffer full to avoid blocking the result worker.
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true // Allow all origins during development.
	},
}

// HandleWS handles WebSocket upgrade requests at GET /ws.
func (h *WSHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "err", err)
		return
	}

	h.register <- conn

	// Read pump: keep connection alive and detect disconnects.
	go func() {
		defer func() { h.unregister <- conn }()
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()

	// Ping ticker to keep connection alive through proxies.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			h.mu.RLock()
			_, ok := h.clients[conn]
			h.mu.RUnlock()
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}()
}
