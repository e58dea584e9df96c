package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yearn/vault_catalog/internal/usecase"
	"go.uber.org/zap"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	clientBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServerMessage is the envelope pushed to websocket clients.
type ServerMessage struct {
	Type    string `json:"type"` // "catalog.refreshed", "ping"
	Payload any    `json:"payload"`
}

// Hub pushes catalog refresh events to connected clients so they can refetch.
type Hub struct {
	clients map[chan ServerMessage]struct{}
	mu      sync.Mutex
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[chan ServerMessage]struct{}),
		logger:  logger,
	}
}

// Broadcast never blocks: a client whose buffer is full misses the event.
func (h *Hub) Broadcast(ev usecase.RefreshEvent) {
	msg := ServerMessage{Type: "catalog.refreshed", Payload: ev}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
			h.logger.Debug("Dropping refresh event for slow client")
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) register() chan ServerMessage {
	ch := make(chan ServerMessage, clientBuffer)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) unregister(ch chan ServerMessage) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}
	defer conn.Close()

	h.logger.Info("WebSocket client connected", zap.String("remote_addr", r.RemoteAddr))

	send := h.register()
	defer h.unregister(send)

	// Reader: only needed for pongs and to notice the client going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("WebSocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			h.logger.Info("WebSocket client disconnected", zap.String("remote_addr", r.RemoteAddr))
			return
		case <-r.Context().Done():
			return
		}
	}
}
