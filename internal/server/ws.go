package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/mudra/internal/detection"
	"github.com/ayusman/mudra/internal/logger"
)

const (
	writeWait   = 2 * time.Second
	clientQueue = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// ResultSource publishes movement result batches to subscribers.
type ResultSource interface {
	Subscribe(fn func([]detection.MovementResult)) (unsubscribe func())
}

type resultsMessage struct {
	Results   []detection.MovementResult `json:"results"`
	Timestamp int64                      `json:"timestamp"`
}

// ResultsHandler broadcasts movement results to WebSocket clients.
type ResultsHandler struct {
	log         logger.Logger
	unsubscribe func()

	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte
	closed  bool
}

// NewResultsHandler creates a ResultsHandler subscribed to src.
func NewResultsHandler(src ResultSource, log logger.Logger) *ResultsHandler {
	if log == nil {
		log = logger.Nop()
	}
	h := &ResultsHandler{
		log:     log,
		clients: make(map[*websocket.Conn]chan []byte),
	}
	h.unsubscribe = src.Subscribe(h.broadcast)
	return h
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *ResultsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}
	defer conn.Close()

	send := make(chan []byte, clientQueue)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.clients[conn] = send
	h.mu.Unlock()

	defer h.remove(conn)

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Keep connection alive by reading messages
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg, ok := <-send:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// Clients returns the number of connected clients.
func (h *ResultsHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close unsubscribes from the result source and disconnects every client.
func (h *ResultsHandler) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	for conn, send := range h.clients {
		close(send)
		delete(h.clients, conn)
	}
	h.mu.Unlock()

	// Outside the lock: the source may be mid-broadcast.
	h.unsubscribe()
}

func (h *ResultsHandler) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if send, ok := h.clients[conn]; ok {
		close(send)
		delete(h.clients, conn)
	}
}

// broadcast queues results for every client. A client whose queue is full
// misses the batch; the frame loop never waits on a slow socket.
func (h *ResultsHandler) broadcast(results []detection.MovementResult) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.clients) == 0 {
		return
	}

	msg, err := json.Marshal(resultsMessage{
		Results:   results,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		h.log.Error(context.Background(), "failed to encode results", logger.Error(err))
		return
	}

	for _, send := range h.clients {
		select {
		case send <- msg:
		default:
		}
	}
}
