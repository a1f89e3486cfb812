package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/onnwee/forcemap/internal/apierr"
	"github.com/onnwee/forcemap/internal/graph"
	"github.com/onnwee/forcemap/internal/logger"
	"github.com/onnwee/forcemap/internal/metrics"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 30 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Browser origin policy is enforced by the CORS middleware.
		return true
	},
}

// WebSocketMessage is the envelope for every frame sent to clients.
type WebSocketMessage struct {
	Type    string      `json:"type"` // "hello", "progress"
	Payload interface{} `json:"payload"`
}

// subscribeRequest is the only message clients send: it narrows (or widens)
// which graph's run events they receive.
type subscribeRequest struct {
	Type    string `json:"type"`
	GraphID string `json:"graph_id"`
}

// progressFrame is a marshalled event tagged with its graph for fan-out
// filtering.
type progressFrame struct {
	graphID string
	data    []byte
}

// Client is one WebSocket connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu      sync.RWMutex
	graphID string // empty subscribes to all graphs
}

func (c *Client) wants(graphID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.graphID == "" || c.graphID == graphID
}

func (c *Client) setGraphID(graphID string) {
	c.mu.Lock()
	c.graphID = graphID
	c.mu.Unlock()
}

// Hub fans layout run progress events out to WebSocket clients. It
// implements graph.ProgressSink, so the layout service publishes into it
// directly.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	events     chan progressFrame

	stop     chan struct{}
	stopOnce sync.Once

	mu sync.RWMutex
}

// NewHub creates a new progress hub. Call Run to start fan-out.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan progressFrame, 256),
		stop:       make(chan struct{}),
	}
}

// Publish implements graph.ProgressSink. It never blocks: when the event
// buffer is full the frame is dropped, since progress is advisory.
func (h *Hub) Publish(ev graph.ProgressEvent) {
	data, err := json.Marshal(WebSocketMessage{Type: "progress", Payload: ev})
	if err != nil {
		logger.Error("Failed to marshal progress event", "error", err)
		return
	}
	select {
	case h.events <- progressFrame{graphID: ev.GraphID.String(), data: data}:
	default:
	}
}

// Run is the hub's main loop. It returns when the context is cancelled or
// Stop is called.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case <-h.stop:
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketConnections.Inc()
			logger.Info("WebSocket client connected", "total_clients", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				metrics.WebSocketConnections.Dec()
				logger.Info("WebSocket client disconnected", "total_clients", len(h.clients))
			}
			h.mu.Unlock()

		case frame := <-h.events:
			h.mu.Lock()
			for client := range h.clients {
				if !client.wants(frame.graphID) {
					continue
				}
				select {
				case client.send <- frame.data:
					metrics.WebSocketMessagesSent.Inc()
				default:
					// Client's send buffer is full, drop the connection.
					close(client.send)
					delete(h.clients, client)
					metrics.WebSocketConnections.Dec()
				}
			}
			h.mu.Unlock()
		}
	}
}

// Stop shuts the hub down. Safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// readPump consumes client messages (subscription changes) and detects
// disconnects.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket unexpected close", "error", err)
			}
			break
		}

		var req subscribeRequest
		if err := json.Unmarshal(message, &req); err != nil || req.Type != "subscribe" {
			continue
		}
		if req.GraphID == "" {
			c.setGraphID("")
			continue
		}
		if _, err := uuid.Parse(req.GraphID); err == nil {
			c.setGraphID(req.GraphID)
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Flush queued frames into the same WebSocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// WebSocketHandler upgrades connections and attaches them to the hub.
type WebSocketHandler struct {
	hub *Hub
}

// NewWebSocketHandler creates a new WebSocket handler over an existing hub.
func NewWebSocketHandler(hub *Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// HandleWebSocket upgrades the connection and streams layout run progress.
// GET /ws?graph_id=<uuid>  (graph_id optional; omitted = all graphs)
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	graphID := r.URL.Query().Get("graph_id")
	if graphID != "" {
		if _, err := uuid.Parse(graphID); err != nil {
			apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidValue("graph_id", "must be a UUID"))
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote its own error response.
		logger.Error("Failed to upgrade to WebSocket", "error", err)
		return
	}

	client := &Client{
		hub:     h.hub,
		conn:    conn,
		send:    make(chan []byte, 256),
		graphID: graphID,
	}

	h.hub.register <- client

	hello := WebSocketMessage{
		Type:    "hello",
		Payload: map[string]string{"graph_id": graphID},
	}
	if data, err := json.Marshal(hello); err == nil {
		select {
		case client.send <- data:
		default:
		}
	}

	go client.writePump()
	go client.readPump()
}
