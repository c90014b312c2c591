package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hx0day/dashprobe/internal/logging"
	"github.com/hx0day/dashprobe/internal/output"
	"github.com/hx0day/dashprobe/internal/scanner"
)

const (
	maxMessageSize = 4096
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	writeWait      = 10 * time.Second
)

// WebSocketService streams scan progress to connected clients. Every client
// sees every event; a slow client gets dropped rather than stalling the scan.
type WebSocketService struct {
	clients    map[*WSClient]bool
	clientsMux sync.RWMutex

	broadcast  chan Message
	register   chan *WSClient
	unregister chan *WSClient
	done       chan struct{}

	logger   *logging.Logger
	upgrader websocket.Upgrader
}

// WSClient represents a connected WebSocket client
type WSClient struct {
	ID          string
	conn        *websocket.Conn
	send        chan Message
	remoteAddr  string
	connectedAt time.Time

	// mu and closed serialize queue against close: the hub may drop a
	// slow client while its readPump is still replying to pings, and a
	// send on the closed channel would panic the process
	mu     sync.Mutex
	closed bool

	service *WebSocketService
}

// queue offers a message to the client's outbound buffer. Returns false when
// the client is closed or its buffer is full; never blocks, never panics.
func (c *WSClient) queue(msg Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// close shuts the outbound channel exactly once; writePump sees the close
// and tears down the connection
func (c *WSClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Message is the envelope for all WebSocket traffic
type Message struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Error     string          `json:"error,omitempty"`
}

// ScanStartedEvent announces a new scan run
type ScanStartedEvent struct {
	Target       string `json:"target"`
	DashboardURL string `json:"dashboard_url"`
	TotalPorts   int    `json:"total_ports"`
}

// ScanResultEvent carries one completed port probe
type ScanResultEvent struct {
	Current int                     `json:"current"`
	Total   int                     `json:"total"`
	Result  output.PortResultOutput `json:"result"`
}

// ScanCompleteEvent announces the end of a scan run
type ScanCompleteEvent struct {
	Target    string         `json:"target"`
	Summary   output.Summary `json:"summary"`
	ElapsedMS int64          `json:"elapsed_ms"`
}

// NewWebSocketService creates the streaming hub and starts it
func NewWebSocketService(logger *logging.Logger) *WebSocketService {
	s := &WebSocketService{
		clients:    make(map[*WSClient]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *WSClient, 16),
		unregister: make(chan *WSClient, 16),
		done:       make(chan struct{}),
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// The API itself is unauthenticated local tooling; origin
				// enforcement belongs on whatever fronts it
				return true
			},
		},
	}

	go s.run()
	return s
}

// run manages the client set and fans out broadcast messages
func (s *WebSocketService) run() {
	for {
		select {
		case <-s.done:
			s.clientsMux.Lock()
			for client := range s.clients {
				client.close()
				delete(s.clients, client)
			}
			s.clientsMux.Unlock()
			return

		case client := <-s.register:
			s.clientsMux.Lock()
			s.clients[client] = true
			total := len(s.clients)
			s.clientsMux.Unlock()

			s.logger.Info("WebSocket client connected",
				"id", client.ID,
				"addr", client.remoteAddr,
				"total_clients", total)

			welcome := Message{
				Type: "welcome",
				Data: marshalJSON(map[string]string{
					"server":    "dashprobe",
					"client_id": client.ID,
				}),
				Timestamp: time.Now(),
			}
			client.queue(welcome)

		case client := <-s.unregister:
			s.clientsMux.Lock()
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				client.close()
				s.logger.Info("WebSocket client disconnected",
					"id", client.ID,
					"duration", time.Since(client.connectedAt),
					"total_clients", len(s.clients))
			}
			s.clientsMux.Unlock()

		case message := <-s.broadcast:
			s.clientsMux.Lock()
			for client := range s.clients {
				if !client.queue(message) {
					delete(s.clients, client)
					client.close()
				}
			}
			s.clientsMux.Unlock()
		}
	}
}

// Stop shuts down the hub and disconnects all clients
func (s *WebSocketService) Stop() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// BroadcastScanStarted announces a scan run to all clients
func (s *WebSocketService) BroadcastScanStarted(target, dashboardURL string, totalPorts int) {
	s.send(Message{
		Type: "scan_started",
		Data: marshalJSON(ScanStartedEvent{
			Target:       target,
			DashboardURL: dashboardURL,
			TotalPorts:   totalPorts,
		}),
		Timestamp: time.Now(),
	})
}

// BroadcastResult streams one completed port probe. Response excerpts go
// through the same sanitizer as file output; probe bodies come from
// arbitrary internal services.
func (s *WebSocketService) BroadcastResult(current, total int, result scanner.Result) {
	converted := output.ConvertToOutputFormat([]scanner.Result{result})
	s.send(Message{
		Type: "scan_result",
		Data: marshalJSON(ScanResultEvent{
			Current: current,
			Total:   total,
			Result:  converted[0],
		}),
		Timestamp: time.Now(),
	})
}

// BroadcastScanComplete announces the end of a scan run
func (s *WebSocketService) BroadcastScanComplete(target string, summary output.Summary, elapsed time.Duration) {
	s.send(Message{
		Type: "scan_complete",
		Data: marshalJSON(ScanCompleteEvent{
			Target:    target,
			Summary:   summary,
			ElapsedMS: elapsed.Milliseconds(),
		}),
		Timestamp: time.Now(),
	})
}

// send queues a message for broadcast without ever blocking the scan loop
func (s *WebSocketService) send(msg Message) {
	select {
	case s.broadcast <- msg:
	default:
		s.logger.Warn("WebSocket broadcast queue full, dropping message", "type", msg.Type)
	}
}

// handleWebSocket upgrades the connection and registers the client
func (s *WebSocketService) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		ID:          fmt.Sprintf("client_%d", time.Now().UnixNano()),
		conn:        conn,
		send:        make(chan Message, 256),
		remoteAddr:  r.RemoteAddr,
		connectedAt: time.Now(),
		service:     s,
	}

	s.register <- client

	go client.writePump()
	go client.readPump()
}

// ClientCount returns the number of connected clients
func (s *WebSocketService) ClientCount() int {
	s.clientsMux.RLock()
	defer s.clientsMux.RUnlock()
	return len(s.clients)
}

// GetStats returns hub statistics
func (s *WebSocketService) GetStats() map[string]any {
	return map[string]any{
		"connected_clients": s.ClientCount(),
		"broadcast_backlog": len(s.broadcast),
	}
}

// readPump drains incoming messages. Clients only ever send pings; anything
// else gets an error reply.
func (c *WSClient) readPump() {
	defer func() {
		c.service.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.service.logger.Error("WebSocket read error", "client", c.ID, "error", err)
			}
			return
		}

		switch msg.Type {
		case "ping":
			c.queue(Message{Type: "pong", Timestamp: time.Now()})
		default:
			c.queue(Message{
				Type:      "error",
				Error:     fmt.Sprintf("unknown message type: %s", msg.Type),
				Timestamp: time.Now(),
			})
		}
	}
}

// writePump flushes queued messages and keeps the connection alive with pings
func (c *WSClient) writePump() {
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
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
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

func marshalJSON(data any) json.RawMessage {
	bytes, err := json.Marshal(data)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return json.RawMessage(bytes)
}
