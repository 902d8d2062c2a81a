package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"ghost-loop/internal/input"
)

const (
	// MaxWSConnectionsTotal is the maximum number of WebSocket connections allowed
	MaxWSConnectionsTotal = 200

	// MaxWSConnectionsPerIP is the maximum WebSocket connections per IP
	MaxWSConnectionsPerIP = 10

	wsWriteWait    = 2 * time.Second
	wsMaxMessage   = 4096
	stateBroadcast = 100 * time.Millisecond // 10 Hz
)

type wsClient struct {
	conn *websocket.Conn
	ip   string
}

// wsMessage is the envelope for everything the hub sends
type wsMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// WebSocketHub fans out state and signals to clients and feeds their
// commands into the input queue
type WebSocketHub struct {
	clients    map[*websocket.Conn]*wsClient
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *websocket.Conn
	mu         sync.RWMutex

	conns    *ConnLimiter
	inputs   InputQueue
	upgrader websocket.Upgrader
	done     chan struct{} // closed when Run returns
}

// NewWebSocketHub creates a hub. origins follows the CORS origin list.
func NewWebSocketHub(inputs InputQueue, origins []string) *WebSocketHub {
	if origins == nil {
		origins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	return &WebSocketHub{
		clients:    make(map[*websocket.Conn]*wsClient),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *websocket.Conn),
		conns:      NewConnLimiter(MaxWSConnectionsPerIP),
		inputs:     inputs,
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(origins),
		},
	}
}

// Run owns every connection write until ctx is done
func (h *WebSocketHub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.conn] = client
			count := len(h.clients)
			h.mu.Unlock()

			log.Info().Str("ip", client.ip).Int("clients", count).Msg("📱 client connected")
			UpdateWSConnections(count)

		case conn := <-h.unregister:
			h.drop(conn)

		case message := <-h.broadcast:
			h.mu.RLock()
			var failed []*websocket.Conn
			for conn := range h.clients {
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					failed = append(failed, conn)
				}
			}
			h.mu.RUnlock()

			for _, conn := range failed {
				h.drop(conn)
			}
			IncrementWSMessages()
		}
	}
}

func (h *WebSocketHub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	client, ok := h.clients[conn]
	if ok {
		delete(h.clients, conn)
	}
	count := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	h.conns.Release(client.ip)
	conn.Close()
	log.Info().Int("clients", count).Msg("📱 client disconnected")
	UpdateWSConnections(count)
}

func (h *WebSocketHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, client := range h.clients {
		h.conns.Release(client.ip)
		conn.Close()
		delete(h.clients, conn)
	}
	UpdateWSConnections(0)
}

// Broadcast queues a message for every client. It never blocks: when the
// hub is behind the message is skipped.
func (h *WebSocketHub) Broadcast(event string, data interface{}) {
	payload, err := json.Marshal(wsMessage{Event: event, Data: data})
	if err != nil {
		log.Warn().Err(err).Str("event", event).Msg("broadcast encode failed")
		return
	}

	select {
	case h.broadcast <- payload:
	default:
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// StartBroadcastLoop pushes the latest snapshot every 100ms while anyone
// is connected
func (h *WebSocketHub) StartBroadcastLoop(ctx context.Context, engine EngineInterface) {
	ticker := time.NewTicker(stateBroadcast)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if h.ClientCount() == 0 {
					continue
				}
				h.Broadcast("state", engine.GetSnapshot())
			}
		}
	}()
}

// HandleWebSocket upgrades the request and reads client commands
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)

	if h.ClientCount() >= MaxWSConnectionsTotal {
		log.Warn().Msg("⚠️ websocket rejected: total limit reached")
		RecordConnectionRejected("ws_total_limit")
		writeError(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}
	if !h.conns.Acquire(ip) {
		log.Warn().Str("ip", ip).Msg("⚠️ websocket rejected: per-IP limit reached")
		RecordConnectionRejected("ws_ip_limit")
		writeError(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("websocket upgrade failed")
		h.conns.Release(ip)
		return
	}
	conn.SetReadLimit(wsMaxMessage)

	select {
	case h.register <- &wsClient{conn: conn, ip: ip}:
	case <-h.done:
		h.conns.Release(ip)
		conn.Close()
		return
	}

	go func() {
		defer func() {
			select {
			case h.unregister <- conn:
			case <-h.done:
			}
		}()

		source := "ws:" + ip
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				return
			}

			var req input.Request
			if err := json.Unmarshal(message, &req); err != nil {
				log.Debug().Err(err).Str("ip", ip).Msg("websocket message ignored")
				continue
			}
			cmd, err := req.Command(source)
			if err != nil {
				log.Debug().Err(err).Str("ip", ip).Msg("websocket command rejected")
				continue
			}
			if !h.inputs.Enqueue(cmd) {
				RecordInputDropped()
			}
		}
	}()
}
