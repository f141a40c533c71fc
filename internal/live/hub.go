package live

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hamed0406/sitepulse/internal/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

// Event is pushed to dashboards after every check.
type Event struct {
	Type         string            `json:"type"`
	SiteID       domain.EndpointID `json:"siteId"`
	Status       domain.Status     `json:"status"`
	ResponseTime *int64            `json:"responseTime"`
	IsSlow       bool              `json:"isSlow"`
}

type client struct {
	ws   domain.WorkspaceID
	conn *websocket.Conn
	send chan []byte
}

// Hub fans events out to websocket clients subscribed to a workspace.
type Hub struct {
	log      *zap.Logger
	mu       sync.RWMutex
	clients  map[domain.WorkspaceID]map[*client]bool
	upgrader websocket.Upgrader
}

func New(log *zap.Logger, allowedOrigins []string) *Hub {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Hub{
		log:     log,
		clients: make(map[domain.WorkspaceID]map[*client]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || allowed["*"] || allowed[origin] {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				host := u.Hostname()
				return host == "localhost" || host == "127.0.0.1" || host == "::1"
			},
		},
	}
}

// Publish never blocks; a client whose buffer is full is disconnected.
func (h *Hub) Publish(ws domain.WorkspaceID, evt Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		h.log.Warn("live_marshal_error", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[ws] {
		select {
		case c.send <- data:
		default:
			h.removeLocked(c)
			h.log.Info("live_client_dropped", zap.String("workspace_id", string(ws)))
		}
	}
}

// Subscribers reports the number of connected clients for a workspace.
func (h *Hub) Subscribers(ws domain.WorkspaceID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[ws])
}

// ServeHTTP upgrades GET /ws?workspace=<id>.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws := domain.WorkspaceID(r.URL.Query().Get("workspace"))
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Info("live_upgrade_error", zap.Error(err))
		return
	}

	c := &client{ws: ws, conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	if h.clients[ws] == nil {
		h.clients[ws] = make(map[*client]bool)
	}
	h.clients[ws][c] = true
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	set, ok := h.clients[c.ws]
	if !ok || !set[c] {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.ws)
	}
	close(c.send)
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.remove(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
