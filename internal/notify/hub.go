package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"cryptocard-ledger/internal/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var ErrHubBusy = errors.New("alert hub broadcast queue is full")

// AlertMessage is the frame pushed to connected administrator consoles.
type AlertMessage struct {
	Type       string         `json:"type"`
	Title      string         `json:"title"`
	Summary    string         `json:"summary"`
	Alerts     []domain.Alert `json:"alerts"`
	ObservedAt time.Time      `json:"observed_at"`
}

func newAlertMessage(batch domain.AlertBatch) AlertMessage {
	return AlertMessage{
		Type:       "pending_transactions",
		Title:      batch.Title(),
		Summary:    batch.Summary(),
		Alerts:     batch.Alerts,
		ObservedAt: batch.ObservedAt,
	}
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// Hub broadcasts alert batches to every connected websocket client.
type Hub struct {
	clients    map[*client]struct{}
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	done       chan struct{}
	count      atomic.Int64
	upgrader   websocket.Upgrader
	origins    map[string]struct{}
	logger     *slog.Logger
}

// NewHub creates a hub. Run must be started before clients connect.
// Browsers may connect from the server's own origin or one of allowedOrigins;
// requests without an Origin header are not from a browser and are accepted.
func NewHub(logger *slog.Logger, allowedOrigins []string) *Hub {
	h := &Hub{
		clients:    make(map[*client]struct{}),
		register:   make(chan *client, 16),
		unregister: make(chan *client, 16),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
		origins:    make(map[string]struct{}, len(allowedOrigins)),
		logger:     logger,
	}
	for _, origin := range allowedOrigins {
		h.origins[strings.ToLower(strings.TrimRight(origin, "/"))] = struct{}{}
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	_, ok := h.origins[strings.ToLower(origin)]
	return ok
}

// Run serves registrations and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for c := range h.clients {
				c.close()
				delete(h.clients, c)
			}
			h.count.Store(0)
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.count.Store(int64(len(h.clients)))
			h.logger.Info("Alert client connected", "client_id", c.id, "clients", len(h.clients))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.close()
				h.count.Store(int64(len(h.clients)))
				h.logger.Info("Alert client disconnected", "client_id", c.id, "clients", len(h.clients))
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					h.logger.Warn("Dropping slow alert client", "client_id", c.id)
					delete(h.clients, c)
					c.close()
				}
			}
			h.count.Store(int64(len(h.clients)))
		}
	}
}

// Clients returns the number of registered clients.
func (h *Hub) Clients() int {
	return int(h.count.Load())
}

// Notify queues batch for broadcast. It never blocks on slow clients.
func (h *Hub) Notify(ctx context.Context, batch domain.AlertBatch) error {
	data, err := json.Marshal(newAlertMessage(batch))
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrHubBusy
	}
}

// ServeHTTP upgrades the request and streams alerts until the peer goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade alert connection", "origin", r.Header.Get("Origin"), "error", err)
		return
	}

	c := &client{id: uuid.NewString(), conn: conn, send: make(chan []byte, 16)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go h.writePump(c)
	h.readPump(c)
}

// readPump only drains control frames; clients have nothing to say.
func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("Unexpected alert connection close", "client_id", c.id, "error", err)
			}
			return
		}
	}
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
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
