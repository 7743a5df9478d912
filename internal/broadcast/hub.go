// Package broadcast fans the coarse state-changed signal out to connected
// websocket clients. Clients receive a notification that booking state moved
// and re-fetch the projections they care about; no per-booking payload
// crosses the socket.
package broadcast

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Tanmay2302/CampusSpot/internal/log"
	"github.com/Tanmay2302/CampusSpot/internal/metrics"
)

// EventAssetsUpdated is the single event type the hub emits.
const EventAssetsUpdated = "assets:updated"

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 8
)

type event struct {
	Event string    `json:"event"`
	At    time.Time `json:"at"`
}

// Hub owns the client set. All membership changes and fan-outs run on the
// single Run goroutine, so the client map needs no lock.
type Hub struct {
	register   chan *client
	unregister chan *client
	events     chan []byte
	clients    map[*client]struct{}
	upgrader   websocket.Upgrader
	logger     zerolog.Logger
}

// NewHub builds a hub. checkOrigin decides which websocket origins may
// connect; nil admits every origin.
func NewHub(checkOrigin func(r *http.Request) bool) *Hub {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		events:     make(chan []byte, 16),
		clients:    make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		logger: log.WithComponent("broadcast"),
	}
}

// Run processes registrations and fan-outs until ctx is done, then closes
// every client connection.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			return ctx.Err()
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.logger.Debug().Int("clients", len(h.clients)).Msg("websocket client connected")
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.logger.Debug().Int("clients", len(h.clients)).Msg("websocket client disconnected")
			}
		case msg := <-h.events:
			metrics.BroadcastEvents.Inc()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Slow consumer: drop it rather than stall the hub.
					delete(h.clients, c)
					close(c.send)
					h.logger.Warn().Msg("dropped slow websocket client")
				}
			}
		}
	}
}

// StateChanged queues one assets:updated event. Never blocks: if the hub's
// queue is full the freshest pending event already covers this change.
func (h *Hub) StateChanged() {
	msg, err := json.Marshal(event{Event: EventAssetsUpdated, At: time.Now().UTC()})
	if err != nil {
		return
	}
	select {
	case h.events <- msg:
	default:
	}
}

// ServeWS upgrades the request and attaches the client to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBufferSize)}
	h.register <- c
	go c.writePump()
	go c.readPump()
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// readPump discards inbound frames; the protocol is one-way. Its job is to
// service pongs and notice the peer going away.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
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

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
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
