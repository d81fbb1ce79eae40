package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/epavanello/fixodev-sub001/internal/message"
)

// Hub fans job lifecycle events out to connected websocket clients.
// A single goroutine owns the client map; registration, removal, and
// broadcast all go through its channels.
type Hub struct {
	clients    map[*streamClient]bool
	broadcast  chan broadcastMessage
	register   chan *streamClient
	unregister chan *streamClient
	done       chan struct{}
	logger     *slog.Logger
}

type broadcastMessage struct {
	event string
	data  []byte
}

// NewHub returns a Hub; the caller must start Run in its own
// goroutine.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*streamClient]bool),
		broadcast:  make(chan broadcastMessage, 16),
		register:   make(chan *streamClient),
		unregister: make(chan *streamClient),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run owns the client map until ctx is done. Clients that cannot keep
// up with the broadcast rate are dropped.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			return
		case client := <-h.register:
			h.clients[client] = true
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
		case msg := <-h.broadcast:
			for client := range h.clients {
				if !client.subscribedTo(msg.event) {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					delete(h.clients, client)
					close(client.send)
				}
			}
		}
	}
}

// add registers a client, reporting false when the hub has already
// stopped so late /ws handlers do not block on a dead Run loop.
func (h *Hub) add(client *streamClient) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Publish sends a job event to every subscribed client. The send is
// non-blocking: the stream is best-effort observability, and a stalled
// hub must never back-pressure the pipeline.
func (h *Hub) Publish(ev message.JobEvent) {
	encoded, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("encode job event", "error", err)
		return
	}
	select {
	case h.broadcast <- broadcastMessage{event: ev.Event, data: encoded}:
	default:
		h.logger.Warn("job event dropped", "delivery_id", ev.DeliveryID, "status", ev.Status)
	}
}

type streamClient struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	events   []string
	eventsMu sync.RWMutex
	logger   *slog.Logger
}

type subscribeMessage struct {
	Type   string   `json:"type"`
	Events []string `json:"events"`
}

func (c *streamClient) readPump() {
	defer func() {
		_ = c.conn.Close()
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg subscribeMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type != "subscribe" {
			continue
		}
		c.setEvents(msg.Events)
		c.logger.Debug("stream subscribed", "remote", c.conn.RemoteAddr().String(), "events", msg.Events)
	}
}

func (c *streamClient) writePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

func (c *streamClient) setEvents(events []string) {
	c.eventsMu.Lock()
	if len(events) == 0 {
		c.events = nil
	} else {
		c.events = append([]string(nil), events...)
	}
	c.eventsMu.Unlock()
}

// An empty subscription means all events.
func (c *streamClient) subscribedTo(event string) bool {
	c.eventsMu.RLock()
	defer c.eventsMu.RUnlock()
	if len(c.events) == 0 {
		return true
	}
	for _, candidate := range c.events {
		if candidate == event {
			return true
		}
	}
	return false
}
