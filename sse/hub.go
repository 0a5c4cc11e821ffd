package sse

import (
	"path/filepath"
	"sync"

	"github.com/kbukum/agentflow/logger"
)

// Message is one published event.
type Message struct {
	Topic string
	Event string
	Data  []byte
}

// Client is a connected subscriber.
type Client struct {
	id      string
	pattern string
	events  chan Message
}

// NewClient creates a client subscribed to topics matching pattern.
func NewClient(id, pattern string) *Client {
	return &Client{
		id:      id,
		pattern: pattern,
		events:  make(chan Message, 256),
	}
}

// ID returns the client's unique identifier.
func (c *Client) ID() string { return c.id }

// Pattern returns the topic pattern the client subscribed with.
func (c *Client) Pattern() string { return c.pattern }

// Events returns the channel of messages for the client. It is closed when
// the client is unregistered or the hub stops.
func (c *Client) Events() <-chan Message { return c.events }

// send queues msg and reports false when the client is too slow.
func (c *Client) send(msg Message) bool {
	select {
	case c.events <- msg:
		return true
	default:
		logger.Warn("[SSE] Client channel full, dropping message", logger.Fields(
			"client_id", c.id,
			"topic", msg.Topic,
		))
		return false
	}
}

// Hub manages subscribers and routes published messages to them.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan Message
	done       chan struct{}
	stopped    bool
	mu         sync.RWMutex
}

// NewHub creates a hub. Run must be running for clients to subscribe.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Message, 256),
		done:       make(chan struct{}),
	}
}

// Run is the hub's event loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			total := len(h.clients)
			h.mu.Unlock()
			logger.Debug("[SSE_HUB] Client registered", logger.Fields(
				"client_id", client.id,
				"pattern", client.pattern,
				"total_clients", total,
			))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.events)
			}
			total := len(h.clients)
			h.mu.Unlock()
			logger.Debug("[SSE_HUB] Client unregistered", logger.Fields(
				"client_id", client.id,
				"total_clients", total,
			))

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// Stop shuts the hub down and closes every client. Safe to call more than
// once.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.stopped {
		h.stopped = true
		close(h.done)
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		close(client.events)
		delete(h.clients, id)
	}
	logger.Debug("[SSE_HUB] All clients closed during shutdown")
}

// Register subscribes client. It returns false when the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes client and closes its channel.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish queues an event for every client whose pattern matches topic.
// It never blocks; when the queue is full the event is dropped.
func (h *Hub) Publish(topic, event string, data []byte) {
	if event == "" {
		event = EventTypeMessage
	}
	select {
	case <-h.done:
	case h.broadcast <- Message{Topic: topic, Event: event, Data: data}:
	default:
		logger.Warn("[SSE_HUB] Broadcast queue full, dropping message", logger.Fields("topic", topic, "event", event))
	}
}

// deliver runs on the hub goroutine.
func (h *Hub) deliver(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	matched := 0
	for _, client := range h.clients {
		ok, err := filepath.Match(client.pattern, msg.Topic)
		if err != nil || !ok {
			continue
		}
		if client.send(msg) {
			matched++
		}
	}
	logger.Debug("[SSE_HUB] Broadcast sent", logger.Fields(
		"topic", msg.Topic,
		"event", msg.Event,
		"match_count", matched,
		"data_size", len(msg.Data),
	))
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ValidPattern reports whether pattern is a well-formed topic glob.
func ValidPattern(pattern string) bool {
	_, err := filepath.Match(pattern, "")
	return err == nil
}

var _ Publisher = (*Hub)(nil)
