package sse

import (
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/kbukum/floq/logger"
)

// clientBuffer is how many events a client may lag behind before events
// are dropped for it.
const clientBuffer = 256

// Event is one server-sent event.
type Event struct {
	// Type becomes the "event:" line; empty means the default message type.
	Type string
	// ID becomes the "id:" line when set.
	ID   string
	Data []byte
}

// Client is a connected subscriber. It receives events published on
// topics matching its glob pattern.
type Client struct {
	id      string
	pattern string
	events  chan Event
	dropped atomic.Int64
}

// NewClient creates a subscriber for topics matching pattern. An empty
// pattern subscribes to everything.
func NewClient(id, pattern string) *Client {
	if pattern == "" {
		pattern = "*"
	}
	return &Client{
		id:      id,
		pattern: pattern,
		events:  make(chan Event, clientBuffer),
	}
}

// ID returns the client's unique identifier.
func (c *Client) ID() string { return c.id }

// Pattern returns the topic pattern the client subscribed with.
func (c *Client) Pattern() string { return c.pattern }

// Events returns the channel for receiving events. It is closed when the
// client is unregistered or the hub stops.
func (c *Client) Events() <-chan Event { return c.events }

// Dropped returns how many events were discarded because the client lagged.
func (c *Client) Dropped() int64 { return c.dropped.Load() }

// send never blocks: a full buffer drops the event for this client only.
func (c *Client) send(ev Event) bool {
	select {
	case c.events <- ev:
		return true
	default:
		c.dropped.Add(1)
		return false
	}
}

func (c *Client) matches(topic string) bool {
	ok, err := filepath.Match(c.pattern, topic)
	return err == nil && ok
}

type publication struct {
	topic string
	event Event
}

// Hub fans published events out to subscribed clients.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	publish    chan publication
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
	log        *logger.Logger
	published  atomic.Int64
}

// NewHub creates a hub. Call Run to start delivering events.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		publish:    make(chan publication, clientBuffer),
		done:       make(chan struct{}),
		log:        logger.Get("sse").WithComponent("sse.hub"),
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
			h.log.Debug("client registered", logger.Fields("client_id", client.id, "pattern", client.pattern, "total_clients", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.events)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("client unregistered", logger.Fields("client_id", client.id, "total_clients", total))

		case p := <-h.publish:
			h.deliver(p)
		}
	}
}

// Stop shuts the hub down, closing every client. Safe to call multiple times.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		close(client.events)
		delete(h.clients, id)
	}
}

// Register adds a client. It reports false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client and closes its event channel.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish queues ev for every client subscribed to topic. It blocks only
// while the hub's own queue is full, and never after Stop.
func (h *Hub) Publish(topic string, ev Event) {
	select {
	case h.publish <- publication{topic: topic, event: ev}:
	case <-h.done:
	}
}

func (h *Hub) deliver(p publication) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.published.Add(1)

	sent := 0
	for _, client := range h.clients {
		if client.matches(p.topic) && client.send(p.event) {
			sent++
		}
	}
	h.log.Debug("event published", logger.Fields("topic", p.topic, "match_count", sent, "data_size", len(p.event.Data)))
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ClientIDs returns the IDs of all connected clients.
func (h *Hub) ClientIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	return ids
}

// Published returns how many events the hub has delivered to its clients.
func (h *Hub) Published() int64 { return h.published.Load() }

var _ Broadcaster = (*Hub)(nil)
