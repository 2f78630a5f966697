package sse

import (
	"path/filepath"
	"sync"

	"github.com/kbukum/meetscribe/logger"
)

const clientBuffer = 256

// Client represents a connected listener.
type Client struct {
	id       string
	metadata map[string]string
	events   chan []byte
	closed   bool
	dropped  int
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithMetadata adds a metadata key-value pair to the client.
func WithMetadata(key, value string) ClientOption {
	return func(c *Client) {
		c.metadata[key] = value
	}
}

// NewClient creates a new client with optional metadata.
func NewClient(id string, opts ...ClientOption) *Client {
	c := &Client{
		id:       id,
		metadata: make(map[string]string),
		events:   make(chan []byte, clientBuffer),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID returns the client's unique identifier.
func (c *Client) ID() string { return c.id }

// Metadata returns all client metadata.
func (c *Client) Metadata() map[string]string { return c.metadata }

// Events returns the channel for receiving events. It is closed when the
// client is unregistered or the hub stops.
func (c *Client) Events() <-chan []byte { return c.events }

// send queues data without blocking. Returns false if the buffer is full.
// Called with the hub lock held.
func (c *Client) send(data []byte) bool {
	if c.closed {
		return false
	}
	select {
	case c.events <- data:
		return true
	default:
		c.dropped++
		return false
	}
}

func (c *Client) close() {
	if !c.closed {
		c.closed = true
		close(c.events)
	}
}

// Hub manages client connections and message broadcasting. Registrations
// and broadcasts share one queue, so a client receives exactly the
// broadcasts queued after its registration.
type Hub struct {
	clients map[string]*Client
	queue   chan hubOp
	done    chan struct{}
	stopped bool
	mu      sync.RWMutex
	log     *logger.Logger
}

// Message represents a message to broadcast.
type Message struct {
	Pattern string
	Data    []byte
}

// hubOp is one entry of the hub queue. Exactly one of the fields besides
// ack is set.
type hubOp struct {
	msg        *Message
	register   *Client
	unregister *Client
	ack        chan struct{}
}

// NewHub creates a new hub.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		queue:   make(chan hubOp, 1024),
		done:    make(chan struct{}),
		log:     log.WithComponent("sse"),
	}
}

// Run applies registrations and delivers broadcasts in queue order until
// Stop is called. Run it in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAllClients()
			return
		case op := <-h.queue:
			switch {
			case op.register != nil:
				h.add(op.register)
			case op.unregister != nil:
				h.remove(op.unregister)
			default:
				h.deliver(op.msg.Pattern, op.msg.Data)
			}
			if op.ack != nil {
				close(op.ack)
			}
		}
	}
}

// Stop shuts the hub down and closes every client. Safe to call multiple times.
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
		client.close()
		delete(h.clients, id)
	}
}

// Register adds a client to the hub and returns once Run has applied it.
// Registering on a stopped hub closes the client immediately.
func (h *Hub) Register(client *Client) {
	if !h.apply(hubOp{register: client}) {
		h.closeClient(client)
	}
}

// Unregister removes a client from the hub and closes its channel.
func (h *Hub) Unregister(client *Client) {
	if !h.apply(hubOp{unregister: client}) {
		h.closeClient(client)
	}
}

// apply queues op and waits for Run to process it. It returns false when
// the hub stopped first.
func (h *Hub) apply(op hubOp) bool {
	op.ack = make(chan struct{})
	select {
	case h.queue <- op:
	case <-h.done:
		return false
	}
	select {
	case <-op.ack:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.id] = client
	h.log.Debug("client registered", logger.Fields("client_id", client.id, "total_clients", len(h.clients)))
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[client.id]; ok && c == client {
		delete(h.clients, client.id)
	}
	if client.dropped > 0 {
		h.log.Warn("client missed events", logger.Fields("client_id", client.id, "dropped", client.dropped))
	}
	client.close()
}

func (h *Hub) closeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client.close()
}

// BroadcastToPattern queues data for all clients matching the glob pattern.
// Broadcasts after Stop are discarded.
func (h *Hub) BroadcastToPattern(pattern string, data []byte) {
	select {
	case h.queue <- hubOp{msg: &Message{Pattern: pattern, Data: data}}:
	case <-h.done:
	}
}

func (h *Hub) deliver(pattern string, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		matched, err := filepath.Match(pattern, id)
		if err != nil {
			h.log.Error("pattern match error", logger.Fields("pattern", pattern, logger.FieldError, err.Error()))
			return
		}
		if matched && !client.send(data) {
			h.log.Warn("client buffer full, dropping event", logger.Fields("client_id", id))
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

var _ Broadcaster = (*Hub)(nil)
