package hub

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Subscription scopes a client to a tenant and optionally to one table.
type Subscription struct {
	TenantID string
	TableID  string
}

type Client struct {
	ID           string
	Send         chan []byte
	Subscription Subscription

	mu      sync.Mutex
	holding bool
	held    [][]byte
}

// offer queues payload while the client is held and sends it otherwise.
// It reports false when the payload was dropped.
func (c *Client) offer(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.holding {
		// One slot stays free for the frame passed to Activate.
		if len(c.held) >= cap(c.Send)-1 {
			return false
		}
		c.held = append(c.held, payload)
		return true
	}
	select {
	case c.Send <- payload:
		return true
	default:
		return false
	}
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

type SubscribeMessage struct {
	Action  string `json:"action"`
	TableID string `json:"tableId"`
}

func New() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
}

// RegisterHeld adds client but holds its broadcasts until Activate.
func (h *Hub) RegisterHeld(client *Client) {
	client.mu.Lock()
	client.holding = true
	client.mu.Unlock()
	h.Register(client)
}

// Activate sends first to a held client, then whatever was broadcast since
// RegisterHeld, and switches it to direct delivery.
func (h *Hub) Activate(client *Client, first []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	client.mu.Lock()
	defer client.mu.Unlock()
	queue := client.held
	if first != nil {
		queue = append([][]byte{first}, queue...)
	}
	for _, msg := range queue {
		select {
		case client.Send <- msg:
		default:
			log.Printf("drop message for client %s", client.ID)
		}
	}
	client.held = nil
	client.holding = false
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	delete(h.clients, client.ID)
	close(client.Send)
}

func (h *Hub) UpdateSubscription(client *Client, sub Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client.Subscription = sub
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast delivers payload to every client whose subscription matches meta.
// A client with a full buffer misses the message.
func (h *Hub) Broadcast(payload []byte, meta Subscription) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if !match(client.Subscription, meta) {
			continue
		}
		if !client.offer(payload) {
			log.Printf("drop message for client %s", client.ID)
		}
	}
}

// RunHeartbeat broadcasts build() to all clients every interval until ctx ends.
func (h *Hub) RunHeartbeat(ctx context.Context, interval time.Duration, build func() ([]byte, error)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			payload, err := build()
			if err != nil {
				log.Printf("heartbeat build error: %v", err)
				continue
			}
			h.Broadcast(payload, Subscription{})
		}
	}
}

// A client subscribed to nothing receives nothing. An empty meta field
// matches any subscription value.
func match(sub Subscription, meta Subscription) bool {
	if sub.TenantID == "" {
		return false
	}
	if meta.TenantID != "" && meta.TenantID != sub.TenantID {
		return false
	}
	if sub.TableID != "" && meta.TableID != "" && meta.TableID != sub.TableID {
		return false
	}
	return true
}

func ParseSubscribe(data []byte) (SubscribeMessage, bool) {
	var msg SubscribeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return SubscribeMessage{}, false
	}
	if msg.Action != "subscribe" && msg.Action != "unsubscribe" {
		return SubscribeMessage{}, false
	}
	return msg, true
}
