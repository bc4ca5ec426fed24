package stubserver

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

type client struct {
	userID string
	send   chan []byte
	conn   *websocket.Conn
}

// Hub fans pushed events out to the clients subscribed to each topic.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*client]bool
}

func NewHub() *Hub {
	return &Hub{topics: make(map[string]map[*client]bool)}
}

func (h *Hub) subscribe(c *client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*client]bool)
	}
	h.topics[topic][c] = true
}

func (h *Hub) unsubscribe(c *client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.topics[topic]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.topics, topic)
		}
	}
}

// drop removes a client from every topic when its connection dies. The read
// pump closes the send channel afterwards; nobody can write to it once the
// client is out of the topic maps.
func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
}

func (h *Hub) dropLocked(c *client) {
	for topic, clients := range h.topics {
		if clients[c] {
			delete(clients, c)
			if len(clients) == 0 {
				delete(h.topics, topic)
			}
		}
	}
}

// SubscriberCount reports how many clients hold a live subscription to a
// topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Broadcast sends a frame to every subscriber of a topic. Slow clients are
// dropped rather than allowed to block the rest.
func (h *Hub) Broadcast(topic string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[Hub] encode payload for %s failed: %v", topic, err)
		return
	}
	frame, err := json.Marshal(struct {
		Topic string          `json:"topic"`
		Data  json.RawMessage `json:"data"`
	}{Topic: topic, Data: data})
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.topics[topic] {
		select {
		case c.send <- frame:
		default:
			h.dropLocked(c)
		}
	}
}
