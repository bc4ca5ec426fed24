package transport

import (
	"log"
	"sync"

	"github.com/trantuankiet5980/zenroom-chatsync/internal/models"
)

// Subscriber is the slice of Manager the router needs. Tests substitute a fake.
type Subscriber interface {
	Subscribe(topic string) error
	Unsubscribe(topic string) error
}

// Router keeps exactly one live subscription triple (message, read, read-all)
// per conversation. It diffs the desired id set against the active one, so a
// conversation present in both sets is never resubscribed.
type Router struct {
	mu      sync.Mutex
	conn    Subscriber
	active  map[string]bool // conversation ids with a live triple
	desired []string        // last requested id list, replayed after reconnect
	online  bool
}

func NewRouter(conn Subscriber) *Router {
	return &Router{
		conn:   conn,
		active: make(map[string]bool),
	}
}

// Apply reconciles subscriptions against the given conversation id list.
// Empty ids are skipped.
func (r *Router) Apply(conversationIDs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apply(conversationIDs)
}

func (r *Router) apply(conversationIDs []string) {
	r.desired = conversationIDs
	if !r.online {
		return
	}

	want := make(map[string]bool, len(conversationIDs))
	for _, id := range conversationIDs {
		if id == "" {
			continue
		}
		want[id] = true
	}

	for id := range want {
		if r.active[id] {
			continue
		}
		if r.subscribeAll(id) {
			r.active[id] = true
		}
	}
	for id := range r.active {
		if want[id] {
			continue
		}
		r.unsubscribeAll(id)
		delete(r.active, id)
	}
}

// HandleState reacts to the connection signal. Subscription handles do not
// survive a reconnect, so Connected always starts from an empty active set
// and replays the last desired list.
func (r *Router) HandleState(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch s {
	case Connected:
		r.online = true
		r.active = make(map[string]bool)
		r.apply(r.desired)
	case Disconnected:
		r.online = false
		r.active = make(map[string]bool)
	}
}

func (r *Router) subscribeAll(conversationID string) bool {
	for _, topic := range models.ConversationTopics(conversationID) {
		if err := r.conn.Subscribe(topic); err != nil {
			log.Printf("[Sync] subscribe %s failed: %v", topic, err)
			return false
		}
	}
	return true
}

func (r *Router) unsubscribeAll(conversationID string) {
	for _, topic := range models.ConversationTopics(conversationID) {
		if err := r.conn.Unsubscribe(topic); err != nil {
			log.Printf("[Sync] unsubscribe %s failed: %v", topic, err)
		}
	}
}
