// Package attention decides when an incoming message deserves an alert
// (sound, title flash) and when the alert should stop. Visibility and focus
// are plain inputs here so any front end can drive them.
package attention

import (
	"sync"

	"github.com/trantuankiet5980/zenroom-chatsync/internal/store"
)

// Alerter renders the alert. Start replaces any running alert.
type Alerter interface {
	Start(conversationID, preview string)
	Stop()
}

type Phase int

const (
	Idle Phase = iota
	Alerting
)

// Controller tracks the last-seen message id per conversation independently
// of the store, so a reload does not fire alerts for history: the first
// Observe after construction seeds the map without alerting.
type Controller struct {
	mu       sync.Mutex
	selfID   string
	alerter  Alerter
	phase    Phase
	alerted  string // conversation the running alert belongs to
	lastSeen map[string]string
	seeded   bool
	visible  bool
	focused  bool
	selected string
}

func NewController(selfID string, alerter Alerter) *Controller {
	return &Controller{
		selfID:   selfID,
		alerter:  alerter,
		lastSeen: make(map[string]string),
		visible:  true,
		focused:  true,
	}
}

func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Observe scans the conversation views for last-message changes. A change to
// an id never seen for that conversation, authored by someone else, for a
// conversation that is not simultaneously selected, visible and focused,
// starts an alert. A newer qualifying message replaces a running alert.
func (c *Controller) Observe(views []store.View) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.seeded {
		for _, v := range views {
			if v.Meta.LastMessage != nil {
				c.lastSeen[v.Conversation.ID] = v.Meta.LastMessage.ID
			}
		}
		c.seeded = true
		return
	}

	// Forget conversations that disappeared from the list so a recreated id
	// alerts like any other fresh message and the map stays bounded.
	present := make(map[string]bool, len(views))
	for _, v := range views {
		present[v.Conversation.ID] = true
	}
	for id := range c.lastSeen {
		if !present[id] {
			delete(c.lastSeen, id)
		}
	}

	for _, v := range views {
		last := v.Meta.LastMessage
		if last == nil {
			continue
		}
		id := v.Conversation.ID
		if c.lastSeen[id] == last.ID {
			continue
		}
		c.lastSeen[id] = last.ID
		if last.SenderID == c.selfID {
			continue
		}
		if id == c.selected && c.visible && c.focused {
			continue
		}
		preview := last.Body
		if preview == "" && len(last.Attachments) > 0 {
			preview = "Attachment"
		}
		c.startAlert(id, preview)
	}
}

// SetFocused records window focus. Regaining focus cancels any alert.
func (c *Controller) SetFocused(focused bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.focused = focused
	if focused {
		c.stopAlert()
	}
}

// SetVisible records document visibility. Becoming visible while already
// focused cancels any alert.
func (c *Controller) SetVisible(visible bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.visible = visible
	if visible && c.focused {
		c.stopAlert()
	}
}

// SetSelected records the active conversation. Selecting the alerted
// conversation while the page is visible and focused cancels the alert.
func (c *Controller) SetSelected(conversationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = conversationID
	if c.phase == Alerting && conversationID == c.alerted && c.visible && c.focused {
		c.stopAlert()
	}
}

func (c *Controller) startAlert(conversationID, preview string) {
	c.phase = Alerting
	c.alerted = conversationID
	if c.alerter != nil {
		c.alerter.Start(conversationID, preview)
	}
}

func (c *Controller) stopAlert() {
	if c.phase != Alerting {
		return
	}
	c.phase = Idle
	c.alerted = ""
	if c.alerter != nil {
		c.alerter.Stop()
	}
}
