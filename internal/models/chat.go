package models

import "time"

// Party is a lightweight reference to one side of a conversation.
type Party struct {
	ID       string `json:"id"`
	FullName string `json:"full_name,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
	Role     string `json:"role,omitempty"` // "tenant" or "landlord"
}

// Attachment is a file attached to a message. Only the URL is required.
type Attachment struct {
	ID   string `json:"id,omitempty"`
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

// PropertySnapshot is a denormalized copy of the listing a message refers to.
type PropertySnapshot struct {
	ID        string `json:"id"`
	Title     string `json:"title,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// Message is immutable once created except for the Read flag,
// which only ever transitions false -> true.
type Message struct {
	ID             string            `json:"id"`
	ConversationID string            `json:"conversation_id"`
	SenderID       string            `json:"sender_id"`
	Body           string            `json:"body,omitempty"`
	Attachments    []Attachment      `json:"attachments,omitempty"`
	Property       *PropertySnapshot `json:"property,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	Read           bool              `json:"read"`
}

type Conversation struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id"`
	LandlordID string    `json:"landlord_id"`
	PropertyID string    `json:"property_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ConversationMeta is derived client state cached per conversation.
type ConversationMeta struct {
	Unread      int      `json:"unread"`
	LastMessage *Message `json:"last_message,omitempty"`
}

// LastActivity is recomputed on every read rather than stored, so it can
// never go stale relative to the last message.
func LastActivity(conv Conversation, meta ConversationMeta) time.Time {
	if meta.LastMessage != nil && meta.LastMessage.CreatedAt.After(conv.CreatedAt) {
		return meta.LastMessage.CreatedAt
	}
	return conv.CreatedAt
}
