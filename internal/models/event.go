package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Topic layout: chat:<conversation-id>:<suffix>. Each conversation gets three
// topics, one per event kind.
const (
	SuffixMessage = "message"
	SuffixRead    = "read"
	SuffixReadAll = "read-all"
)

func MessageTopic(conversationID string) string { return "chat:" + conversationID + ":" + SuffixMessage }
func ReadTopic(conversationID string) string    { return "chat:" + conversationID + ":" + SuffixRead }
func ReadAllTopic(conversationID string) string { return "chat:" + conversationID + ":" + SuffixReadAll }

// ConversationTopics returns the three topics a live conversation subscribes to.
func ConversationTopics(conversationID string) [3]string {
	return [3]string{
		MessageTopic(conversationID),
		ReadTopic(conversationID),
		ReadAllTopic(conversationID),
	}
}

// Event is the tagged union of the three push event kinds.
type Event interface {
	Conversation() string
}

// MessageCreated carries a full message pushed for its conversation.
type MessageCreated struct {
	Message Message
}

func (e MessageCreated) Conversation() string { return e.Message.ConversationID }

// MessageRead is a single-message read receipt.
type MessageRead struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	ReaderID       string `json:"reader_id"`
}

func (e MessageRead) Conversation() string { return e.ConversationID }

// ConversationRead marks every message in a conversation read by one party.
type ConversationRead struct {
	ConversationID string `json:"conversation_id"`
	ReaderID       string `json:"reader_id"`
}

func (e ConversationRead) Conversation() string { return e.ConversationID }

// ParseEvent decodes a raw frame payload into a typed event based on the topic
// suffix. Payloads that do not match the expected shape are rejected; callers
// drop them rather than crash.
func ParseEvent(topic string, data []byte) (Event, error) {
	parts := strings.Split(topic, ":")
	if len(parts) != 3 || parts[0] != "chat" || parts[1] == "" {
		return nil, fmt.Errorf("malformed topic %q", topic)
	}
	convID, suffix := parts[1], parts[2]

	switch suffix {
	case SuffixMessage:
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode message event: %w", err)
		}
		if msg.ID == "" || msg.SenderID == "" {
			return nil, fmt.Errorf("message event missing id or sender")
		}
		if msg.ConversationID == "" {
			msg.ConversationID = convID
		}
		return MessageCreated{Message: msg}, nil
	case SuffixRead:
		var ev MessageRead
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode read event: %w", err)
		}
		if ev.MessageID == "" {
			return nil, fmt.Errorf("read event missing message id")
		}
		if ev.ConversationID == "" {
			ev.ConversationID = convID
		}
		return ev, nil
	case SuffixReadAll:
		var ev ConversationRead
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode read-all event: %w", err)
		}
		if ev.ConversationID == "" {
			ev.ConversationID = convID
		}
		if ev.ReaderID == "" {
			return nil, fmt.Errorf("read-all event missing reader")
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("unknown topic suffix %q", suffix)
	}
}
