package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseMessageEvent(t *testing.T) {
	payload := []byte(`{"id":"m1","conversation_id":"c1","sender_id":"u1","body":"hi","created_at":"2025-06-01T12:00:00Z"}`)

	ev, err := ParseEvent("chat:c1:message", payload)
	require.NoError(t, err)

	created, ok := ev.(MessageCreated)
	require.True(t, ok)
	require.Equal(t, "c1", created.Conversation())
	require.Equal(t, "m1", created.Message.ID)
	require.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), created.Message.CreatedAt)
}

func TestParseMessageEventInheritsTopicConversation(t *testing.T) {
	payload := []byte(`{"id":"m1","sender_id":"u1"}`)

	ev, err := ParseEvent("chat:c9:message", payload)
	require.NoError(t, err)
	require.Equal(t, "c9", ev.Conversation())
}

func TestParseReadEvents(t *testing.T) {
	ev, err := ParseEvent("chat:c1:read", []byte(`{"message_id":"m1","reader_id":"u2"}`))
	require.NoError(t, err)
	read, ok := ev.(MessageRead)
	require.True(t, ok)
	require.Equal(t, "m1", read.MessageID)
	require.Equal(t, "c1", read.ConversationID)

	ev, err = ParseEvent("chat:c1:read-all", []byte(`{"reader_id":"u2"}`))
	require.NoError(t, err)
	all, ok := ev.(ConversationRead)
	require.True(t, ok)
	require.Equal(t, "u2", all.ReaderID)
	require.Equal(t, "c1", all.ConversationID)
}

func TestParseEventRejectsMalformedInput(t *testing.T) {
	cases := map[string]struct {
		topic   string
		payload string
	}{
		"garbage json":       {"chat:c1:message", `{{{`},
		"missing sender":     {"chat:c1:message", `{"id":"m1"}`},
		"missing message id": {"chat:c1:read", `{"reader_id":"u1"}`},
		"missing reader":     {"chat:c1:read-all", `{}`},
		"unknown suffix":     {"chat:c1:typing", `{}`},
		"bad topic shape":    {"dms/c1/message", `{}`},
		"empty conversation": {"chat::message", `{"id":"m1","sender_id":"u1"}`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseEvent(tc.topic, []byte(tc.payload))
			require.Error(t, err)
		})
	}
}

func TestConversationTopics(t *testing.T) {
	topics := ConversationTopics("c1")
	require.Equal(t, [3]string{"chat:c1:message", "chat:c1:read", "chat:c1:read-all"}, topics)
}

func TestLastActivity(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	conv := Conversation{ID: "c1", CreatedAt: created}

	require.Equal(t, created, LastActivity(conv, ConversationMeta{}),
		"falls back to the conversation creation time")

	newer := &Message{ID: "m1", CreatedAt: created.Add(time.Hour)}
	require.Equal(t, newer.CreatedAt, LastActivity(conv, ConversationMeta{LastMessage: newer}))

	older := &Message{ID: "m0", CreatedAt: created.Add(-time.Hour)}
	require.Equal(t, created, LastActivity(conv, ConversationMeta{LastMessage: older}))
}
