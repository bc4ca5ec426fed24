package transport

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trantuankiet5980/zenroom-chatsync/internal/models"
)

type fakeSubscriber struct {
	subscribed   []string
	unsubscribed []string
	failTopics   map[string]bool
}

func (f *fakeSubscriber) Subscribe(topic string) error {
	if f.failTopics[topic] {
		return errors.New("subscribe refused")
	}
	f.subscribed = append(f.subscribed, topic)
	return nil
}

func (f *fakeSubscriber) Unsubscribe(topic string) error {
	f.unsubscribed = append(f.unsubscribed, topic)
	return nil
}

func (f *fakeSubscriber) countFor(conversationID string) (subs, unsubs int) {
	topics := models.ConversationTopics(conversationID)
	for _, s := range f.subscribed {
		for _, t := range topics {
			if s == t {
				subs++
			}
		}
	}
	for _, u := range f.unsubscribed {
		for _, t := range topics {
			if u == t {
				unsubs++
			}
		}
	}
	return subs, unsubs
}

func TestRouterSubscriptionMinimality(t *testing.T) {
	fake := &fakeSubscriber{}
	r := NewRouter(fake)
	r.HandleState(Connected)

	r.Apply([]string{"A", "B"})
	r.Apply([]string{"A", "B", "C"})
	r.Apply([]string{"B", "C"})

	subsA, unsubsA := fake.countFor("A")
	subsB, unsubsB := fake.countFor("B")
	subsC, unsubsC := fake.countFor("C")

	require.Equal(t, 3, subsA, "A subscribed once (three topics)")
	require.Equal(t, 3, unsubsA, "A torn down once")
	require.Equal(t, 3, subsB, "B never resubscribed")
	require.Zero(t, unsubsB)
	require.Equal(t, 3, subsC, "C subscribed exactly once")
	require.Zero(t, unsubsC)
}

func TestRouterEachConversationGetsThreeTopics(t *testing.T) {
	fake := &fakeSubscriber{}
	r := NewRouter(fake)
	r.HandleState(Connected)

	r.Apply([]string{"conv-1"})
	require.ElementsMatch(t, []string{
		"chat:conv-1:message",
		"chat:conv-1:read",
		"chat:conv-1:read-all",
	}, fake.subscribed)
}

func TestRouterReconnectReestablishesEverything(t *testing.T) {
	fake := &fakeSubscriber{}
	r := NewRouter(fake)
	r.HandleState(Connected)
	r.Apply([]string{"A", "B"})

	// Handles do not survive a reconnect.
	r.HandleState(Disconnected)
	r.HandleState(Connected)

	subsA, _ := fake.countFor("A")
	subsB, _ := fake.countFor("B")
	require.Equal(t, 6, subsA, "A resubscribed after reconnect")
	require.Equal(t, 6, subsB, "B resubscribed after reconnect")
	require.Empty(t, fake.unsubscribed, "no teardown during a dead connection")
}

func TestRouterBuffersDesiredSetWhileOffline(t *testing.T) {
	fake := &fakeSubscriber{}
	r := NewRouter(fake)

	r.Apply([]string{"A"})
	require.Empty(t, fake.subscribed, "nothing issued before connect")

	r.HandleState(Connected)
	subs, _ := fake.countFor("A")
	require.Equal(t, 3, subs)
}

func TestRouterSkipsMalformedIDs(t *testing.T) {
	fake := &fakeSubscriber{}
	r := NewRouter(fake)
	r.HandleState(Connected)

	r.Apply([]string{"", "A"})
	subs, _ := fake.countFor("A")
	require.Equal(t, 3, subs)
	require.Len(t, fake.subscribed, 3, "empty id produced no topics")
}

func TestRouterRetriesFailedSubscription(t *testing.T) {
	fake := &fakeSubscriber{failTopics: map[string]bool{"chat:A:read": true}}
	r := NewRouter(fake)
	r.HandleState(Connected)

	// First attempt fails part-way; A is not recorded active.
	r.Apply([]string{"A"})

	fake.failTopics = nil
	r.Apply([]string{"A"})
	subs, _ := fake.countFor("A")
	require.GreaterOrEqual(t, subs, 3, "second apply completed the triple")
}
