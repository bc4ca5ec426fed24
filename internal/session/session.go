package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trantuankiet5980/zenroom-chatsync/internal/api"
	"github.com/trantuankiet5980/zenroom-chatsync/internal/attention"
	"github.com/trantuankiet5980/zenroom-chatsync/internal/models"
	"github.com/trantuankiet5980/zenroom-chatsync/internal/store"
	"github.com/trantuankiet5980/zenroom-chatsync/internal/transport"
)

// Transport is what the session needs from the connection manager. Tests
// substitute a fake.
type Transport interface {
	Connect(token string)
	Disconnect()
	Subscribe(topic string) error
	Unsubscribe(topic string) error
	States() <-chan transport.State
	Frames() <-chan transport.Frame
}

// Session owns the live chat state for one authenticated user: the socket
// connection, the subscription router, the state store, the attention
// controller and the periodic summary poll. It is created after login and
// torn down at logout.
type Session struct {
	creds     Credentials
	client    *api.Client
	conn      Transport
	router    *transport.Router
	store     *store.Store
	attention *attention.Controller

	pollEvery time.Duration
	pageSize  int
	onMessage func(models.Message)
	onLogout  func()

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

type Option func(*Session)

func WithPollInterval(d time.Duration) Option { return func(s *Session) { s.pollEvery = d } }
func WithPageSize(n int) Option               { return func(s *Session) { s.pageSize = n } }

// WithOnMessage registers a callback invoked for every pushed message.
func WithOnMessage(fn func(models.Message)) Option { return func(s *Session) { s.onMessage = fn } }

// WithOnLogout registers the handler run after a forced or explicit logout.
func WithOnLogout(fn func()) Option { return func(s *Session) { s.onLogout = fn } }

func New(client *api.Client, conn Transport, creds Credentials, alerter attention.Alerter, opts ...Option) *Session {
	s := &Session{
		creds:     creds,
		client:    client,
		conn:      conn,
		router:    transport.NewRouter(conn),
		store:     store.New(creds.UserID),
		attention: attention.NewController(creds.UserID, alerter),
		pollEvery: 30 * time.Second,
		pageSize:  20,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store exposes the read side for rendering.
func (s *Session) Store() *store.Store { return s.store }

func (s *Session) Attention() *attention.Controller { return s.attention }

// Done closes when the event loop has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Start fetches the initial conversation list and summaries, seeds the
// attention tracking, connects the socket and runs the event loop.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.client.SetToken(s.creds.Token)

	convs, err := s.client.ListConversations(ctx)
	if err != nil {
		// Roll back so a later Start can retry instead of hitting the
		// already-started fast path.
		s.mu.Lock()
		s.started = false
		s.cancel()
		s.mu.Unlock()
		return fmt.Errorf("initial conversation fetch: %w", err)
	}
	s.store.SetConversations(convs)
	if err := s.refreshSummary(ctx); err != nil && !api.IsAborted(err) {
		log.Printf("[Sync] initial summary fetch failed: %v", err)
	}
	// First pass seeds last-seen tracking without alerting.
	s.attention.Observe(s.store.Conversations())

	s.router.Apply(s.store.ConversationIDs())
	s.conn.Connect(s.creds.Token)

	go s.loop(ctx)
	return nil
}

// Stop tears the session down: socket disconnect (which unsubscribes all
// topics) and event loop shutdown.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.started = false
	s.cancel()
	s.conn.Disconnect()
}

// Logout stops the session and runs the logout handler. Also invoked by the
// REST client's auth-expired hook for the process-wide forced logout.
func (s *Session) Logout() {
	s.Stop()
	if s.onLogout != nil {
		s.onLogout()
	}
}

func (s *Session) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case st := <-s.conn.States():
			s.router.HandleState(st)
		case frame := <-s.conn.Frames():
			s.handleFrame(frame)
		case <-ticker.C:
			if err := s.refreshSummary(ctx); err != nil && !api.IsAborted(err) {
				log.Printf("[Sync] summary refresh failed: %v", err)
			}
			s.attention.Observe(s.store.Conversations())
		case <-ctx.Done():
			return
		}
	}
}

func (s *Session) handleFrame(frame transport.Frame) {
	ev, err := models.ParseEvent(frame.Topic, frame.Data)
	if err != nil {
		log.Printf("[Sync] dropping event on %s: %v", frame.Topic, err)
		return
	}
	switch ev := ev.(type) {
	case models.MessageCreated:
		res := s.store.ApplyPush(ev.Message)
		if res.NewConversation {
			s.router.Apply(s.store.ConversationIDs())
			s.attention.SetSelected(s.store.Selected())
		}
		s.attention.Observe(s.store.Conversations())
		if s.onMessage != nil {
			s.onMessage(ev.Message)
		}
	case models.MessageRead:
		s.store.ApplyRead(ev)
	case models.ConversationRead:
		s.store.ApplyReadAll(ev)
	}
}

func (s *Session) refreshSummary(ctx context.Context) error {
	summaries, err := s.client.Summary(ctx)
	if err != nil {
		return err
	}
	for _, sum := range summaries {
		s.store.UpsertSummary(sum.ConversationID, sum.Unread, sum.LastMessage)
	}
	return nil
}

// Select makes a conversation the active one and optimistically marks it
// read. The server acknowledgment runs in the background; a failure is not
// rolled back, the next summary poll corrects any drift.
func (s *Session) Select(ctx context.Context, conversationID string) {
	s.store.Select(conversationID)
	s.attention.SetSelected(conversationID)
	if conversationID == "" {
		return
	}
	s.store.MarkRead(conversationID)
	go func() {
		if err := s.client.MarkRead(context.WithoutCancel(ctx), conversationID); err != nil && !api.IsAborted(err) {
			log.Printf("[Sync] mark-read %s failed: %v", conversationID, err)
		}
	}()
}

// ComposeTo enters compose mode towards a peer with no conversation yet.
func (s *Session) ComposeTo(peerID string) {
	s.store.SelectPeer(peerID)
	s.attention.SetSelected("")
}

// Send posts a message to the selected conversation, or to the pending peer
// when composing. The authoritative response may carry a brand-new
// conversation id, which gets promoted to the selected one.
func (s *Session) Send(ctx context.Context, body string, attachments []models.Attachment) (models.Message, error) {
	req := api.SendRequest{
		Body:        body,
		Attachments: attachments,
		ClientID:    uuid.NewString(),
	}
	if selected := s.store.Selected(); selected != "" {
		req.ConversationID = selected
	} else if peer := s.store.PendingPeer(); peer != "" {
		req.PeerID = peer
	} else {
		return models.Message{}, fmt.Errorf("no conversation or peer selected")
	}

	msg, err := s.client.Send(ctx, req)
	if err != nil {
		return models.Message{}, err
	}
	res := s.store.ApplySendResult(msg)
	if res.NewConversation {
		s.router.Apply(s.store.ConversationIDs())
	}
	s.attention.SetSelected(s.store.Selected())
	return msg, nil
}

// LoadOlder fetches the next unloaded history page for a conversation.
// Returns false when the oldest page has already been reached. An aborted
// fetch mutates nothing.
func (s *Session) LoadOlder(ctx context.Context, conversationID string) (bool, error) {
	page := s.store.NextPage(conversationID)
	if page < 0 {
		return false, nil
	}
	result, err := s.client.Messages(ctx, conversationID, page, s.pageSize)
	if err != nil {
		if api.IsAborted(err) {
			return false, nil
		}
		return false, err
	}
	s.store.ApplyPage(conversationID, result.Page, result.Messages, result.TotalPages, result.Last)
	return true, nil
}

// Delete removes a conversation server-side and locally, and drops its
// subscriptions.
func (s *Session) Delete(ctx context.Context, conversationID string) error {
	if err := s.client.DeleteConversation(ctx, conversationID); err != nil {
		return err
	}
	s.store.Delete(conversationID)
	s.router.Apply(s.store.ConversationIDs())
	return nil
}

// Refresh refetches the conversation list on demand and reconciles
// subscriptions with it.
func (s *Session) Refresh(ctx context.Context) error {
	convs, err := s.client.ListConversations(ctx)
	if err != nil {
		if api.IsAborted(err) {
			return nil
		}
		return err
	}
	s.store.SetConversations(convs)
	s.router.Apply(s.store.ConversationIDs())
	return nil
}

// SetVisible and SetFocused forward front-end visibility state to the
// attention controller.
func (s *Session) SetVisible(visible bool) { s.attention.SetVisible(visible) }
func (s *Session) SetFocused(focused bool) { s.attention.SetFocused(focused) }
