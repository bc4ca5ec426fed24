package store

import (
	"sort"
	"sync"
	"time"

	"github.com/trantuankiet5980/zenroom-chatsync/internal/models"
)

// View is one conversation as the UI renders it.
type View struct {
	Conversation models.Conversation
	Meta         models.ConversationMeta
	LastActivity time.Time
}

// Store is the single source of truth for conversation state. Every mutation
// goes through one of its operations and completes before the next begins;
// nothing reaches into its maps directly.
type Store struct {
	mu            sync.RWMutex
	selfID        string
	conversations map[string]models.Conversation
	meta          map[string]*models.ConversationMeta
	timelines     map[string]*Timeline
	selected      string // "" means no conversation selected
	pendingPeer   string // composing to this peer, no conversation yet
}

func New(selfID string) *Store {
	return &Store{
		selfID:        selfID,
		conversations: make(map[string]models.Conversation),
		meta:          make(map[string]*models.ConversationMeta),
		timelines:     make(map[string]*Timeline),
	}
}

// SetConversations replaces the conversation list from a REST fetch. Meta and
// timelines for conversations still present are kept (additive merge by id);
// state for conversations that disappeared server-side is dropped.
func (s *Store) SetConversations(list []models.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]models.Conversation, len(list))
	for _, conv := range list {
		if conv.ID == "" {
			continue
		}
		next[conv.ID] = conv
	}
	for id := range s.conversations {
		if _, ok := next[id]; !ok {
			delete(s.meta, id)
			delete(s.timelines, id)
		}
	}
	s.conversations = next
}

// UpsertSummary partially merges unread count and last message into a
// conversation's meta. Used by the periodic summary poll and by mark-read
// responses.
func (s *Store) UpsertSummary(conversationID string, unread int, last *models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.ensureMeta(conversationID)
	if unread >= 0 {
		m.Unread = unread
	}
	if last != nil {
		m.LastMessage = last
	}
}

// Select sets the active conversation. An empty id means nothing is selected.
func (s *Store) Select(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = conversationID
	if conversationID != "" {
		s.pendingPeer = ""
	}
}

// SelectPeer enters compose mode towards a peer with no conversation yet.
func (s *Store) SelectPeer(peerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = ""
	s.pendingPeer = peerID
}

func (s *Store) Selected() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

func (s *Store) PendingPeer() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pendingPeer
}

// MarkRead optimistically zeroes the unread badge. A failed server
// acknowledgment is not rolled back; the next summary poll corrects drift.
func (s *Store) MarkRead(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureMeta(conversationID).Unread = 0
}

// Delete removes a conversation and all its local state.
func (s *Store) Delete(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, conversationID)
	delete(s.meta, conversationID)
	delete(s.timelines, conversationID)
	if s.selected == conversationID {
		s.selected = ""
	}
}

// Conversations returns the list sorted by last activity descending.
func (s *Store) Conversations() []View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	views := make([]View, 0, len(s.conversations))
	for id, conv := range s.conversations {
		var meta models.ConversationMeta
		if m := s.meta[id]; m != nil {
			meta = *m
		}
		views = append(views, View{
			Conversation: conv,
			Meta:         meta,
			LastActivity: models.LastActivity(conv, meta),
		})
	}
	sort.Slice(views, func(i, j int) bool {
		if !views[i].LastActivity.Equal(views[j].LastActivity) {
			return views[i].LastActivity.After(views[j].LastActivity)
		}
		return views[i].Conversation.ID < views[j].Conversation.ID
	})
	return views
}

// ConversationIDs feeds the subscription router.
func (s *Store) ConversationIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.conversations))
	for id := range s.conversations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Messages returns the ordered timeline for a conversation. The result is a
// copy; merges re-sort the backing array in place, so handing it out would
// let readers observe a mid-sort timeline.
func (s *Store) Messages(conversationID string) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t := s.timelines[conversationID]
	if t == nil {
		return nil
	}
	out := make([]models.Message, t.Len())
	copy(out, t.Messages())
	return out
}

func (s *Store) Unread(conversationID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m := s.meta[conversationID]; m != nil {
		return m.Unread
	}
	return 0
}

// CanLoadMore reports whether older history remains for a conversation.
func (s *Store) CanLoadMore(conversationID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t := s.timelines[conversationID]; t != nil {
		return t.CanLoadMore()
	}
	return false
}

// NextPage is the page index a "load more" should request, or -1 when there
// is nothing left to load.
func (s *Store) NextPage(conversationID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t := s.timelines[conversationID]
	if t == nil {
		return 0
	}
	if !t.CanLoadMore() && t.HighestPage() >= 0 {
		return -1
	}
	return t.NextPage()
}

// ApplyPage merges a fetched message page into the conversation's timeline.
func (s *Store) ApplyPage(conversationID string, page int, batch []models.Message, totalPages int, last bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.ensureTimeline(conversationID)
	t.ApplyPage(page, batch, totalPages, last)
	s.refreshLastMessage(conversationID)
}

// PushResult tells the caller what a push changed.
type PushResult struct {
	NewConversation bool
	UnreadIncreased bool
}

// ApplyPush merges one pushed message. Unread increments only when the
// message is not self-authored and its conversation is not the selected one.
// A push for an unknown conversation inserts a placeholder entry so the list
// and the subscription set pick it up; a self-authored push while composing
// promotes the new conversation to selected and clears the pending peer.
func (s *Store) ApplyPush(msg models.Message) PushResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res PushResult
	convID := msg.ConversationID
	if convID == "" || msg.ID == "" {
		return res
	}
	if _, ok := s.conversations[convID]; !ok {
		s.insertPlaceholder(msg)
		res.NewConversation = true
		if msg.SenderID == s.selfID && s.pendingPeer != "" {
			s.selected = convID
			s.pendingPeer = ""
		}
	}

	added := s.ensureTimeline(convID).Merge([]models.Message{msg}) > 0
	meta := s.ensureMeta(convID)
	if meta.LastMessage == nil || !msg.CreatedAt.Before(meta.LastMessage.CreatedAt) {
		copied := msg
		meta.LastMessage = &copied
	}
	// A duplicate delivery collapses to one timeline entry and must not bump
	// the badge a second time.
	if added && msg.SenderID != s.selfID && convID != s.selected {
		meta.Unread++
		res.UnreadIncreased = true
	}
	return res
}

// ApplySendResult merges the authoritative message returned by a send call.
// When the send created a brand-new conversation, the conversation is
// inserted, becomes the selected one and any pending-peer state clears.
func (s *Store) ApplySendResult(msg models.Message) PushResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res PushResult
	convID := msg.ConversationID
	if convID == "" || msg.ID == "" {
		return res
	}
	if _, ok := s.conversations[convID]; !ok {
		s.insertPlaceholder(msg)
		res.NewConversation = true
	}
	if convID != s.selected {
		s.selected = convID
	}
	s.pendingPeer = ""

	s.ensureTimeline(convID).Merge([]models.Message{msg})
	meta := s.ensureMeta(convID)
	if meta.LastMessage == nil || !msg.CreatedAt.Before(meta.LastMessage.CreatedAt) {
		copied := msg
		meta.LastMessage = &copied
	}
	return res
}

// ApplyRead handles a single-message read receipt.
func (s *Store) ApplyRead(ev models.MessageRead) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t := s.timelines[ev.ConversationID]; t != nil {
		t.MarkRead(ev.MessageID)
	}
	if m := s.meta[ev.ConversationID]; m != nil && m.LastMessage != nil && m.LastMessage.ID == ev.MessageID {
		m.LastMessage.Read = true
	}
}

// ApplyReadAll handles a conversation-wide read event. When the reader is the
// current user the unread badge resets; either way the counterpart's messages
// flip to read.
func (s *Store) ApplyReadAll(ev models.ConversationRead) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t := s.timelines[ev.ConversationID]; t != nil {
		t.MarkAllReadBy(ev.ReaderID)
	}
	if ev.ReaderID == s.selfID {
		s.ensureMeta(ev.ConversationID).Unread = 0
	}
}

func (s *Store) ensureMeta(conversationID string) *models.ConversationMeta {
	m, ok := s.meta[conversationID]
	if !ok {
		m = &models.ConversationMeta{}
		s.meta[conversationID] = m
	}
	return m
}

func (s *Store) ensureTimeline(conversationID string) *Timeline {
	t, ok := s.timelines[conversationID]
	if !ok {
		t = NewTimeline()
		s.timelines[conversationID] = t
	}
	return t
}

// insertPlaceholder adds a minimal conversation entry for an id seen only via
// a message. The next list fetch or summary poll fills in the details.
func (s *Store) insertPlaceholder(msg models.Message) {
	conv := models.Conversation{
		ID:        msg.ConversationID,
		CreatedAt: msg.CreatedAt,
	}
	if msg.SenderID == s.selfID {
		conv.TenantID = s.selfID
	} else {
		conv.TenantID = msg.SenderID
	}
	s.conversations[conv.ID] = conv
}

func (s *Store) refreshLastMessage(conversationID string) {
	t := s.timelines[conversationID]
	if t == nil || t.Len() == 0 {
		return
	}
	latest := t.Messages()[t.Len()-1]
	meta := s.ensureMeta(conversationID)
	if meta.LastMessage == nil || !latest.CreatedAt.Before(meta.LastMessage.CreatedAt) {
		copied := latest
		meta.LastMessage = &copied
	}
}
