package stubserver

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/trantuankiet5980/zenroom-chatsync/internal/models"
)

type User struct {
	ID           string
	Email        string
	FullName     string
	Role         string // "tenant" or "landlord"
	PasswordHash []byte
}

// Store is the stub backend's in-memory state.
type Store struct {
	mu            sync.RWMutex
	users         map[string]*User // by email
	conversations map[string]*models.Conversation
	messages      map[string][]models.Message // conversation id -> ascending by time
	unread        map[string]map[string]int   // conversation id -> user id -> count
	userIndex     map[string][]string         // user id -> conversation ids
}

func NewStore() *Store {
	return &Store{
		users:         make(map[string]*User),
		conversations: make(map[string]*models.Conversation),
		messages:      make(map[string][]models.Message),
		unread:        make(map[string]map[string]int),
		userIndex:     make(map[string][]string),
	}
}

func (s *Store) AddUser(email, password, fullName, role string) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &User{
		ID:           uuid.NewString(),
		Email:        email,
		FullName:     fullName,
		Role:         role,
		PasswordHash: hash,
	}
	s.mu.Lock()
	s.users[email] = u
	s.mu.Unlock()
	return u, nil
}

// Authenticate checks the password and returns the user on success.
func (s *Store) Authenticate(email, password string) (*User, bool) {
	s.mu.RLock()
	u, ok := s.users[email]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)) != nil {
		return nil, false
	}
	return u, true
}

// StartOrGetConversation finds the conversation between two users or creates
// a new one.
func (s *Store) StartOrGetConversation(tenantID, landlordID, propertyID string) *models.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.userIndex[tenantID] {
		conv := s.conversations[id]
		if (conv.TenantID == tenantID && conv.LandlordID == landlordID) ||
			(conv.TenantID == landlordID && conv.LandlordID == tenantID) {
			return conv
		}
	}
	conv := &models.Conversation{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		LandlordID: landlordID,
		PropertyID: propertyID,
		CreatedAt:  time.Now().UTC(),
	}
	s.conversations[conv.ID] = conv
	s.userIndex[tenantID] = append(s.userIndex[tenantID], conv.ID)
	s.userIndex[landlordID] = append(s.userIndex[landlordID], conv.ID)
	return conv
}

func (s *Store) Conversation(id string) (*models.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	return conv, ok
}

func (s *Store) ConversationsFor(userID string) []models.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]models.Conversation, 0, len(s.userIndex[userID]))
	for _, id := range s.userIndex[userID] {
		if conv, ok := s.conversations[id]; ok {
			result = append(result, *conv)
		}
	}
	return result
}

// AddMessage appends a message and bumps the counterpart's unread count.
func (s *Store) AddMessage(conversationID, senderID, body string, attachments []models.Attachment) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		return models.Message{}, fmt.Errorf("unknown conversation %s", conversationID)
	}
	msg := models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Body:           body,
		Attachments:    attachments,
		CreatedAt:      time.Now().UTC(),
	}
	s.messages[conversationID] = append(s.messages[conversationID], msg)

	recipient := conv.TenantID
	if senderID == conv.TenantID {
		recipient = conv.LandlordID
	}
	if s.unread[conversationID] == nil {
		s.unread[conversationID] = make(map[string]int)
	}
	s.unread[conversationID][recipient]++
	return msg, nil
}

// Page returns one page of history. Page 0 holds the most recent messages;
// higher pages reach further back. Messages within a page stay ascending.
func (s *Store) Page(conversationID string, page, size int) ([]models.Message, int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.messages[conversationID]
	total := len(all)
	if size <= 0 {
		size = 20
	}
	if page < 0 {
		page = 0
	}
	totalPages := (total + size - 1) / size
	if totalPages == 0 {
		return nil, 0, true
	}
	if page >= totalPages {
		return nil, totalPages, true
	}
	hi := total - page*size
	lo := hi - size
	if lo < 0 {
		lo = 0
	}
	batch := make([]models.Message, hi-lo)
	copy(batch, all[lo:hi])
	return batch, totalPages, page == totalPages-1
}

// MarkAllRead zeroes the reader's unread count and flips the read flag on
// the messages the reader caught up on.
func (s *Store) MarkAllRead(conversationID, readerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if counts := s.unread[conversationID]; counts != nil {
		counts[readerID] = 0
	}
	msgs := s.messages[conversationID]
	for i := range msgs {
		if msgs[i].SenderID != readerID {
			msgs[i].Read = true
		}
	}
}

// SummaryFor builds the unread poll response for one user.
func (s *Store) SummaryFor(userID string) []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]Summary, 0, len(s.userIndex[userID]))
	for _, id := range s.userIndex[userID] {
		sum := Summary{ConversationID: id}
		if counts := s.unread[id]; counts != nil {
			sum.Unread = counts[userID]
		}
		if msgs := s.messages[id]; len(msgs) > 0 {
			last := msgs[len(msgs)-1]
			sum.LastMessage = &last
		}
		result = append(result, sum)
	}
	return result
}

// Summary mirrors the dashboard's unread poll row.
type Summary struct {
	ConversationID string          `json:"conversation_id"`
	Unread         int             `json:"unread"`
	LastMessage    *models.Message `json:"last_message,omitempty"`
}

func (s *Store) DeleteConversation(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		return
	}
	delete(s.conversations, conversationID)
	delete(s.messages, conversationID)
	delete(s.unread, conversationID)
	for _, userID := range []string{conv.TenantID, conv.LandlordID} {
		ids := s.userIndex[userID]
		for i, id := range ids {
			if id == conversationID {
				s.userIndex[userID] = append(ids[:i], ids[i+1:]...)
				break
			}
		}
	}
}
