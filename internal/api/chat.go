package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/trantuankiet5980/zenroom-chatsync/internal/models"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResult struct {
	Token string `json:"token"`
}

func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	var res LoginResult
	err := c.do(ctx, http.MethodPost, loginPath, LoginRequest{Email: email, Password: password}, &res)
	return res, err
}

func (c *Client) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := c.do(ctx, http.MethodGet, "/api/v1/chat/conversations", nil, &convs)
	return convs, err
}

// MessagePage is one page of a conversation's history. Page 0 is the most
// recent; higher pages go further back.
type MessagePage struct {
	Messages   []models.Message `json:"messages"`
	Page       int              `json:"page"`
	TotalPages int              `json:"total_pages"`
	Last       bool             `json:"last"`
}

func (c *Client) Messages(ctx context.Context, conversationID string, page, size int) (MessagePage, error) {
	var res MessagePage
	path := fmt.Sprintf("/api/v1/chat/conversations/%s/messages?page=%d&size=%d",
		url.PathEscape(conversationID), page, size)
	err := c.do(ctx, http.MethodGet, path, nil, &res)
	return res, err
}

// SendRequest targets either an existing conversation or, when starting a
// fresh thread, a peer user id. The backend answers with the authoritative
// message, which may carry a newly created conversation id.
type SendRequest struct {
	ConversationID string              `json:"conversation_id,omitempty"`
	PeerID         string              `json:"peer_id,omitempty"`
	Body           string              `json:"body,omitempty"`
	Attachments    []models.Attachment `json:"attachments,omitempty"`
	ClientID       string              `json:"client_id,omitempty"`
}

func (c *Client) Send(ctx context.Context, req SendRequest) (models.Message, error) {
	var msg models.Message
	err := c.do(ctx, http.MethodPost, "/api/v1/chat/messages", req, &msg)
	return msg, err
}

func (c *Client) MarkRead(ctx context.Context, conversationID string) error {
	path := "/api/v1/chat/conversations/" + url.PathEscape(conversationID) + "/read"
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// ConversationSummary is one row of the periodic unread poll.
type ConversationSummary struct {
	ConversationID string          `json:"conversation_id"`
	Unread         int             `json:"unread"`
	LastMessage    *models.Message `json:"last_message,omitempty"`
}

func (c *Client) Summary(ctx context.Context) ([]ConversationSummary, error) {
	var res []ConversationSummary
	err := c.do(ctx, http.MethodGet, "/api/v1/chat/summary", nil, &res)
	return res, err
}

func (c *Client) DeleteConversation(ctx context.Context, conversationID string) error {
	path := "/api/v1/chat/conversations/" + url.PathEscape(conversationID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}
