// Package stubserver is an in-memory, ZenRoom-shaped chat backend used for
// local development and end-to-end tests. It speaks the same REST and socket
// contract the sync client expects from the real API.
package stubserver

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/trantuankiet5980/zenroom-chatsync/internal/middleware"
	"github.com/trantuankiet5980/zenroom-chatsync/internal/models"
)

type contextKey string

const userIDKey contextKey = "userID"

type Server struct {
	Store    *Store
	Hub      *Hub
	secret   []byte
	tokenTTL time.Duration
	upgrader websocket.Upgrader
}

func New(secret string) *Server {
	return &Server{
		Store:    NewStore(),
		Hub:      NewHub(),
		secret:   []byte(secret),
		tokenTTL: 24 * time.Hour,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler builds the full route table.
func (s *Server) Handler(corsOrigin string) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/v1/auth/login", s.handleLogin).Methods(http.MethodPost)

	chat := r.PathPrefix("/api/v1/chat").Subrouter()
	chat.Use(s.requireAuth)
	chat.HandleFunc("/conversations", s.handleListConversations).Methods(http.MethodGet)
	chat.HandleFunc("/conversations/{id}/messages", s.handleMessages).Methods(http.MethodGet)
	chat.HandleFunc("/conversations/{id}/read", s.handleMarkRead).Methods(http.MethodPost)
	chat.HandleFunc("/conversations/{id}", s.handleDelete).Methods(http.MethodDelete)
	chat.HandleFunc("/messages", s.handleSend).Methods(http.MethodPost)
	chat.HandleFunc("/summary", s.handleSummary).Methods(http.MethodGet)

	r.HandleFunc("/ws/chat", s.handleWS)

	return middleware.CORS(corsOrigin, r)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	user, ok := s.Store.Authenticate(req.Email, req.Password)
	if !ok {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	claims := jwt.RegisteredClaims{
		Subject:   user.ID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.tokenTTL)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		http.Error(w, "token error", http.StatusInternalServerError)
		return
	}
	log.Printf("[Stub] login %s", req.Email)
	writeJSON(w, map[string]string{"token": token})
}

// requireAuth validates the bearer token and stashes the user id in the
// request context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := s.authenticate(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	})
}

func (s *Server) authenticate(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	raw := strings.TrimPrefix(header, "Bearer ")
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid || claims.Subject == "" {
		return "", false
	}
	return claims.Subject, true
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(userIDKey).(string)
	writeJSON(w, s.Store.ConversationsFor(userID))
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	convID := mux.Vars(r)["id"]
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 0 {
		page = 0
	}
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	batch, totalPages, last := s.Store.Page(convID, page, size)
	writeJSON(w, map[string]any{
		"messages":    batch,
		"page":        page,
		"total_pages": totalPages,
		"last":        last,
	})
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(userIDKey).(string)
	var req struct {
		ConversationID string              `json:"conversation_id"`
		PeerID         string              `json:"peer_id"`
		Body           string              `json:"body"`
		Attachments    []models.Attachment `json:"attachments"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	convID := req.ConversationID
	if convID == "" {
		if req.PeerID == "" {
			http.Error(w, "conversation_id or peer_id required", http.StatusBadRequest)
			return
		}
		conv := s.Store.StartOrGetConversation(userID, req.PeerID, "")
		convID = conv.ID
	}
	msg, err := s.Store.AddMessage(convID, userID, req.Body, req.Attachments)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.Hub.Broadcast(models.MessageTopic(convID), msg)
	writeJSON(w, msg)
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(userIDKey).(string)
	convID := mux.Vars(r)["id"]
	s.Store.MarkAllRead(convID, userID)
	s.Hub.Broadcast(models.ReadAllTopic(convID), models.ConversationRead{
		ConversationID: convID,
		ReaderID:       userID,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	s.Store.DeleteConversation(mux.Vars(r)["id"])
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(userIDKey).(string)
	writeJSON(w, s.Store.SummaryFor(userID))
}

// handleWS upgrades the connection and pumps subscribe/unsubscribe control
// frames from the client and broadcast frames back out.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.authenticate(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{
		userID: userID,
		send:   make(chan []byte, 256),
		conn:   conn,
	}
	log.Printf("[Stub] socket connected user=%s", userID)

	// Read pump
	go func() {
		defer func() {
			s.Hub.drop(c)
			close(c.send)
			conn.Close()
		}()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var ctl struct {
				Action string `json:"action"`
				Topic  string `json:"topic"`
			}
			if err := json.Unmarshal(data, &ctl); err != nil || ctl.Topic == "" {
				continue
			}
			switch ctl.Action {
			case "subscribe":
				s.Hub.subscribe(c, ctl.Topic)
			case "unsubscribe":
				s.Hub.unsubscribe(c, ctl.Topic)
			}
		}
	}()
	// Write pump
	go func() {
		for message := range c.send {
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		}
	}()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
