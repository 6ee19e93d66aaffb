package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rigforge/rigforge/internal/model"
)

func (s *Server) handleListChatSessions(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	limit := queryInt(r.URL.Query().Get("limit"))
	sessions, err := s.store.ListChatSessions(r.Context(), status, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "list chat sessions")
		return
	}
	if sessions == nil {
		sessions = []model.ChatSession{}
	}
	respondJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleListChatMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	limit := queryInt(r.URL.Query().Get("limit"))
	messages, err := s.store.ListChatMessages(r.Context(), sessionID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "list chat messages")
		return
	}
	if messages == nil {
		messages = []model.ChatMessage{}
	}
	respondJSON(w, http.StatusOK, messages)
}

// handlePostChatMessage appends a message to a session, creating the session
// on first contact. Guests may post without a token; the session id is
// client-generated in that case.
func (s *Server) handlePostChatMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	var req struct {
		Sender   string `json:"sender"`
		Content  string `json:"content"`
		Type     string `json:"type"`
		UserName string `json:"userName,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" {
		respondError(w, http.StatusBadRequest, "content must not be empty")
		return
	}
	if req.Sender != "user" && req.Sender != "admin" && req.Sender != "system" {
		respondError(w, http.StatusBadRequest, "unknown sender")
		return
	}
	if req.Sender == "admin" {
		claims := s.bearerClaims(r)
		if claims == nil || claims.Role != model.RoleAdmin {
			respondError(w, http.StatusForbidden, "admin sender requires an admin token")
			return
		}
	}
	if req.Type == "" {
		req.Type = "text"
	}

	now := time.Now().UTC()
	session, err := s.store.GetChatSession(r.Context(), sessionID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "get chat session")
		return
	}
	if session == nil {
		session = &model.ChatSession{
			ID:        sessionID,
			UserName:  req.UserName,
			Status:    "active",
			CreatedAt: now,
		}
		if session.UserName == "" {
			session.UserName = "guest"
		}
		if claims := s.bearerClaims(r); claims != nil {
			session.UserID = claims.UserID
			session.UserName = claims.Username
		}
	}
	session.LastMessage = req.Content
	session.LastMessageTime = now
	session.UpdatedAt = now
	if req.Sender != "admin" {
		session.UnreadCount++
	}
	if err := s.store.UpsertChatSession(r.Context(), session); err != nil {
		respondError(w, http.StatusInternalServerError, "save chat session")
		return
	}

	msg := &model.ChatMessage{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Sender:    req.Sender,
		Content:   req.Content,
		Type:      req.Type,
		IsRead:    req.Sender == "admin",
		CreatedAt: now,
	}
	if err := s.store.InsertChatMessage(r.Context(), msg); err != nil {
		respondError(w, http.StatusInternalServerError, "save chat message")
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleMarkSessionRead(w http.ResponseWriter, r *http.Request) {
	if err := s.store.MarkSessionRead(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, http.StatusInternalServerError, "mark session read")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "read"})
}
