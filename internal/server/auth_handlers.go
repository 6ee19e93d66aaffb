package server

import (
	"errors"
	"net/http"

	"github.com/rigforge/rigforge/internal/auth"
	"github.com/rigforge/rigforge/internal/model"
	"github.com/rigforge/rigforge/internal/store"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user, err := s.auth.Register(r.Context(), req)
	switch {
	case errors.Is(err, auth.ErrInviteInvalid):
		respondError(w, http.StatusForbidden, "invitation code invalid or exhausted")
		return
	case errors.Is(err, auth.ErrUsernameTaken):
		respondError(w, http.StatusConflict, "username already taken")
		return
	case err != nil:
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.bumpStat(r.Context(), store.StatNewUsers)
	respondJSON(w, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	token, user, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "login failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"token": token, "user": user})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	user, err := s.store.GetUser(r.Context(), claims.UserID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "get user")
		return
	}
	if user == nil {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (s *Server) handleCreateInvitation(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	inv, err := s.auth.CreateInvitation(r.Context(), claims.UserID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "create invitation")
		return
	}
	respondJSON(w, http.StatusCreated, inv)
}

func (s *Server) handleSendCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Destination string                    `json:"destination"`
		Channel     model.VerificationChannel `json:"channel"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Channel != model.ChannelSMS && req.Channel != model.ChannelEmail {
		respondError(w, http.StatusBadRequest, "unknown channel")
		return
	}
	err := s.auth.SendVerificationCode(r.Context(), req.Destination, req.Channel)
	if errors.Is(err, auth.ErrRateLimited) {
		respondError(w, http.StatusTooManyRequests, "code requested too frequently")
		return
	}
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func (s *Server) handleVerifyCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Destination string                    `json:"destination"`
		Channel     model.VerificationChannel `json:"channel"`
		Code        string                    `json:"code"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.auth.VerifyCode(r.Context(), req.Destination, req.Channel, req.Code); err != nil {
		respondError(w, http.StatusBadRequest, "verification code mismatch or expired")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "verified"})
}
