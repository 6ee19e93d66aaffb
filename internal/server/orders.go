package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rigforge/rigforge/internal/model"
)

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlanID    string `json:"planId"`
		Amount    int64  `json:"amount"`
		PayMethod string `json:"payMethod"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Amount <= 0 {
		respondError(w, http.StatusBadRequest, "amount must be positive")
		return
	}
	claims := claimsFrom(r.Context())
	order := &model.Order{
		ID:        uuid.New().String(),
		UserID:    claims.UserID,
		PlanID:    req.PlanID,
		Amount:    req.Amount,
		Status:    model.OrderPending,
		PayMethod: req.PayMethod,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateOrder(r.Context(), order); err != nil {
		respondError(w, http.StatusInternalServerError, "create order")
		return
	}
	respondJSON(w, http.StatusCreated, order)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.store.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "get order")
		return
	}
	if order == nil {
		respondError(w, http.StatusNotFound, "order not found")
		return
	}
	claims := claimsFrom(r.Context())
	if order.UserID != claims.UserID && claims.Role != model.RoleAdmin {
		respondError(w, http.StatusForbidden, "not the order owner")
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (s *Server) handleMarkOrderPaid(w http.ResponseWriter, r *http.Request) {
	if err := s.store.MarkOrderPaid(r.Context(), chi.URLParam(r, "id"), time.Now().UTC()); err != nil {
		respondError(w, http.StatusConflict, "order not found or not pending")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "paid"})
}
