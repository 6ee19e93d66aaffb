package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rigforge/rigforge/internal/model"
	"github.com/rigforge/rigforge/internal/store"
)

func (s *Server) handleListUsed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.UsedFilter{
		Status:   model.UsedItemStatus(q.Get("status")),
		Category: model.Category(q.Get("category")),
		SellerID: q.Get("sellerId"),
		Limit:    queryInt(q.Get("limit")),
		Offset:   queryInt(q.Get("offset")),
	}
	items, err := s.store.ListUsedItems(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "list used items")
		return
	}
	if items == nil {
		items = []model.UsedItem{}
	}
	respondJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetUsed(w http.ResponseWriter, r *http.Request) {
	item, err := s.store.GetUsedItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "get used item")
		return
	}
	if item == nil {
		respondError(w, http.StatusNotFound, "used item not found")
		return
	}
	respondJSON(w, http.StatusOK, item)
}

func (s *Server) handleCreateUsed(w http.ResponseWriter, r *http.Request) {
	var item model.UsedItem
	if err := decodeJSON(r, &item); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !item.Category.Valid() {
		respondError(w, http.StatusBadRequest, "unknown category")
		return
	}
	if item.Price <= 0 {
		respondError(w, http.StatusBadRequest, "price must be positive")
		return
	}
	claims := claimsFrom(r.Context())
	item.ID = uuid.New().String()
	item.SellerID = claims.UserID
	item.SellerName = claims.Username
	if item.Type == "" {
		item.Type = "personal"
	}
	// Personal listings wait for moderation; official stock lists directly.
	if item.Type == "official" && claims.Role == model.RoleAdmin {
		item.Status = model.UsedListed
	} else {
		item.Type = "personal"
		item.Status = model.UsedPending
	}
	item.CreatedAt = time.Now().UTC()
	item.SoldAt = nil
	if err := s.store.CreateUsedItem(r.Context(), &item); err != nil {
		respondError(w, http.StatusInternalServerError, "create used item")
		return
	}
	respondJSON(w, http.StatusCreated, item)
}

// usedTransitions lists the legal status moves for a listing.
var usedTransitions = map[model.UsedItemStatus][]model.UsedItemStatus{
	model.UsedPending: {model.UsedListed, model.UsedRemoved},
	model.UsedListed:  {model.UsedSold, model.UsedRemoved},
}

func usedTransitionAllowed(from, to model.UsedItemStatus) bool {
	for _, next := range usedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s *Server) handleUpdateUsed(w http.ResponseWriter, r *http.Request) {
	existing, err := s.store.GetUsedItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "get used item")
		return
	}
	if existing == nil {
		respondError(w, http.StatusNotFound, "used item not found")
		return
	}
	claims := claimsFrom(r.Context())
	isOwner := existing.SellerID == claims.UserID
	isAdmin := claims.Role == model.RoleAdmin
	if !isOwner && !isAdmin {
		respondError(w, http.StatusForbidden, "not the seller")
		return
	}

	var body struct {
		Price       *float64              `json:"price,omitempty"`
		Description *string               `json:"description,omitempty"`
		Status      *model.UsedItemStatus `json:"status,omitempty"`
	}
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Price != nil {
		if *body.Price <= 0 {
			respondError(w, http.StatusBadRequest, "price must be positive")
			return
		}
		existing.Price = *body.Price
	}
	if body.Description != nil {
		existing.Description = *body.Description
	}
	if body.Status != nil && *body.Status != existing.Status {
		// Moderation (pending -> listed) is admin-only; sellers may mark
		// sold or pull the listing.
		if *body.Status == model.UsedListed && !isAdmin {
			respondError(w, http.StatusForbidden, "listing approval is admin-only")
			return
		}
		if !usedTransitionAllowed(existing.Status, *body.Status) {
			respondError(w, http.StatusBadRequest, "illegal status transition")
			return
		}
		existing.Status = *body.Status
		if *body.Status == model.UsedSold {
			now := time.Now().UTC()
			existing.SoldAt = &now
		}
	}

	if err := s.store.UpdateUsedItem(r.Context(), existing); err != nil {
		respondError(w, http.StatusInternalServerError, "update used item")
		return
	}
	respondJSON(w, http.StatusOK, existing)
}
