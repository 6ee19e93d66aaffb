package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rigforge/rigforge/internal/model"
	"github.com/rigforge/rigforge/internal/store"
)

func (s *Server) handleListHardware(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.HardwareFilter{
		Category: model.Category(q.Get("category")),
		Status:   model.HardwareStatus(q.Get("status")),
		MinPrice: queryFloat(q.Get("minPrice")),
		MaxPrice: queryFloat(q.Get("maxPrice")),
		Limit:    queryInt(q.Get("limit")),
		Offset:   queryInt(q.Get("offset")),
	}
	items, err := s.catalog.List(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "list hardware")
		return
	}
	if items == nil {
		items = []model.HardwareItem{}
	}
	respondJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetHardware(w http.ResponseWriter, r *http.Request) {
	item, err := s.catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "get hardware")
		return
	}
	if item == nil {
		respondError(w, http.StatusNotFound, "hardware not found")
		return
	}
	respondJSON(w, http.StatusOK, item)
}

func (s *Server) handleCreateHardware(w http.ResponseWriter, r *http.Request) {
	var item model.HardwareItem
	if err := decodeJSON(r, &item); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.catalog.Create(r.Context(), &item); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, item)
}

func (s *Server) handleUpdateHardware(w http.ResponseWriter, r *http.Request) {
	var item model.HardwareItem
	if err := decodeJSON(r, &item); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	item.ID = chi.URLParam(r, "id")
	if err := s.catalog.Update(r.Context(), &item); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, item)
}

func (s *Server) handleUpdatePrice(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Price float64 `json:"price"`
	}
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Price <= 0 {
		respondError(w, http.StatusBadRequest, "price must be positive")
		return
	}
	item, err := s.catalog.UpdatePrice(r.Context(), chi.URLParam(r, "id"), body.Price)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, item)
}

func (s *Server) handleDeleteHardware(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.Archive(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, http.StatusNotFound, "hardware not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "archived"})
}

func (s *Server) handlePriceHistory(w http.ResponseWriter, r *http.Request) {
	hardwareID := r.URL.Query().Get("hardwareId")
	limit := queryInt(r.URL.Query().Get("limit"))
	changes, err := s.catalog.PriceHistory(r.Context(), hardwareID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "price history")
		return
	}
	if changes == nil {
		changes = []model.PriceChange{}
	}
	respondJSON(w, http.StatusOK, changes)
}

func queryInt(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func queryFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
