package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rigforge/rigforge/internal/model"
)

const maxSettingSize = 64 << 10

func (s *Server) handleGetSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	raw, err := s.store.GetSetting(r.Context(), key)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "get setting")
		return
	}
	if raw == nil {
		respondError(w, http.StatusNotFound, "setting not found")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(raw)
}

func (s *Server) handlePutSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxSettingSize))
	if err != nil {
		respondError(w, http.StatusBadRequest, "read body")
		return
	}
	if !json.Valid(raw) {
		respondError(w, http.StatusBadRequest, "setting must be valid JSON")
		return
	}
	// The AI settings document has a known shape; reject writes that would
	// break the generator.
	if key == model.SettingsKeyAI {
		var settings model.AISettings
		if err := json.Unmarshal(raw, &settings); err != nil {
			respondError(w, http.StatusBadRequest, "malformed AI settings")
			return
		}
		if settings.Enabled && settings.APIKey == "" {
			respondError(w, http.StatusBadRequest, "enabling AI generation requires an API key")
			return
		}
	}
	if err := s.store.SetSetting(r.Context(), key, raw); err != nil {
		respondError(w, http.StatusInternalServerError, "save setting")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}
