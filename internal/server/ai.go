package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/rigforge/rigforge/internal/builder"
	"github.com/rigforge/rigforge/internal/model"
	"github.com/rigforge/rigforge/internal/store"
)

// aiSettings loads the admin-managed completion settings, falling back to the
// static config when nothing has been stored yet.
func (s *Server) aiSettings(ctx context.Context) (model.AISettings, error) {
	raw, err := s.store.GetSetting(ctx, model.SettingsKeyAI)
	if err != nil {
		return model.AISettings{}, err
	}
	if raw == nil {
		return model.AISettings{
			Enabled: s.aiCfg.APIKey != "",
			APIKey:  s.aiCfg.APIKey,
			BaseURL: s.aiCfg.BaseURL,
			Model:   s.aiCfg.Model,
		}, nil
	}
	var settings model.AISettings
	if err := json.Unmarshal(raw, &settings); err != nil {
		return model.AISettings{}, err
	}
	return settings, nil
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req builder.GenerateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	settings, err := s.aiSettings(r.Context())
	if err != nil {
		zap.L().Error("load ai settings", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "load settings")
		return
	}

	build, err := s.generate(r.Context(), settings, req)
	switch {
	case errors.Is(err, builder.ErrNotConfigured):
		respondError(w, http.StatusServiceUnavailable, "AI build generation is not configured; an administrator must enable it in settings")
		return
	case err != nil:
		zap.L().Error("generate build", zap.Error(err))
		respondError(w, http.StatusBadGateway, "build generation failed")
		return
	}

	s.bumpStat(r.Context(), store.StatAIGenerations)
	respondJSON(w, http.StatusOK, build)
}
