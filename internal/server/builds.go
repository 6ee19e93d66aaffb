package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rigforge/rigforge/internal/model"
	"github.com/rigforge/rigforge/internal/store"
)

func (s *Server) handleListBuilds(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.BuildFilter{
		Status: model.BuildStatus(q.Get("status")),
		UserID: q.Get("userId"),
		Limit:  queryInt(q.Get("limit")),
		Offset: queryInt(q.Get("offset")),
	}
	builds, err := s.store.ListBuilds(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "list builds")
		return
	}
	if builds == nil {
		builds = []model.BuildConfig{}
	}
	respondJSON(w, http.StatusOK, builds)
}

func (s *Server) handleGetBuild(w http.ResponseWriter, r *http.Request) {
	build, err := s.store.GetBuild(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "get build")
		return
	}
	if build == nil {
		respondError(w, http.StatusNotFound, "build not found")
		return
	}
	respondJSON(w, http.StatusOK, build)
}

func (s *Server) handleCreateBuild(w http.ResponseWriter, r *http.Request) {
	var build model.BuildConfig
	if err := decodeJSON(r, &build); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if build.Title == "" {
		respondError(w, http.StatusBadRequest, "title must not be empty")
		return
	}
	claims := claimsFrom(r.Context())
	now := time.Now().UTC()
	build.ID = uuid.New().String()
	build.UserID = claims.UserID
	build.UserName = claims.Username
	build.SerialNumber = newSerialNumber(now)
	if build.Status == "" {
		build.Status = model.BuildDraft
	}
	build.Views = 0
	build.Likes = 0
	build.CreatedAt = now
	build.UpdatedAt = now
	if err := s.store.CreateBuild(r.Context(), &build); err != nil {
		respondError(w, http.StatusInternalServerError, "create build")
		return
	}
	s.bumpStat(r.Context(), store.StatNewBuilds)
	respondJSON(w, http.StatusCreated, build)
}

func (s *Server) handleUpdateBuild(w http.ResponseWriter, r *http.Request) {
	existing, err := s.store.GetBuild(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "get build")
		return
	}
	if existing == nil {
		respondError(w, http.StatusNotFound, "build not found")
		return
	}
	claims := claimsFrom(r.Context())
	if existing.UserID != claims.UserID && claims.Role != model.RoleAdmin {
		respondError(w, http.StatusForbidden, "not the build owner")
		return
	}

	var build model.BuildConfig
	if err := decodeJSON(r, &build); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// Identity and counters are server-owned.
	build.ID = existing.ID
	build.UserID = existing.UserID
	build.UserName = existing.UserName
	build.SerialNumber = existing.SerialNumber
	build.Views = existing.Views
	build.Likes = existing.Likes
	build.CreatedAt = existing.CreatedAt
	build.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateBuild(r.Context(), &build); err != nil {
		respondError(w, http.StatusInternalServerError, "update build")
		return
	}
	respondJSON(w, http.StatusOK, build)
}

func (s *Server) handleDeleteBuild(w http.ResponseWriter, r *http.Request) {
	existing, err := s.store.GetBuild(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "get build")
		return
	}
	if existing == nil {
		respondError(w, http.StatusNotFound, "build not found")
		return
	}
	claims := claimsFrom(r.Context())
	if existing.UserID != claims.UserID && claims.Role != model.RoleAdmin {
		respondError(w, http.StatusForbidden, "not the build owner")
		return
	}
	if err := s.store.DeleteBuild(r.Context(), existing.ID); err != nil {
		respondError(w, http.StatusInternalServerError, "delete build")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleLikeBuild(w http.ResponseWriter, r *http.Request) {
	if err := s.store.IncrementBuildLikes(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, http.StatusNotFound, "build not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "liked"})
}

func (s *Server) handleViewBuild(w http.ResponseWriter, r *http.Request) {
	if err := s.store.IncrementBuildViews(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, http.StatusNotFound, "build not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "viewed"})
}

// newSerialNumber mints a human-readable build serial, e.g. PC-20260830-4F2A.
func newSerialNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:4])
	return fmt.Sprintf("PC-%s-%s", now.Format("20060102"), suffix)
}
