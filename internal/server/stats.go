package server

import (
	"net/http"
	"time"

	"github.com/rigforge/rigforge/internal/model"
)

const statsDateLayout = "2006-01-02"

// handleDailyStats returns per-day counters for the requested range,
// defaulting to the last 30 days.
func (s *Server) handleDailyStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")
	now := time.Now().UTC()
	if to == "" {
		to = now.Format(statsDateLayout)
	}
	if from == "" {
		from = now.AddDate(0, 0, -30).Format(statsDateLayout)
	}
	if _, err := time.Parse(statsDateLayout, from); err != nil {
		respondError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
		return
	}
	if _, err := time.Parse(statsDateLayout, to); err != nil {
		respondError(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
		return
	}

	stats, err := s.store.GetDailyStats(r.Context(), from, to)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "daily stats")
		return
	}
	if stats == nil {
		stats = []model.DailyStat{}
	}
	respondJSON(w, http.StatusOK, stats)
}
