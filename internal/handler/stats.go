package handler

import (
	"net/http"
	"strconv"

	"github.com/SangwoonYun/ks-rewards.com/internal/repository"
	"github.com/SangwoonYun/ks-rewards.com/internal/service"
	"github.com/SangwoonYun/ks-rewards.com/pkg/response"
)

// StatsHandler serves read-only aggregates and backup queries.
type StatsHandler struct {
	stats  *service.StatsService
	backup *repository.BackupService
}

// NewStatsHandler creates a stats handler.
func NewStatsHandler(stats *service.StatsService, backup *repository.BackupService) *StatsHandler {
	return &StatsHandler{stats: stats, backup: backup}
}

// Dashboard handles GET /api/v1/stats.
func (h *StatsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.stats.Dashboard(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, dashboard)
}

// RecentRedemptions handles GET /api/v1/redemptions/recent.
func (h *StatsHandler) RecentRedemptions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	records, err := h.stats.RecentRedemptions(r.Context(), limit)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, records)
}

// Backups handles GET /api/v1/backups.
func (h *StatsHandler) Backups(w http.ResponseWriter, r *http.Request) {
	backups, err := h.backup.List()
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, backups)
}

// CreateBackup handles POST /api/v1/backups.
func (h *StatsHandler) CreateBackup(w http.ResponseWriter, r *http.Request) {
	path, err := h.backup.Create(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, map[string]string{"path": path})
}
