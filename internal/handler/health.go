package handler

import (
	"net/http"
	"time"

	"github.com/SangwoonYun/ks-rewards.com/pkg/response"
)

// Handler serves liveness endpoints.
type Handler struct {
	startedAt time.Time
}

// New creates a health handler.
func New() *Handler {
	return &Handler{startedAt: time.Now()}
}

// Status handles GET /api/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(h.startedAt).Round(time.Second).String(),
	})
}

// Health handles GET /api/v1/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{"status": "healthy"})
}
