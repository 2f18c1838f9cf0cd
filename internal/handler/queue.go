package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/SangwoonYun/ks-rewards.com/internal/repository"
	"github.com/SangwoonYun/ks-rewards.com/internal/service"
	"github.com/SangwoonYun/ks-rewards.com/pkg/apierror"
	"github.com/SangwoonYun/ks-rewards.com/pkg/response"
)

// QueueHandler serves redemption queue operations.
type QueueHandler struct {
	queue      repository.QueueRepository
	redemption *service.RedemptionService
}

// NewQueueHandler creates a queue handler.
func NewQueueHandler(queue repository.QueueRepository, redemption *service.RedemptionService) *QueueHandler {
	return &QueueHandler{queue: queue, redemption: redemption}
}

// List handles GET /api/v1/queue.
func (h *QueueHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.queue.FindAll(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, items)
}

// EnqueueAll handles POST /api/v1/queue/enqueue-all: queues every
// (active account, validated code) pair still missing a success.
func (h *QueueHandler) EnqueueAll(w http.ResponseWriter, r *http.Request) {
	priority := parsePriority(r, 0)

	count, err := h.redemption.EnqueueValidatedForAll(r.Context(), priority)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]int64{"queued": count})
}

// Process handles POST /api/v1/queue/process: drains one batch now.
func (h *QueueHandler) Process(w http.ResponseWriter, r *http.Request) {
	batchSize := 100
	if v := r.URL.Query().Get("batch"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			response.Error(w, apierror.ValidationError("invalid batch size",
				apierror.FieldError{Field: "batch", Message: "must be a positive integer"}))
			return
		}
		batchSize = n
	}

	result, err := h.redemption.ProcessQueue(r.Context(), batchSize)
	if err != nil {
		response.Error(w, apierror.ServiceUnavailable(err.Error()))
		return
	}
	response.OK(w, result)
}

// Retry handles POST /api/v1/queue/{id}/retry: administrative reset of
// a failed item back to pending.
func (h *QueueHandler) Retry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.Error(w, apierror.BadRequest("invalid queue item id"))
		return
	}

	if err := h.queue.ResetToPending(r.Context(), id); err != nil {
		response.Error(w, apierror.NotFound(err.Error()))
		return
	}
	response.OK(w, map[string]int64{"reset": id})
}

// Remove handles POST /api/v1/queue/{id}/remove.
func (h *QueueHandler) Remove(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.Error(w, apierror.BadRequest("invalid queue item id"))
		return
	}

	if err := h.queue.Delete(r.Context(), id); err != nil {
		response.Error(w, err)
		return
	}
	response.NoContent(w)
}
