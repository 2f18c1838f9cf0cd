package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/SangwoonYun/ks-rewards.com/internal/model"
	"github.com/SangwoonYun/ks-rewards.com/internal/repository"
	"github.com/SangwoonYun/ks-rewards.com/internal/service"
	"github.com/SangwoonYun/ks-rewards.com/pkg/apierror"
	"github.com/SangwoonYun/ks-rewards.com/pkg/response"
)

// CodeHandler serves gift code operations: discovery, validation,
// manual add/remove and read-only queries.
type CodeHandler struct {
	codes       repository.GiftCodeRepository
	redemptions repository.RedemptionRepository
	queue       repository.QueueRepository
	discovery   *service.DiscoveryService
	validator   *service.Validator
	redemption  *service.RedemptionService
}

// NewCodeHandler creates a code handler.
func NewCodeHandler(codes repository.GiftCodeRepository,
	redemptions repository.RedemptionRepository, queue repository.QueueRepository,
	discovery *service.DiscoveryService, validator *service.Validator,
	redemption *service.RedemptionService) *CodeHandler {
	return &CodeHandler{
		codes:       codes,
		redemptions: redemptions,
		queue:       queue,
		discovery:   discovery,
		validator:   validator,
		redemption:  redemption,
	}
}

// List handles GET /api/v1/codes.
func (h *CodeHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	codes, err := h.codes.FindAll(r.Context(), limit)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, codes)
}

// Add handles POST /api/v1/codes. Manual insertion; the code starts
// pending until validated.
func (h *CodeHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	code := model.CleanCode(req.Code)
	if code == "" {
		response.Error(w, apierror.ValidationError("code is required",
			apierror.FieldError{Field: "code", Message: "must not be empty"}))
		return
	}

	created, err := h.codes.InsertIgnore(r.Context(), code, model.ValidationPending, model.SourceManual, time.Now())
	if err != nil {
		response.Error(w, err)
		return
	}
	if !created {
		response.Error(w, apierror.Conflict("code already exists"))
		return
	}

	stored, err := h.codes.FindByCode(r.Context(), code)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, stored)
}

// Delete handles POST /api/v1/codes/{code}/delete. Explicit
// administrative removal; also purges the code's queue items.
func (h *CodeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	code := model.CleanCode(chi.URLParam(r, "code"))

	stored, err := h.codes.FindByCode(r.Context(), code)
	if err != nil {
		response.Error(w, err)
		return
	}
	if stored == nil {
		response.Error(w, apierror.NotFound("code not found"))
		return
	}

	if _, err := h.queue.DeleteByCode(r.Context(), code); err != nil {
		response.Error(w, err)
		return
	}
	if err := h.codes.Delete(r.Context(), code); err != nil {
		response.Error(w, err)
		return
	}
	response.NoContent(w)
}

// Sync handles POST /api/v1/codes/sync: one discovery pass.
func (h *CodeHandler) Sync(w http.ResponseWriter, r *http.Request) {
	result, err := h.discovery.Sync(r.Context())
	if err != nil {
		response.Error(w, apierror.ServiceUnavailable(err.Error()))
		return
	}
	response.OK(w, result)
}

// ValidatePending handles POST /api/v1/codes/validate: classifies every
// pending code.
func (h *CodeHandler) ValidatePending(w http.ResponseWriter, r *http.Request) {
	summary, err := h.validator.ValidatePending(r.Context())
	if err != nil {
		response.Error(w, apierror.ServiceUnavailable(err.Error()))
		return
	}
	response.OK(w, summary)
}

// ValidateOne handles POST /api/v1/codes/{code}/validate.
func (h *CodeHandler) ValidateOne(w http.ResponseWriter, r *http.Request) {
	code := model.CleanCode(chi.URLParam(r, "code"))

	stored, err := h.codes.FindByCode(r.Context(), code)
	if err != nil {
		response.Error(w, err)
		return
	}
	if stored == nil {
		response.Error(w, apierror.NotFound("code not found"))
		return
	}

	result, err := h.validator.ValidateOne(r.Context(), code)
	if err != nil {
		response.Error(w, apierror.ServiceUnavailable(err.Error()))
		return
	}
	response.OK(w, result)
}

// Enqueue handles POST /api/v1/codes/{code}/enqueue: queues one code
// for every active account still missing it.
func (h *CodeHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	code := model.CleanCode(chi.URLParam(r, "code"))
	priority := parsePriority(r, 0)

	stored, err := h.codes.FindByCode(r.Context(), code)
	if err != nil {
		response.Error(w, err)
		return
	}
	if stored == nil {
		response.Error(w, apierror.NotFound("code not found"))
		return
	}

	count, err := h.redemption.EnqueueForCode(r.Context(), code, priority)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]int{"queued": count})
}

// Redemptions handles GET /api/v1/codes/{code}/redemptions.
func (h *CodeHandler) Redemptions(w http.ResponseWriter, r *http.Request) {
	code := model.CleanCode(chi.URLParam(r, "code"))

	records, err := h.redemptions.FindByCode(r.Context(), code)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, records)
}

// parsePriority reads the priority query parameter. Higher values are
// served first; fallback is used when absent or malformed.
func parsePriority(r *http.Request, fallback int) int {
	if v := r.URL.Query().Get("priority"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
