package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/SangwoonYun/ks-rewards.com/internal/repository"
	"github.com/SangwoonYun/ks-rewards.com/internal/service"
	"github.com/SangwoonYun/ks-rewards.com/pkg/apierror"
	"github.com/SangwoonYun/ks-rewards.com/pkg/response"
)

// AccountHandler serves account roster operations.
type AccountHandler struct {
	accounts    repository.AccountRepository
	redemptions repository.RedemptionRepository
	redemption  *service.RedemptionService
}

// NewAccountHandler creates an account handler.
func NewAccountHandler(accounts repository.AccountRepository,
	redemptions repository.RedemptionRepository,
	redemption *service.RedemptionService) *AccountHandler {
	return &AccountHandler{accounts: accounts, redemptions: redemptions, redemption: redemption}
}

// Register handles POST /api/v1/accounts.
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FID      string `json:"fid"`
		Nickname string `json:"nickname"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	req.FID = strings.TrimSpace(req.FID)
	if req.FID == "" {
		response.Error(w, apierror.ValidationError("fid is required",
			apierror.FieldError{Field: "fid", Message: "must not be empty"}))
		return
	}

	if err := h.accounts.Upsert(r.Context(), req.FID, req.Nickname, true); err != nil {
		response.Error(w, err)
		return
	}

	account, err := h.accounts.FindByFID(r.Context(), req.FID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, account)
}

// List handles GET /api/v1/accounts.
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.FindAll(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, accounts)
}

// Toggle handles POST /api/v1/accounts/{fid}/toggle.
func (h *AccountHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	fid := chi.URLParam(r, "fid")

	account, err := h.accounts.FindByFID(r.Context(), fid)
	if err != nil {
		response.Error(w, err)
		return
	}
	if account == nil {
		response.Error(w, apierror.NotFound("account not found"))
		return
	}

	if err := h.accounts.SetActive(r.Context(), fid, !account.Active); err != nil {
		response.Error(w, err)
		return
	}
	account.Active = !account.Active
	response.OK(w, account)
}

// Redemptions handles GET /api/v1/accounts/{fid}/redemptions.
func (h *AccountHandler) Redemptions(w http.ResponseWriter, r *http.Request) {
	fid := chi.URLParam(r, "fid")

	records, err := h.redemptions.FindByFID(r.Context(), fid)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, records)
}

// Enqueue handles POST /api/v1/accounts/{fid}/enqueue. Queues every
// validated code the account has not redeemed yet.
func (h *AccountHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	fid := chi.URLParam(r, "fid")
	priority := parsePriority(r, 1)

	count, err := h.redemption.EnqueueForAccount(r.Context(), fid, priority)
	if err != nil {
		response.Error(w, apierror.BadRequest(err.Error()))
		return
	}
	response.OK(w, map[string]int{"queued": count})
}
