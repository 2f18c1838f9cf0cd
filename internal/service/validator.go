package service

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/SangwoonYun/ks-rewards.com/internal/model"
	"github.com/SangwoonYun/ks-rewards.com/internal/repository"
	"github.com/SangwoonYun/ks-rewards.com/internal/upstream"
)

// Classification is the validator's verdict on a code.
type Classification string

const (
	ClassificationValidated Classification = "validated"
	ClassificationInvalid   Classification = "invalid"
	ClassificationExpired   Classification = "expired"
	// ClassificationUncertain leaves the code pending; no state change.
	ClassificationUncertain Classification = "uncertain"
)

// ValidationResult is the outcome of validating one code.
type ValidationResult struct {
	Code           string         `json:"code"`
	Classification Classification `json:"classification"`
	Status         upstream.Status `json:"status"`
	Message        string         `json:"message"`
}

// ValidationSummary summarizes a pass over all pending codes.
type ValidationSummary struct {
	Processed int `json:"processed"`
	Valid     int `json:"valid"`
	Invalid   int `json:"invalid"`
	Uncertain int `json:"uncertain"`
}

// redeemer is the slice of the upstream client the validator and
// processor need.
type redeemer interface {
	Login(ctx context.Context, fid string) (*upstream.LoginResult, error)
	Redeem(ctx context.Context, fid, code string) (*upstream.RedeemResult, error)
}

// ValidatorConfig holds validator settings.
type ValidatorConfig struct {
	// FallbackFID is the hard-coded test account used when no active
	// account is usable.
	FallbackFID string

	// PassDelay is the pause between codes in a validation pass.
	PassDelay time.Duration
}

// Validator classifies pending codes by attempting a real redemption
// against one live test account.
type Validator struct {
	cfg      ValidatorConfig
	client   redeemer
	clock    upstream.Clock
	accounts repository.AccountRepository
	codes    repository.GiftCodeRepository
	queue    repository.QueueRepository
}

// NewValidator creates a code validator.
func NewValidator(cfg ValidatorConfig, client redeemer, clock upstream.Clock,
	accounts repository.AccountRepository, codes repository.GiftCodeRepository,
	queue repository.QueueRepository) *Validator {
	if cfg.FallbackFID == "" {
		cfg.FallbackFID = "27370737"
	}
	if cfg.PassDelay <= 0 {
		cfg.PassDelay = 500 * time.Millisecond
	}
	if clock == nil {
		clock = upstream.NewClock()
	}
	return &Validator{
		cfg:      cfg,
		client:   client,
		clock:    clock,
		accounts: accounts,
		codes:    codes,
		queue:    queue,
	}
}

// pickTestFID selects a test account: a random active account, a second
// random choice when the first fails login, and finally the hard-coded
// fallback.
func (v *Validator) pickTestFID(ctx context.Context) (string, error) {
	active, err := v.accounts.FindActive(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load active accounts: %w", err)
	}
	if len(active) == 0 {
		log.Printf("[Validator] No active accounts, using fallback FID %s", v.cfg.FallbackFID)
		return v.cfg.FallbackFID, nil
	}

	first := active[rand.Intn(len(active))].FID
	login, err := v.client.Login(ctx, first)
	if err == nil && login.OK {
		return first, nil
	}
	log.Printf("[Validator] Test account %s failed login, trying backup", first)

	others := make([]model.Account, 0, len(active))
	for _, a := range active {
		if a.FID != first {
			others = append(others, a)
		}
	}
	if len(others) > 0 {
		second := others[rand.Intn(len(others))].FID
		login, err := v.client.Login(ctx, second)
		if err == nil && login.OK {
			return second, nil
		}
		log.Printf("[Validator] Backup account %s failed login too", second)
	}

	return v.cfg.FallbackFID, nil
}

// ValidateOne classifies a single code and persists the verdict. On an
// invalid or expired verdict every queue item referencing the code is
// purged. An uncertain verdict changes nothing.
func (v *Validator) ValidateOne(ctx context.Context, code string) (*ValidationResult, error) {
	code = model.CleanCode(code)

	fid, err := v.pickTestFID(ctx)
	if err != nil {
		return nil, err
	}

	result, err := v.client.Redeem(ctx, fid, code)
	if err != nil {
		return nil, fmt.Errorf("validation redeem for %s failed: %w", code, err)
	}

	out := &ValidationResult{Code: code, Status: result.Status, Message: result.Message}

	switch result.Status.Classify() {
	case upstream.ClassSuccess, upstream.ClassRestricted:
		out.Classification = ClassificationValidated
		if err := v.codes.UpdateValidation(ctx, code, model.ValidationValidated); err != nil {
			return nil, err
		}
		log.Printf("[Validator] Code %s validated (status %s)", code, result.Status)
	case upstream.ClassExpired:
		out.Classification = ClassificationExpired
		if err := v.retire(ctx, code, model.ValidationExpired); err != nil {
			return nil, err
		}
		log.Printf("[Validator] Code %s expired (status %s)", code, result.Status)
	case upstream.ClassNotFound:
		out.Classification = ClassificationInvalid
		if err := v.retire(ctx, code, model.ValidationInvalid); err != nil {
			return nil, err
		}
		log.Printf("[Validator] Code %s invalid (status %s)", code, result.Status)
	default:
		out.Classification = ClassificationUncertain
		log.Printf("[Validator] Code %s validation inconclusive (status %s)", code, result.Status)
	}

	return out, nil
}

// retire marks a code invalid or expired and purges its queue items
// across all accounts.
func (v *Validator) retire(ctx context.Context, code, status string) error {
	if err := v.codes.UpdateValidation(ctx, code, status); err != nil {
		return err
	}
	purged, err := v.queue.DeleteByCode(ctx, code)
	if err != nil {
		return err
	}
	if purged > 0 {
		log.Printf("[Validator] Purged %d queue items for retired code %s", purged, code)
	}
	return nil
}

// ValidatePending classifies every pending code, pausing between codes.
// A failure on one code is logged and counted as uncertain; the pass
// continues.
func (v *Validator) ValidatePending(ctx context.Context) (*ValidationSummary, error) {
	pending, err := v.codes.FindByStatus(ctx, model.ValidationPending)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending codes: %w", err)
	}

	summary := &ValidationSummary{}
	if len(pending) == 0 {
		return summary, nil
	}

	log.Printf("[Validator] Validating %d pending codes", len(pending))
	for i, code := range pending {
		result, err := v.ValidateOne(ctx, code.Code)
		if err != nil {
			log.Printf("[Validator] Error validating %s: %v", code.Code, err)
			summary.Uncertain++
		} else {
			switch result.Classification {
			case ClassificationValidated:
				summary.Valid++
			case ClassificationInvalid, ClassificationExpired:
				summary.Invalid++
			default:
				summary.Uncertain++
			}
		}
		summary.Processed++

		if i < len(pending)-1 {
			if err := v.clock.Sleep(ctx, v.cfg.PassDelay); err != nil {
				return summary, err
			}
		}
	}

	log.Printf("[Validator] Pass complete: %d valid, %d invalid, %d uncertain",
		summary.Valid, summary.Invalid, summary.Uncertain)
	return summary, nil
}

// RevalidateValidated re-checks already-validated codes to catch silent
// expiry. Optional; scheduled independently when enabled.
func (v *Validator) RevalidateValidated(ctx context.Context) (*ValidationSummary, error) {
	validated, err := v.codes.FindByStatus(ctx, model.ValidationValidated)
	if err != nil {
		return nil, fmt.Errorf("failed to load validated codes: %w", err)
	}

	summary := &ValidationSummary{}
	for i, code := range validated {
		result, err := v.ValidateOne(ctx, code.Code)
		if err != nil {
			log.Printf("[Validator] Error revalidating %s: %v", code.Code, err)
			summary.Uncertain++
		} else {
			switch result.Classification {
			case ClassificationValidated:
				summary.Valid++
			case ClassificationInvalid, ClassificationExpired:
				summary.Invalid++
			default:
				summary.Uncertain++
			}
		}
		summary.Processed++

		if i < len(validated)-1 {
			if err := v.clock.Sleep(ctx, v.cfg.PassDelay); err != nil {
				return summary, err
			}
		}
	}
	return summary, nil
}
