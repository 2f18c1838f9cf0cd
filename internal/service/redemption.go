package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/SangwoonYun/ks-rewards.com/internal/model"
	"github.com/SangwoonYun/ks-rewards.com/internal/repository"
	"github.com/SangwoonYun/ks-rewards.com/internal/upstream"
)

// maxRetryAttempts caps requeues of items whose redemption keeps
// answering with a retry-class message.
const maxRetryAttempts = 3

// RedemptionConfig holds processor settings.
type RedemptionConfig struct {
	// ItemDelay is the fixed pause between successive items of one
	// batch, on top of the API client's own rate limiting.
	ItemDelay time.Duration

	// BulkCapable is true when accounts live in the embedded store, so
	// the single-statement bulk enqueue can join against them. With an
	// external account backend the enqueue falls back to a per-pair
	// loop.
	BulkCapable bool
}

// BatchResult summarizes one processed queue batch.
type BatchResult struct {
	Processed int `json:"processed"`
	Success   int `json:"success"`
	Failed    int `json:"failed"`
}

// itemResult is the outcome of processing a single queue item.
type itemResult struct {
	success bool
	cached  bool
	status  upstream.Status
}

// RedemptionService owns the redemption queue: enqueue operations and
// the sequential batch processor.
type RedemptionService struct {
	cfg         RedemptionConfig
	client      redeemer
	clock       upstream.Clock
	accounts    repository.AccountRepository
	codes       repository.GiftCodeRepository
	redemptions repository.RedemptionRepository
	queue       repository.QueueRepository
}

// NewRedemptionService creates a redemption service.
func NewRedemptionService(cfg RedemptionConfig, client redeemer, clock upstream.Clock,
	accounts repository.AccountRepository, codes repository.GiftCodeRepository,
	redemptions repository.RedemptionRepository, queue repository.QueueRepository) *RedemptionService {
	if cfg.ItemDelay <= 0 {
		cfg.ItemDelay = time.Second
	}
	if clock == nil {
		clock = upstream.NewClock()
	}
	return &RedemptionService{
		cfg:         cfg,
		client:      client,
		clock:       clock,
		accounts:    accounts,
		codes:       codes,
		redemptions: redemptions,
		queue:       queue,
	}
}

// hasSuccess reports whether (fid, code) already has a success-class
// redemption record.
func (s *RedemptionService) hasSuccess(ctx context.Context, fid, code string) (bool, error) {
	latest, err := s.redemptions.FindLatest(ctx, fid, code)
	if err != nil {
		return false, err
	}
	return latest != nil && upstream.Status(latest.Status).IsSuccess(), nil
}

// EnqueueForAccount queues every validated code the account has not yet
// successfully redeemed. Returns the number of items queued.
func (s *RedemptionService) EnqueueForAccount(ctx context.Context, fid string, priority int) (int, error) {
	account, err := s.accounts.FindByFID(ctx, fid)
	if err != nil {
		return 0, err
	}
	if account == nil {
		return 0, fmt.Errorf("account not found: %s", fid)
	}
	if !account.Active {
		return 0, fmt.Errorf("account %s is inactive", fid)
	}

	validated, err := s.codes.FindByStatus(ctx, model.ValidationValidated)
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, code := range validated {
		done, err := s.hasSuccess(ctx, fid, code.Code)
		if err != nil {
			return queued, err
		}
		if done {
			continue
		}
		if err := s.queue.Enqueue(ctx, fid, code.Code, priority); err != nil {
			return queued, err
		}
		queued++
	}

	log.Printf("[Redemption] Queued %d codes for account %s", queued, fid)
	return queued, nil
}

// EnqueueForCode queues one code for every active account that has not
// yet successfully redeemed it.
func (s *RedemptionService) EnqueueForCode(ctx context.Context, code string, priority int) (int, error) {
	code = model.CleanCode(code)

	active, err := s.accounts.FindActive(ctx)
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, account := range active {
		done, err := s.hasSuccess(ctx, account.FID, code)
		if err != nil {
			return queued, err
		}
		if done {
			continue
		}
		if err := s.queue.Enqueue(ctx, account.FID, code, priority); err != nil {
			return queued, err
		}
		queued++
	}

	log.Printf("[Redemption] Queued %d redemptions for code %s", queued, code)
	return queued, nil
}

// EnqueueValidatedForAll queues every (active account, validated code)
// pair without a successful redemption yet. One anti-join statement
// when accounts are colocated with the queue, a per-pair loop otherwise.
func (s *RedemptionService) EnqueueValidatedForAll(ctx context.Context, priority int) (int64, error) {
	if s.cfg.BulkCapable {
		queued, err := s.queue.BulkEnqueueValidated(ctx, priority)
		if err != nil {
			return 0, err
		}
		if queued > 0 {
			log.Printf("[Redemption] Bulk-queued %d redemptions", queued)
		}
		return queued, nil
	}

	active, err := s.accounts.FindActive(ctx)
	if err != nil {
		return 0, err
	}
	validated, err := s.codes.FindByStatus(ctx, model.ValidationValidated)
	if err != nil {
		return 0, err
	}

	var queued int64
	for _, account := range active {
		for _, code := range validated {
			done, err := s.hasSuccess(ctx, account.FID, code.Code)
			if err != nil {
				return queued, err
			}
			if done {
				continue
			}
			if err := s.queue.Enqueue(ctx, account.FID, code.Code, priority); err != nil {
				return queued, err
			}
			queued++
		}
	}

	if queued > 0 {
		log.Printf("[Redemption] Queued %d redemptions", queued)
	}
	return queued, nil
}

// ProcessQueue drains up to batchSize pending items, strictly
// sequentially with the configured delay between items.
func (s *RedemptionService) ProcessQueue(ctx context.Context, batchSize int) (*BatchResult, error) {
	items, err := s.queue.DequeuePending(ctx, batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue: %w", err)
	}

	result := &BatchResult{}
	if len(items) == 0 {
		return result, nil
	}

	log.Printf("[Redemption] Processing %d pending redemptions", len(items))
	for i, item := range items {
		if err := s.queue.UpdateStatus(ctx, item.ID, model.QueueProcessing, ""); err != nil {
			return result, err
		}

		outcome, err := s.processItem(ctx, item)
		if err != nil {
			// Store failures abort the batch; the next scheduled run
			// retries from persisted state.
			return result, err
		}

		result.Processed++
		if outcome.success {
			result.Success++
		} else {
			result.Failed++
		}

		if i < len(items)-1 {
			if err := s.clock.Sleep(ctx, s.cfg.ItemDelay); err != nil {
				return result, err
			}
		}
	}

	log.Printf("[Redemption] Batch complete: %d success, %d failed", result.Success, result.Failed)
	return result, nil
}

// processItem redeems one queue item and reconciles queue, code,
// account and history state from the outcome.
func (s *RedemptionService) processItem(ctx context.Context, item model.QueueItem) (*itemResult, error) {
	// Cached success short-circuit: no network call.
	done, err := s.hasSuccess(ctx, item.FID, item.Code)
	if err != nil {
		return nil, err
	}
	if done {
		log.Printf("[Redemption] %s already redeemed %s, dropping item", item.FID, item.Code)
		if err := s.queue.Delete(ctx, item.ID); err != nil {
			return nil, err
		}
		return &itemResult{success: true, cached: true}, nil
	}

	result, err := s.client.Redeem(ctx, item.FID, item.Code)
	if err != nil {
		// Transport-level failure with the retry budget spent. Mark the
		// item failed; an administrative reset can retry it later.
		log.Printf("[Redemption] Redeem %s for %s failed: %v", item.Code, item.FID, err)
		if qerr := s.queue.UpdateStatus(ctx, item.ID, model.QueueFailed, err.Error()); qerr != nil {
			return nil, qerr
		}
		return &itemResult{success: false}, nil
	}

	// Refresh profile fields the upstream response carried.
	if p := result.Profile; p.Nickname != "" || p.Kingdom != "" || p.AvatarURL != "" {
		if err := s.accounts.UpdateProfile(ctx, item.FID, p.Nickname, p.Kingdom, p.AvatarURL); err != nil {
			return nil, err
		}
	}

	// Append the audit row.
	if err := s.redemptions.Create(ctx, item.FID, item.Code, string(result.Status)); err != nil {
		return nil, err
	}

	// Reconcile the code's classification with what this attempt
	// revealed.
	switch result.Status.Classify() {
	case upstream.ClassSuccess, upstream.ClassRestricted:
		if err := s.codes.UpdateValidation(ctx, item.Code, model.ValidationValidated); err != nil {
			return nil, err
		}
	case upstream.ClassExpired:
		if err := s.retireCode(ctx, item.Code, model.ValidationExpired); err != nil {
			return nil, err
		}
	case upstream.ClassNotFound:
		if err := s.retireCode(ctx, item.Code, model.ValidationInvalid); err != nil {
			return nil, err
		}
	}

	// Resolve the queue item.
	switch {
	case result.Status.IsSuccess(), result.Status.IsPermanentFailure():
		if err := s.queue.Delete(ctx, item.ID); err != nil {
			return nil, err
		}
	case result.Status == upstream.StatusTimeoutRetry && item.Attempts < maxRetryAttempts:
		if err := s.queue.UpdateStatus(ctx, item.ID, model.QueuePending, result.Message); err != nil {
			return nil, err
		}
	default:
		if err := s.queue.UpdateStatus(ctx, item.ID, model.QueueFailed, result.Message); err != nil {
			return nil, err
		}
	}

	return &itemResult{success: result.Status.IsSuccess(), status: result.Status}, nil
}

// retireCode reclassifies a code as invalid or expired and purges its
// remaining queue items.
func (s *RedemptionService) retireCode(ctx context.Context, code, status string) error {
	if err := s.codes.UpdateValidation(ctx, code, status); err != nil {
		return err
	}
	purged, err := s.queue.DeleteByCode(ctx, code)
	if err != nil {
		return err
	}
	if purged > 0 {
		log.Printf("[Redemption] Purged %d queue items for retired code %s", purged, code)
	}
	return nil
}
