package repository

import (
	"context"
	"time"

	"github.com/SangwoonYun/ks-rewards.com/internal/model"
)

// AccountRepository defines account roster access. The default backend
// is the embedded SQLite store; a MySQL backend exists for deployments
// that share an account roster with another installation.
type AccountRepository interface {
	// Upsert registers an account or refreshes its nickname.
	Upsert(ctx context.Context, fid, nickname string, active bool) error

	// FindByFID returns an account, or nil when unknown.
	FindByFID(ctx context.Context, fid string) (*model.Account, error)

	// FindAll returns all accounts, newest first.
	FindAll(ctx context.Context) ([]model.Account, error)

	// FindActive returns accounts eligible for enqueueing, newest first.
	FindActive(ctx context.Context) ([]model.Account, error)

	// SetActive toggles an account's active flag.
	SetActive(ctx context.Context, fid string, active bool) error

	// UpdateProfile updates non-empty profile fields from an upstream
	// response.
	UpdateProfile(ctx context.Context, fid, nickname, kingdom, avatarURL string) error
}

// GiftCodeRepository defines gift code access.
type GiftCodeRepository interface {
	// InsertIgnore inserts a code unless it already exists. Returns
	// true when a new row was created.
	InsertIgnore(ctx context.Context, code, status, source string, discoveredAt time.Time) (bool, error)

	// FindByCode returns a code, or nil when unknown.
	FindByCode(ctx context.Context, code string) (*model.GiftCode, error)

	// FindAll returns codes newest-discovered first, 0 limit = all.
	FindAll(ctx context.Context, limit int) ([]model.GiftCode, error)

	// FindByStatus returns codes with the given validation status.
	FindByStatus(ctx context.Context, status string) ([]model.GiftCode, error)

	// UpdateValidation moves a code to a new validation status,
	// enforcing that terminal statuses never revert.
	UpdateValidation(ctx context.Context, code, status string) error

	// Delete removes a code (explicit administrative removal only).
	Delete(ctx context.Context, code string) error

	// Stats returns aggregate counts per validation status.
	Stats(ctx context.Context) (*model.GiftCodeStats, error)
}

// RedemptionRepository defines the append-only redemption audit log.
type RedemptionRepository interface {
	// Create appends one attempt row.
	Create(ctx context.Context, fid, code, status string) error

	// FindLatest returns the most recent attempt for (fid, code), or
	// nil when none exists.
	FindLatest(ctx context.Context, fid, code string) (*model.Redemption, error)

	// FindByCode returns all attempts for a code, newest first.
	FindByCode(ctx context.Context, code string) ([]model.Redemption, error)

	// FindByFID returns all attempts for an account, newest first.
	FindByFID(ctx context.Context, fid string) ([]model.Redemption, error)

	// FindRecentSuccesses returns recent successful attempts joined
	// with account profile fields.
	FindRecentSuccesses(ctx context.Context, limit int) ([]model.Redemption, error)

	// CountByCode returns the number of attempt rows for a code.
	CountByCode(ctx context.Context, code string) (int64, error)
}

// QueueRepository defines the durable redemption work queue. At most
// one item exists per (fid, code) pair.
type QueueRepository interface {
	// Enqueue upserts an item. An existing processing item keeps its
	// status; otherwise the status resets to pending.
	Enqueue(ctx context.Context, fid, code string, priority int) error

	// BulkEnqueueValidated inserts items for every (active account,
	// validated code) pair with no successful redemption yet, in one
	// statement. Returns the number of rows created.
	BulkEnqueueValidated(ctx context.Context, priority int) (int64, error)

	// DequeuePending returns up to limit pending items, highest
	// priority first, oldest first within a priority tier.
	DequeuePending(ctx context.Context, limit int) ([]model.QueueItem, error)

	// UpdateStatus moves an item to a new status, records the error
	// message and bumps the attempt counter.
	UpdateStatus(ctx context.Context, id int64, status, errorMessage string) error

	// ResetToPending is the administrative retry override for failed
	// items.
	ResetToPending(ctx context.Context, id int64) error

	// Delete removes an item.
	Delete(ctx context.Context, id int64) error

	// DeleteByCode purges every item referencing a code, across all
	// accounts. Returns the number of rows removed.
	DeleteByCode(ctx context.Context, code string) (int64, error)

	// FindAll returns the whole queue, pending-first processing order.
	FindAll(ctx context.Context) ([]model.QueueItem, error)

	// Stats returns aggregate counts per queue status.
	Stats(ctx context.Context) (*model.QueueStats, error)
}
