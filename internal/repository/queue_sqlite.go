package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/SangwoonYun/ks-rewards.com/internal/model"
	"github.com/SangwoonYun/ks-rewards.com/internal/upstream"
)

// SQLiteQueueRepository implements the durable redemption work queue on
// the embedded store.
type SQLiteQueueRepository struct {
	db *sql.DB
}

// NewSQLiteQueueRepository creates a new SQLite queue repository.
func NewSQLiteQueueRepository(db *sql.DB) *SQLiteQueueRepository {
	return &SQLiteQueueRepository{db: db}
}

// Enqueue upserts an item by (fid, code). An item currently processing
// keeps its status; anything else resets to pending. Priority is always
// refreshed.
func (r *SQLiteQueueRepository) Enqueue(ctx context.Context, fid, code string, priority int) error {
	query := `
		INSERT INTO redemption_queue (fid, code, priority, status, attempts)
		VALUES (?, ?, ?, 'pending', 0)
		ON CONFLICT(fid, code) DO UPDATE SET
			priority = excluded.priority,
			status = CASE
				WHEN redemption_queue.status = 'processing' THEN redemption_queue.status
				ELSE 'pending'
			END,
			updated_at = CURRENT_TIMESTAMP`

	_, err := r.db.ExecContext(ctx, query, fid, code, priority)
	if err != nil {
		return fmt.Errorf("failed to enqueue item: %w", err)
	}
	return nil
}

// BulkEnqueueValidated inserts items for every (active account,
// validated code) pair that has no success-class redemption yet, as a
// single anti-join statement.
func (r *SQLiteQueueRepository) BulkEnqueueValidated(ctx context.Context, priority int) (int64, error) {
	statuses := upstream.SuccessStatuses()
	query := fmt.Sprintf(`
		INSERT OR IGNORE INTO redemption_queue (fid, code, priority)
		SELECT a.fid, g.code, ?
		FROM accounts a
		CROSS JOIN gift_codes g
		LEFT JOIN redemptions r
			ON r.fid = a.fid AND r.code = g.code AND r.status IN (%s)
		WHERE a.active = 1
			AND g.validation_status = 'validated'
			AND r.id IS NULL`, placeholders(len(statuses)))

	args := make([]interface{}, 0, len(statuses)+1)
	args = append(args, priority)
	for _, s := range statuses {
		args = append(args, s)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to bulk enqueue: %w", err)
	}
	return res.RowsAffected()
}

// DequeuePending returns up to limit pending items, highest priority
// first, oldest first within a tier.
func (r *SQLiteQueueRepository) DequeuePending(ctx context.Context, limit int) ([]model.QueueItem, error) {
	query := `
		SELECT id, fid, code, priority, status, error_message, attempts, created_at, updated_at
		FROM redemption_queue
		WHERE status = 'pending'
		ORDER BY priority DESC, created_at ASC, id ASC
		LIMIT ?`
	return r.queryItems(ctx, query, limit)
}

// FindAll returns the whole queue in processing order.
func (r *SQLiteQueueRepository) FindAll(ctx context.Context) ([]model.QueueItem, error) {
	query := `
		SELECT id, fid, code, priority, status, error_message, attempts, created_at, updated_at
		FROM redemption_queue
		ORDER BY status = 'pending' DESC, priority DESC, created_at ASC, id ASC`
	return r.queryItems(ctx, query)
}

func (r *SQLiteQueueRepository) queryItems(ctx context.Context, query string, args ...interface{}) ([]model.QueueItem, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue items: %w", err)
	}
	defer rows.Close()

	var items []model.QueueItem
	for rows.Next() {
		var it model.QueueItem
		if err := rows.Scan(&it.ID, &it.FID, &it.Code, &it.Priority, &it.Status,
			&it.ErrorMessage, &it.Attempts, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan queue item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// UpdateStatus moves an item to a new status, recording the error
// message and bumping the attempt counter.
func (r *SQLiteQueueRepository) UpdateStatus(ctx context.Context, id int64, status, errorMessage string) error {
	query := `
		UPDATE redemption_queue
		SET status = ?, error_message = ?, attempts = attempts + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`

	_, err := r.db.ExecContext(ctx, query, status, errorMessage, id)
	if err != nil {
		return fmt.Errorf("failed to update queue item: %w", err)
	}
	return nil
}

// ResetToPending is the administrative retry override for failed items.
// Attempts and the stored error are cleared.
func (r *SQLiteQueueRepository) ResetToPending(ctx context.Context, id int64) error {
	query := `
		UPDATE redemption_queue
		SET status = 'pending', error_message = '', attempts = 0, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to reset queue item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("queue item not found: %d", id)
	}
	return nil
}

// Delete removes an item.
func (r *SQLiteQueueRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM redemption_queue WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete queue item: %w", err)
	}
	return nil
}

// DeleteByCode purges every item referencing a code, across all
// accounts.
func (r *SQLiteQueueRepository) DeleteByCode(ctx context.Context, code string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM redemption_queue WHERE code = ?`, code)
	if err != nil {
		return 0, fmt.Errorf("failed to purge queue items: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns aggregate counts per queue status.
func (r *SQLiteQueueRepository) Stats(ctx context.Context) (*model.QueueStats, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'processing' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0)
		FROM redemption_queue`

	var s model.QueueStats
	err := r.db.QueryRowContext(ctx, query).Scan(&s.Total, &s.Pending, &s.Processing, &s.Failed)
	if err != nil {
		return nil, fmt.Errorf("failed to get queue stats: %w", err)
	}
	return &s, nil
}

// Ensure SQLiteQueueRepository implements QueueRepository
var _ QueueRepository = (*SQLiteQueueRepository)(nil)
