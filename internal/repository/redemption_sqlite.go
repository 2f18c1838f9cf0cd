package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/SangwoonYun/ks-rewards.com/internal/model"
	"github.com/SangwoonYun/ks-rewards.com/internal/upstream"
)

// SQLiteRedemptionRepository implements the append-only redemption
// audit log on the embedded store. Rows are never updated or deleted.
type SQLiteRedemptionRepository struct {
	db *sql.DB
}

// NewSQLiteRedemptionRepository creates a new SQLite redemption
// repository.
func NewSQLiteRedemptionRepository(db *sql.DB) *SQLiteRedemptionRepository {
	return &SQLiteRedemptionRepository{db: db}
}

// Create appends one attempt row.
func (r *SQLiteRedemptionRepository) Create(ctx context.Context, fid, code, status string) error {
	query := `INSERT INTO redemptions (fid, code, status) VALUES (?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query, fid, code, status)
	if err != nil {
		return fmt.Errorf("failed to create redemption: %w", err)
	}
	return nil
}

// FindLatest returns the most recent attempt for (fid, code), or nil.
func (r *SQLiteRedemptionRepository) FindLatest(ctx context.Context, fid, code string) (*model.Redemption, error) {
	query := `
		SELECT id, fid, code, status, redeemed_at FROM redemptions
		WHERE fid = ? AND code = ?
		ORDER BY redeemed_at DESC, id DESC LIMIT 1`

	var rec model.Redemption
	err := r.db.QueryRowContext(ctx, query, fid, code).Scan(&rec.ID, &rec.FID, &rec.Code, &rec.Status, &rec.RedeemedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get redemption: %w", err)
	}
	return &rec, nil
}

// FindByCode returns all attempts for a code, newest first.
func (r *SQLiteRedemptionRepository) FindByCode(ctx context.Context, code string) ([]model.Redemption, error) {
	query := `SELECT id, fid, code, status, redeemed_at FROM redemptions WHERE code = ? ORDER BY redeemed_at DESC, id DESC`
	return r.queryRedemptions(ctx, query, code)
}

// FindByFID returns all attempts for an account, newest first.
func (r *SQLiteRedemptionRepository) FindByFID(ctx context.Context, fid string) ([]model.Redemption, error) {
	query := `SELECT id, fid, code, status, redeemed_at FROM redemptions WHERE fid = ? ORDER BY redeemed_at DESC, id DESC`
	return r.queryRedemptions(ctx, query, fid)
}

func (r *SQLiteRedemptionRepository) queryRedemptions(ctx context.Context, query string, args ...interface{}) ([]model.Redemption, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list redemptions: %w", err)
	}
	defer rows.Close()

	var records []model.Redemption
	for rows.Next() {
		var rec model.Redemption
		if err := rows.Scan(&rec.ID, &rec.FID, &rec.Code, &rec.Status, &rec.RedeemedAt); err != nil {
			return nil, fmt.Errorf("failed to scan redemption: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// FindRecentSuccesses returns recent success-class attempts joined with
// account profile fields, newest first.
func (r *SQLiteRedemptionRepository) FindRecentSuccesses(ctx context.Context, limit int) ([]model.Redemption, error) {
	statuses := upstream.SuccessStatuses()
	query := fmt.Sprintf(`
		SELECT r.id, r.fid, r.code, r.status, r.redeemed_at,
			COALESCE(a.nickname, ''), COALESCE(a.kingdom, ''), COALESCE(a.avatar_url, '')
		FROM redemptions r
		LEFT JOIN accounts a ON a.fid = r.fid
		WHERE r.status IN (%s)
		ORDER BY r.redeemed_at DESC, r.id DESC
		LIMIT ?`, placeholders(len(statuses)))

	args := make([]interface{}, 0, len(statuses)+1)
	for _, s := range statuses {
		args = append(args, s)
	}
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent redemptions: %w", err)
	}
	defer rows.Close()

	var records []model.Redemption
	for rows.Next() {
		var rec model.Redemption
		if err := rows.Scan(&rec.ID, &rec.FID, &rec.Code, &rec.Status, &rec.RedeemedAt,
			&rec.Nickname, &rec.Kingdom, &rec.AvatarURL); err != nil {
			return nil, fmt.Errorf("failed to scan redemption: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountByCode returns the number of attempt rows for a code.
func (r *SQLiteRedemptionRepository) CountByCode(ctx context.Context, code string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM redemptions WHERE code = ?`, code).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count redemptions: %w", err)
	}
	return count, nil
}

// placeholders builds a "?, ?, ..." list of n parameters.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// Ensure SQLiteRedemptionRepository implements RedemptionRepository
var _ RedemptionRepository = (*SQLiteRedemptionRepository)(nil)
