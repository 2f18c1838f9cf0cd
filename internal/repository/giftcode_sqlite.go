package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/SangwoonYun/ks-rewards.com/internal/model"
)

// SQLiteGiftCodeRepository implements GiftCodeRepository on the
// embedded store.
type SQLiteGiftCodeRepository struct {
	db *sql.DB
}

// NewSQLiteGiftCodeRepository creates a new SQLite gift code repository.
func NewSQLiteGiftCodeRepository(db *sql.DB) *SQLiteGiftCodeRepository {
	return &SQLiteGiftCodeRepository{db: db}
}

// InsertIgnore inserts a code unless it already exists.
func (r *SQLiteGiftCodeRepository) InsertIgnore(ctx context.Context, code, status, source string, discoveredAt time.Time) (bool, error) {
	query := `
		INSERT OR IGNORE INTO gift_codes (code, validation_status, source, discovered_at)
		VALUES (?, ?, ?, ?)`

	res, err := r.db.ExecContext(ctx, query, code, status, source, discoveredAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert gift code: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// FindByCode returns a code, or nil when unknown.
func (r *SQLiteGiftCodeRepository) FindByCode(ctx context.Context, code string) (*model.GiftCode, error) {
	query := `SELECT code, validation_status, source, discovered_at FROM gift_codes WHERE code = ?`

	var g model.GiftCode
	err := r.db.QueryRowContext(ctx, query, code).Scan(&g.Code, &g.ValidationStatus, &g.Source, &g.DiscoveredAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get gift code: %w", err)
	}
	return &g, nil
}

// FindAll returns codes newest-discovered first. limit 0 returns all.
func (r *SQLiteGiftCodeRepository) FindAll(ctx context.Context, limit int) ([]model.GiftCode, error) {
	query := `SELECT code, validation_status, source, discovered_at FROM gift_codes ORDER BY discovered_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return r.queryCodes(ctx, query, args...)
}

// FindByStatus returns codes with the given validation status, newest
// first.
func (r *SQLiteGiftCodeRepository) FindByStatus(ctx context.Context, status string) ([]model.GiftCode, error) {
	query := `SELECT code, validation_status, source, discovered_at FROM gift_codes WHERE validation_status = ? ORDER BY discovered_at DESC`
	return r.queryCodes(ctx, query, status)
}

func (r *SQLiteGiftCodeRepository) queryCodes(ctx context.Context, query string, args ...interface{}) ([]model.GiftCode, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list gift codes: %w", err)
	}
	defer rows.Close()

	var codes []model.GiftCode
	for rows.Next() {
		var g model.GiftCode
		if err := rows.Scan(&g.Code, &g.ValidationStatus, &g.Source, &g.DiscoveredAt); err != nil {
			return nil, fmt.Errorf("failed to scan gift code: %w", err)
		}
		codes = append(codes, g)
	}
	return codes, rows.Err()
}

// UpdateValidation moves a code to a new validation status. Transitions
// are directional: invalid and expired are terminal, and no code ever
// returns to pending. A refused transition is a silent no-op, since
// concurrent redemption outcomes for the same code legitimately race.
func (r *SQLiteGiftCodeRepository) UpdateValidation(ctx context.Context, code, status string) error {
	if status == model.ValidationPending {
		return nil
	}

	query := `
		UPDATE gift_codes SET validation_status = ?
		WHERE code = ? AND validation_status IN (?, ?)`

	_, err := r.db.ExecContext(ctx, query, status, code, model.ValidationPending, model.ValidationValidated)
	if err != nil {
		return fmt.Errorf("failed to update gift code validation: %w", err)
	}
	return nil
}

// Delete removes a code. Explicit administrative removal only.
func (r *SQLiteGiftCodeRepository) Delete(ctx context.Context, code string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM gift_codes WHERE code = ?`, code)
	if err != nil {
		return fmt.Errorf("failed to delete gift code: %w", err)
	}
	return nil
}

// Stats returns aggregate counts per validation status.
func (r *SQLiteGiftCodeRepository) Stats(ctx context.Context) (*model.GiftCodeStats, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN validation_status = 'validated' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN validation_status = 'pending' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN validation_status = 'invalid' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN validation_status = 'expired' THEN 1 ELSE 0 END), 0)
		FROM gift_codes`

	var s model.GiftCodeStats
	err := r.db.QueryRowContext(ctx, query).Scan(&s.Total, &s.Validated, &s.Pending, &s.Invalid, &s.Expired)
	if err != nil {
		return nil, fmt.Errorf("failed to get gift code stats: %w", err)
	}
	return &s, nil
}

// Ensure SQLiteGiftCodeRepository implements GiftCodeRepository
var _ GiftCodeRepository = (*SQLiteGiftCodeRepository)(nil)
