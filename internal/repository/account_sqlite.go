package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/SangwoonYun/ks-rewards.com/internal/model"
)

// SQLiteAccountRepository implements AccountRepository on the embedded
// store.
type SQLiteAccountRepository struct {
	db *sql.DB
}

// NewSQLiteAccountRepository creates a new SQLite account repository.
func NewSQLiteAccountRepository(db *sql.DB) *SQLiteAccountRepository {
	return &SQLiteAccountRepository{db: db}
}

// Upsert registers an account or refreshes its nickname.
func (r *SQLiteAccountRepository) Upsert(ctx context.Context, fid, nickname string, active bool) error {
	query := `
		INSERT INTO accounts (fid, nickname, active)
		VALUES (?, ?, ?)
		ON CONFLICT(fid) DO UPDATE SET
			nickname = excluded.nickname,
			updated_at = CURRENT_TIMESTAMP`

	_, err := r.db.ExecContext(ctx, query, fid, nickname, boolToInt(active))
	if err != nil {
		return fmt.Errorf("failed to upsert account: %w", err)
	}
	return nil
}

// FindByFID returns an account, or nil when unknown.
func (r *SQLiteAccountRepository) FindByFID(ctx context.Context, fid string) (*model.Account, error) {
	query := `SELECT fid, nickname, kingdom, avatar_url, active, created_at, updated_at FROM accounts WHERE fid = ?`

	var a model.Account
	var active int
	err := r.db.QueryRowContext(ctx, query, fid).Scan(
		&a.FID, &a.Nickname, &a.Kingdom, &a.AvatarURL, &active, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	a.Active = active != 0
	return &a, nil
}

// FindAll returns all accounts, newest first.
func (r *SQLiteAccountRepository) FindAll(ctx context.Context) ([]model.Account, error) {
	return r.findWhere(ctx, "")
}

// FindActive returns active accounts, newest first.
func (r *SQLiteAccountRepository) FindActive(ctx context.Context) ([]model.Account, error) {
	return r.findWhere(ctx, "WHERE active = 1")
}

func (r *SQLiteAccountRepository) findWhere(ctx context.Context, where string) ([]model.Account, error) {
	query := fmt.Sprintf(`SELECT fid, nickname, kingdom, avatar_url, active, created_at, updated_at FROM accounts %s ORDER BY created_at DESC`, where)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		var a model.Account
		var active int
		if err := rows.Scan(&a.FID, &a.Nickname, &a.Kingdom, &a.AvatarURL, &active, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		a.Active = active != 0
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// SetActive toggles an account's active flag.
func (r *SQLiteAccountRepository) SetActive(ctx context.Context, fid string, active bool) error {
	query := `UPDATE accounts SET active = ?, updated_at = CURRENT_TIMESTAMP WHERE fid = ?`

	res, err := r.db.ExecContext(ctx, query, boolToInt(active), fid)
	if err != nil {
		return fmt.Errorf("failed to set account active: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("account not found: %s", fid)
	}
	return nil
}

// UpdateProfile updates non-empty profile fields from an upstream
// response. Empty strings leave the stored value untouched.
func (r *SQLiteAccountRepository) UpdateProfile(ctx context.Context, fid, nickname, kingdom, avatarURL string) error {
	query := `
		UPDATE accounts SET
			nickname = CASE WHEN ? != '' THEN ? ELSE nickname END,
			kingdom = CASE WHEN ? != '' THEN ? ELSE kingdom END,
			avatar_url = CASE WHEN ? != '' THEN ? ELSE avatar_url END,
			updated_at = CURRENT_TIMESTAMP
		WHERE fid = ?`

	_, err := r.db.ExecContext(ctx, query, nickname, nickname, kingdom, kingdom, avatarURL, avatarURL, fid)
	if err != nil {
		return fmt.Errorf("failed to update account profile: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Ensure SQLiteAccountRepository implements AccountRepository
var _ AccountRepository = (*SQLiteAccountRepository)(nil)
