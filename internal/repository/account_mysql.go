package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/SangwoonYun/ks-rewards.com/internal/model"
)

// MySQLAccountRepository implements AccountRepository against an
// external MySQL roster, for deployments that share their account list
// with another installation. Codes, queue and redemption history stay
// in the embedded store either way.
type MySQLAccountRepository struct {
	db *sql.DB
}

// NewMySQLAccountRepository creates a new MySQL account repository.
func NewMySQLAccountRepository(db *sql.DB) *MySQLAccountRepository {
	return &MySQLAccountRepository{db: db}
}

// Upsert registers an account or refreshes its nickname.
func (r *MySQLAccountRepository) Upsert(ctx context.Context, fid, nickname string, active bool) error {
	query := `
		INSERT INTO accounts (fid, nickname, active)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE nickname = VALUES(nickname), updated_at = CURRENT_TIMESTAMP`

	_, err := r.db.ExecContext(ctx, query, fid, nickname, active)
	if err != nil {
		return fmt.Errorf("failed to upsert account: %w", err)
	}
	return nil
}

// FindByFID returns an account, or nil when unknown.
func (r *MySQLAccountRepository) FindByFID(ctx context.Context, fid string) (*model.Account, error) {
	query := `SELECT fid, nickname, kingdom, avatar_url, active, created_at, updated_at FROM accounts WHERE fid = ? LIMIT 1`

	var a model.Account
	err := r.db.QueryRowContext(ctx, query, fid).Scan(
		&a.FID, &a.Nickname, &a.Kingdom, &a.AvatarURL, &a.Active, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &a, nil
}

// FindAll returns all accounts, newest first.
func (r *MySQLAccountRepository) FindAll(ctx context.Context) ([]model.Account, error) {
	return r.findWhere(ctx, "")
}

// FindActive returns active accounts, newest first.
func (r *MySQLAccountRepository) FindActive(ctx context.Context) ([]model.Account, error) {
	return r.findWhere(ctx, "WHERE active = 1")
}

func (r *MySQLAccountRepository) findWhere(ctx context.Context, where string) ([]model.Account, error) {
	query := fmt.Sprintf(`SELECT fid, nickname, kingdom, avatar_url, active, created_at, updated_at FROM accounts %s ORDER BY created_at DESC`, where)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		var a model.Account
		if err := rows.Scan(&a.FID, &a.Nickname, &a.Kingdom, &a.AvatarURL, &a.Active, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// SetActive toggles an account's active flag.
func (r *MySQLAccountRepository) SetActive(ctx context.Context, fid string, active bool) error {
	query := `UPDATE accounts SET active = ?, updated_at = CURRENT_TIMESTAMP WHERE fid = ?`

	res, err := r.db.ExecContext(ctx, query, active, fid)
	if err != nil {
		return fmt.Errorf("failed to set account active: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("account not found: %s", fid)
	}
	return nil
}

// UpdateProfile updates non-empty profile fields from an upstream
// response.
func (r *MySQLAccountRepository) UpdateProfile(ctx context.Context, fid, nickname, kingdom, avatarURL string) error {
	query := `
		UPDATE accounts SET
			nickname = IF(? != '', ?, nickname),
			kingdom = IF(? != '', ?, kingdom),
			avatar_url = IF(? != '', ?, avatar_url),
			updated_at = CURRENT_TIMESTAMP
		WHERE fid = ?`

	_, err := r.db.ExecContext(ctx, query, nickname, nickname, kingdom, kingdom, avatarURL, avatarURL, fid)
	if err != nil {
		return fmt.Errorf("failed to update account profile: %w", err)
	}
	return nil
}

// Ensure MySQLAccountRepository implements AccountRepository
var _ AccountRepository = (*MySQLAccountRepository)(nil)
