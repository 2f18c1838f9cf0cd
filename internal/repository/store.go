package repository

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// Store owns the embedded SQLite database shared by all repositories.
// WAL mode keeps reads (and the snapshot backup) from blocking the
// foreground workload.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the SQLite database at dbPath and
// applies the schema.
func NewStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite only supports 1 writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[Store] Initialized with database: %s", dbPath)
	return &Store{db: db}, nil
}

// createTables applies the schema.
func createTables(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS accounts (
		fid TEXT PRIMARY KEY,
		nickname TEXT DEFAULT '',
		kingdom TEXT DEFAULT '',
		avatar_url TEXT DEFAULT '',
		active INTEGER DEFAULT 1,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS gift_codes (
		code TEXT PRIMARY KEY,
		validation_status TEXT DEFAULT 'pending',
		source TEXT DEFAULT 'api',
		discovered_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS redemptions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		fid TEXT NOT NULL,
		code TEXT NOT NULL,
		status TEXT NOT NULL,
		redeemed_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS redemption_queue (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		fid TEXT NOT NULL,
		code TEXT NOT NULL,
		priority INTEGER DEFAULT 0,
		status TEXT DEFAULT 'pending',
		error_message TEXT DEFAULT '',
		attempts INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(fid, code)
	);

	CREATE INDEX IF NOT EXISTS idx_redemptions_fid ON redemptions(fid);
	CREATE INDEX IF NOT EXISTS idx_redemptions_code ON redemptions(code);
	CREATE INDEX IF NOT EXISTS idx_redemptions_status ON redemptions(status);
	CREATE INDEX IF NOT EXISTS idx_queue_status ON redemption_queue(status);
	CREATE INDEX IF NOT EXISTS idx_queue_priority ON redemption_queue(priority DESC);
	CREATE INDEX IF NOT EXISTS idx_codes_status ON gift_codes(validation_status);
	`
	_, err := db.Exec(query)
	return err
}

// DB exposes the underlying handle for the repositories and the backup
// service.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
