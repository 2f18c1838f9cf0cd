package repository

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	backupPrefix     = "ks-rewards_"
	backupSuffix     = ".db"
	latestBackupName = "ks-rewards_latest.db"
)

// BackupInfo describes one backup file on disk.
type BackupInfo struct {
	Filename string    `json:"filename"`
	Size     int64     `json:"size"`
	Date     time.Time `json:"date"`
}

// BackupService writes point-in-time snapshots of the embedded store.
// VACUUM INTO produces a consistent copy under WAL without blocking the
// foreground workload.
type BackupService struct {
	db        *sql.DB
	backupDir string
	retention time.Duration
}

// NewBackupService creates a backup service writing into backupDir.
// Backups older than retention are swept after each new backup.
func NewBackupService(store *Store, backupDir string, retention time.Duration) *BackupService {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return &BackupService{db: store.DB(), backupDir: backupDir, retention: retention}
}

// Create writes a new snapshot and refreshes the latest copy. Returns
// the path of the new backup file.
func (s *BackupService) Create(ctx context.Context) (string, error) {
	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	name := fmt.Sprintf("%s%s%s", backupPrefix, time.Now().UTC().Format("2006-01-02T15-04-05"), backupSuffix)
	path := filepath.Join(s.backupDir, name)

	log.Printf("[BackupService] Creating database backup: %s", name)

	// VACUUM INTO refuses to overwrite an existing file.
	_ = os.Remove(path)
	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return "", fmt.Errorf("failed to create backup: %w", err)
	}

	if err := copyFile(path, filepath.Join(s.backupDir, latestBackupName)); err != nil {
		log.Printf("[BackupService] Failed to refresh latest backup: %v", err)
	}

	if info, err := os.Stat(path); err == nil {
		log.Printf("[BackupService] Backup created: %s (%.2f MB)", name, float64(info.Size())/(1024*1024))
	}

	s.sweepOld()
	return path, nil
}

// sweepOld removes backups older than the retention window.
func (s *BackupService) sweepOld() {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		log.Printf("[BackupService] Failed to read backup directory: %v", err)
		return
	}

	cutoff := time.Now().Add(-s.retention)
	deleted := 0

	for _, entry := range entries {
		if !isBackupFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(s.backupDir, entry.Name())); err == nil {
				deleted++
			}
		}
	}

	if deleted > 0 {
		log.Printf("[BackupService] Cleaned up %d old backup(s)", deleted)
	}
}

// List returns available backups, newest first.
func (s *BackupService) List() ([]BackupInfo, error) {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var backups []BackupInfo
	for _, entry := range entries {
		if !isBackupFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, BackupInfo{
			Filename: entry.Name(),
			Size:     info.Size(),
			Date:     info.ModTime(),
		})
	}

	sort.Slice(backups, func(i, j int) bool { return backups[i].Date.After(backups[j].Date) })
	return backups, nil
}

// LatestPath returns the path of the latest backup copy, or empty when
// none exists yet.
func (s *BackupService) LatestPath() string {
	path := filepath.Join(s.backupDir, latestBackupName)
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func isBackupFile(name string) bool {
	return strings.HasPrefix(name, backupPrefix) &&
		strings.HasSuffix(name, backupSuffix) &&
		name != latestBackupName
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
