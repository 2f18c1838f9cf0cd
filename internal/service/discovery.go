package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/SangwoonYun/ks-rewards.com/internal/model"
	"github.com/SangwoonYun/ks-rewards.com/internal/repository"
)

// DiscoveryConfig holds the external code feed settings.
type DiscoveryConfig struct {
	FeedURL string
	APIKey  string
	Timeout time.Duration
}

// SyncResult summarizes one discovery pass.
type SyncResult struct {
	NewCodes      int      `json:"new"`
	ExistingCodes int      `json:"existing"`
	TotalFeed     int      `json:"total"`
	NewCodeList   []string `json:"new_code_list,omitempty"`
	Malformed     []string `json:"malformed,omitempty"`
}

// feedEntry is one parsed "CODE DD.MM.YYYY" line.
type feedEntry struct {
	code string
	date time.Time
}

// DiscoveryService polls the external code-listing feed and inserts
// newly seen codes as pending.
type DiscoveryService struct {
	cfg   DiscoveryConfig
	http  *http.Client
	codes repository.GiftCodeRepository
}

// NewDiscoveryService creates a discovery service.
func NewDiscoveryService(cfg DiscoveryConfig, codes repository.GiftCodeRepository) *DiscoveryService {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &DiscoveryService{
		cfg:   cfg,
		http:  &http.Client{Timeout: cfg.Timeout},
		codes: codes,
	}
}

// Sync fetches the feed, diffs it against known codes and inserts new
// ones as pending. Malformed feed lines are reported, not fatal.
func (s *DiscoveryService) Sync(ctx context.Context) (*SyncResult, error) {
	entries, malformed, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{TotalFeed: len(entries) + len(malformed), Malformed: malformed}
	if len(malformed) > 0 {
		log.Printf("[Discovery] Skipped %d malformed feed lines: %v", len(malformed), malformed)
	}

	for _, entry := range entries {
		created, err := s.codes.InsertIgnore(ctx, entry.code, model.ValidationPending, model.SourceAPI, entry.date)
		if err != nil {
			return nil, fmt.Errorf("failed to store discovered code %s: %w", entry.code, err)
		}
		if created {
			result.NewCodes++
			result.NewCodeList = append(result.NewCodeList, entry.code)
			log.Printf("[Discovery] New gift code discovered: %s", entry.code)
		} else {
			result.ExistingCodes++
		}
	}

	log.Printf("[Discovery] Sync complete: %d new, %d existing, %d total",
		result.NewCodes, result.ExistingCodes, result.TotalFeed)
	return result, nil
}

// fetch retrieves and parses the feed.
func (s *DiscoveryService) fetch(ctx context.Context) ([]feedEntry, []string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.FeedURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build feed request: %w", err)
	}
	req.Header.Set("X-API-Key", s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("feed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("feed returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read feed: %w", err)
	}

	var feed struct {
		Codes  []string `json:"codes"`
		Error  string   `json:"error"`
		Detail string   `json:"detail"`
	}
	if err := json.Unmarshal(body, &feed); err != nil {
		return nil, nil, fmt.Errorf("failed to decode feed: %w", err)
	}
	if feed.Error != "" || feed.Detail != "" {
		return nil, nil, fmt.Errorf("feed error: %s%s", feed.Error, feed.Detail)
	}

	var entries []feedEntry
	var malformed []string
	now := time.Now()
	for _, line := range feed.Codes {
		entry, ok := parseFeedLine(line, now)
		if !ok {
			malformed = append(malformed, line)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, malformed, nil
}

// parseFeedLine parses a "CODE DD.MM.YYYY" entry. A clean code with an
// unparseable date is kept, dated with the fetch time.
func parseFeedLine(line string, fallback time.Time) (feedEntry, bool) {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) != 2 {
		return feedEntry{}, false
	}

	code := parts[0]
	if !isAlphanumeric(code) {
		return feedEntry{}, false
	}

	date, ok := parseFeedDate(parts[1])
	if !ok {
		date = fallback
	}

	return feedEntry{code: model.CleanCode(code), date: date}, true
}

// parseFeedDate parses DD.MM.YYYY.
func parseFeedDate(s string) (time.Time, bool) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return time.Time{}, false
	}
	day, err1 := strconv.Atoi(parts[0])
	month, err2 := strconv.Atoi(parts[1])
	year, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}
	if day < 1 || day > 31 || month < 1 || month > 12 || year < 2000 {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
}

func isAlphanumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
