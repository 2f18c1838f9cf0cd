package model

import (
	"strings"
	"time"
)

// Validation statuses for gift codes. Transitions are directional:
// pending may move to any other status, validated may still move to
// expired, and invalid/expired are terminal.
const (
	ValidationPending   = "pending"
	ValidationValidated = "validated"
	ValidationInvalid   = "invalid"
	ValidationExpired   = "expired"
)

// Queue item statuses.
const (
	QueuePending    = "pending"
	QueueProcessing = "processing"
	QueueFailed     = "failed"
)

// Gift code sources.
const (
	SourceAPI    = "api"
	SourceManual = "manual"
)

// Account is a registered game account redemptions are performed for.
// Inactive accounts are excluded from all enqueue operations but keep
// their redemption history.
type Account struct {
	FID       string    `json:"fid"`
	Nickname  string    `json:"nickname"`
	Kingdom   string    `json:"kingdom"`
	AvatarURL string    `json:"avatar_url"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GiftCode is a redeemable promotional code and the service's current
// belief about its redeemability.
type GiftCode struct {
	Code             string    `json:"code"`
	ValidationStatus string    `json:"validation_status"`
	Source           string    `json:"source"`
	DiscoveredAt     time.Time `json:"discovered_at"`
}

// Redemption is one append-only audit row per redemption attempt.
type Redemption struct {
	ID         int64     `json:"id"`
	FID        string    `json:"fid"`
	Code       string    `json:"code"`
	Status     string    `json:"status"`
	RedeemedAt time.Time `json:"redeemed_at"`

	// Joined account profile fields, populated only by the recent
	// redemptions query.
	Nickname  string `json:"nickname,omitempty"`
	Kingdom   string `json:"kingdom,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// QueueItem is one unit of redemption work pairing an account with a
// code. At most one item exists per (fid, code) pair.
type QueueItem struct {
	ID           int64     `json:"id"`
	FID          string    `json:"fid"`
	Code         string    `json:"code"`
	Priority     int       `json:"priority"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Attempts     int       `json:"attempts"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// GiftCodeStats holds aggregate counts per validation status.
type GiftCodeStats struct {
	Total     int64 `json:"total"`
	Validated int64 `json:"validated"`
	Pending   int64 `json:"pending"`
	Invalid   int64 `json:"invalid"`
	Expired   int64 `json:"expired"`
}

// QueueStats holds aggregate counts per queue status.
type QueueStats struct {
	Total      int64 `json:"total"`
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Failed     int64 `json:"failed"`
}

// CleanCode normalizes a gift code: whitespace trimmed, upper-cased.
// Applied on every ingress path so codes compare equal regardless of
// how they were typed or fed in.
func CleanCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
