package upstream

import (
	"sort"
	"strings"
)

// Status is the normalized upstream response vocabulary. The raw msg
// strings the backend returns are loosely specified, so everything is
// funneled through an explicit literal table with an Unknown bucket
// rather than ad hoc substring checks.
type Status string

const (
	StatusSuccess          Status = "SUCCESS"
	StatusReceived         Status = "RECEIVED"
	StatusSameTypeExchange Status = "SAME_TYPE_EXCHANGE"
	StatusTooSmallSpend    Status = "TOO_SMALL_SPEND_MORE"
	StatusTooPoorSpend     Status = "TOO_POOR_SPEND_MORE"
	StatusTimeError        Status = "TIME_ERROR"
	StatusUsageLimit       Status = "USAGE_LIMIT"
	StatusNotFound         Status = "CDK_NOT_FOUND"
	StatusTimeoutRetry     Status = "TIMEOUT_RETRY"
	StatusNotLogin         Status = "NOT_LOGIN"
	StatusUnknown          Status = "UNKNOWN"
)

// Class groups statuses by what they mean for the redemption lifecycle.
type Class int

const (
	// ClassSuccess: code accepted (or already held) for this account.
	ClassSuccess Class = iota
	// ClassRestricted: code is real but this account does not qualify.
	// Still proves the code is valid.
	ClassRestricted
	// ClassExpired: time window passed or usage limit reached.
	ClassExpired
	// ClassNotFound: the code does not exist.
	ClassNotFound
	// ClassRetry: upstream asked for a retry.
	ClassRetry
	// ClassSessionInvalid: the player session was rejected.
	ClassSessionInvalid
	// ClassUnknown: anything unmatched. Never treated as success or
	// failure.
	ClassUnknown
)

var statusClasses = map[Status]Class{
	StatusSuccess:          ClassSuccess,
	StatusReceived:         ClassSuccess,
	StatusSameTypeExchange: ClassSuccess,
	StatusTooSmallSpend:    ClassRestricted,
	StatusTooPoorSpend:     ClassRestricted,
	StatusTimeError:        ClassExpired,
	StatusUsageLimit:       ClassExpired,
	StatusNotFound:         ClassNotFound,
	StatusTimeoutRetry:     ClassRetry,
	StatusNotLogin:         ClassSessionInvalid,
}

// SuccessStatuses returns the success-class literals as plain strings,
// for SQL predicates over stored redemption statuses.
func SuccessStatuses() []string {
	out := make([]string, 0, 3)
	for s, c := range statusClasses {
		if c == ClassSuccess {
			out = append(out, string(s))
		}
	}
	sort.Strings(out)
	return out
}

// Normalize maps a raw upstream msg string to a Status: trimmed,
// trailing punctuation stripped, upper-cased, spaces collapsed to
// underscores, then matched against the literal table.
func Normalize(raw string) Status {
	s := strings.TrimSpace(raw)
	s = strings.TrimRight(s, ".!?")
	s = strings.ToUpper(s)
	if s == "" {
		return StatusUnknown
	}
	canonical := Status(strings.ReplaceAll(s, " ", "_"))
	if _, ok := statusClasses[canonical]; ok {
		return canonical
	}
	// NOT_LOGIN sometimes arrives embedded in a longer message.
	if strings.Contains(s, "NOT_LOGIN") || strings.Contains(s, "NOT LOGIN") {
		return StatusNotLogin
	}
	return StatusUnknown
}

// Classify returns the lifecycle class for a status.
func (s Status) Classify() Class {
	if c, ok := statusClasses[s]; ok {
		return c
	}
	return ClassUnknown
}

// IsSuccess reports whether the status means the code was accepted.
func (s Status) IsSuccess() bool {
	return s.Classify() == ClassSuccess
}

// IsPermanentFailure reports whether the code can never succeed for the
// account (expired, usage limit, not found).
func (s Status) IsPermanentFailure() bool {
	c := s.Classify()
	return c == ClassExpired || c == ClassNotFound
}
