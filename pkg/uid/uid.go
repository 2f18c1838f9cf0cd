// Package uid produces opaque request identifiers.
package uid

import "github.com/google/uuid"

// New returns a fresh identifier suitable for request correlation.
func New() string {
	return uuid.New().String()
}
