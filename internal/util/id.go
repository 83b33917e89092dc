package util

import "github.com/google/uuid"

// NewID returns a random identifier for records, origins and request tracing.
func NewID() string {
	return uuid.NewString()
}
