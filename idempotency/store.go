package idempotency

import (
	"context"
	"errors"
	"strings"
	"time"
)

// MaxKeyLength is the maximum allowed length for an idempotency key.
const MaxKeyLength = 512

// Sentinel errors for idempotency operations.
var (
	ErrNilStore     = errors.New("idempotency: store is nil")
	ErrNilOperation = errors.New("idempotency: operation is nil")
	ErrInvalidKey   = errors.New("idempotency: key is invalid")
	ErrKeyTooLong   = errors.New("idempotency: key exceeds max length")
)

// Store is the interface for recording first results keyed by idempotency key.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: methods should honor cancellation/deadlines where applicable.
// - Errors: Get should never error; it returns (nil, false) on miss.
type Store interface {
	// Get retrieves a recorded result. Returns (nil, false) on miss.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set records a result with the given TTL. TTL=0 means no recording.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a recorded result. Idempotent - no error on miss.
	Delete(ctx context.Context, key string) error
}

// ValidateKey checks if a key is usable as an idempotency key.
func ValidateKey(key string) error {
	if key == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	// Reject keys with newlines or carriage returns
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}
