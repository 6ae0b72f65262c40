// Package cache provides the key-value store used for per-signal response
// caching and the refresh-token denylist.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// SignalTTL is how long a cached signal payload stays valid. Mutations do not
// invalidate entries; staleness ends only when the TTL expires.
const SignalTTL = 15 * time.Minute

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Store is the minimal key-value contract handlers depend on. Values are
// opaque byte payloads; serialization is the caller's concern.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeletePattern removes every key matching a glob-style pattern.
	DeletePattern(ctx context.Context, pattern string) error
}

// SignalKeyPattern matches every cached signal payload.
const SignalKeyPattern = "signal_*"

// SignalKey builds the cache key for a signal's serialized representation.
func SignalKey(id uint64) string {
	return fmt.Sprintf("signal_%d", id)
}

// DenylistKey builds the cache key for a revoked refresh-token JTI.
func DenylistKey(jti string) string {
	return "denylist_" + jti
}
