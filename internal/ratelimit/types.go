package ratelimit

import (
	"context"
	"time"
)

// Result describes the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	Reset     time.Time
}

// Limiter provides fixed-window rate limit checks. The window width is fixed
// per limiter; key identifies the client being throttled.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, now time.Time) (Result, error)
}

// windowStart truncates now to the limiter's window.
func windowStart(now time.Time, window time.Duration) int64 {
	if window <= 0 {
		window = time.Second
	}
	return now.Unix() / int64(window/time.Second)
}

// windowReset returns when the current window rolls over.
func windowReset(now time.Time, window time.Duration) time.Time {
	if window <= 0 {
		window = time.Second
	}
	secs := int64(window / time.Second)
	start := now.Unix() / secs * secs
	return time.Unix(start+secs, 0).UTC()
}
