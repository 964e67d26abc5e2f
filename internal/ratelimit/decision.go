package ratelimit

import (
	"strconv"
	"time"
)

// Decision is the outcome of a single Check.
type Decision struct {
	Allowed bool
	Limit   int64
	// Remaining is max(0, Limit-Count) after this call was counted.
	Remaining int64
	// Count is the window's post-increment count; zero when StoreError is set.
	Count   int64
	ResetAt time.Time
	// RetryAfter is only set when Allowed is false.
	RetryAfter time.Duration
	// StoreError marks a fail-open allow caused by an unavailable store.
	StoreError bool
}

// RetryAfterSeconds returns RetryAfter rounded up to whole seconds.
func (d Decision) RetryAfterSeconds() int64 {
	if d.RetryAfter <= 0 {
		return 0
	}

	secs := int64(d.RetryAfter / time.Second)
	if d.RetryAfter%time.Second != 0 {
		secs++
	}

	return secs
}

// Headers returns the conventional rate limit response headers.
func (d Decision) Headers() map[string]string {
	headers := map[string]string{
		"X-RateLimit-Limit":     strconv.FormatInt(d.Limit, 10),
		"X-RateLimit-Remaining": strconv.FormatInt(d.Remaining, 10),
		"X-RateLimit-Reset":     strconv.FormatInt(d.ResetAt.Unix(), 10),
	}

	if !d.Allowed {
		headers["Retry-After"] = strconv.FormatInt(d.RetryAfterSeconds(), 10)
	}

	return headers
}

// WindowStart floors now to a multiple of windowSeconds, rounding toward
// negative infinity so pre-epoch timestamps land in the correct bucket.
func WindowStart(now time.Time, windowSeconds int64) int64 {
	sec := now.Unix()
	start := (sec / windowSeconds) * windowSeconds

	if sec < 0 && sec%windowSeconds != 0 {
		start -= windowSeconds
	}

	return start
}
