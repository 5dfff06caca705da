package common

import (
	"log"
	"sync"
	"time"
)

// RateLimiter tracks request usage inside a fixed window. OKX does not echo
// usage back in response headers, so the counter is maintained locally: one
// Record per outbound request.
type RateLimiter struct {
	used      int
	limit     int
	windowEnd time.Time
	window    time.Duration
	mu        sync.Mutex
}

// NewRateLimiter creates a limiter with the given request budget per window
// (e.g. 60 requests / 2s for the OKX trade endpoints).
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:     limit,
		window:    window,
		windowEnd: time.Now().Add(window),
	}
}

// Record counts one outbound request and logs when usage approaches the
// budget.
func (rl *RateLimiter) Record() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.After(rl.windowEnd) {
		rl.used = 0
		rl.windowEnd = now.Add(rl.window)
	}
	rl.used++

	pct := float64(rl.used) / float64(rl.limit) * 100
	if pct >= 95 {
		log.Printf("rate limit critical: %d/%d (%.1f%%) in current window", rl.used, rl.limit, pct)
	} else if pct >= 80 {
		log.Printf("rate limit warning: %d/%d (%.1f%%)", rl.used, rl.limit, pct)
	}
}

// Usage returns the current usage and budget.
func (rl *RateLimiter) Usage() (used, limit int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if time.Now().After(rl.windowEnd) {
		return 0, rl.limit
	}
	return rl.used, rl.limit
}

// ShouldDelay returns true when the next request would likely be throttled.
func (rl *RateLimiter) ShouldDelay() bool {
	used, limit := rl.Usage()
	return float64(used)/float64(limit) >= 0.9
}
