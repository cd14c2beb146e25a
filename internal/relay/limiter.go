package relay

import (
	"sync"
	"time"
)

const (
	// MessageRateLimit is the sustained number of client frames allowed per
	// second on one connection.
	MessageRateLimit = 100
	// MessageRateBurst is the burst allowance, sized so paste operations
	// are not throttled.
	MessageRateBurst = 200
)

// RateLimiter is a token bucket used to throttle client frames.
type RateLimiter struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

// NewRateLimiter creates a limiter with the given sustained rate and burst.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	return &RateLimiter{
		tokens:     float64(burst),
		maxTokens:  float64(burst),
		refillRate: rate,
		lastRefill: time.Now(),
	}
}

// Allow consumes one token if available. Frames arriving when no token is
// available should be dropped.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(rl.lastRefill).Seconds()
	rl.lastRefill = now

	rl.tokens += elapsed * rl.refillRate
	if rl.tokens > rl.maxTokens {
		rl.tokens = rl.maxTokens
	}

	if rl.tokens < 1 {
		return false
	}
	rl.tokens--
	return true
}
