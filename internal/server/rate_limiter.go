package server

import (
	"time"

	"golang.org/x/time/rate"
)

// rateLimiter throttles the events read from one connection: up to capacity
// events at once, refilled evenly over interval.
type rateLimiter struct {
	limiter *rate.Limiter
}

func newRateLimiter(capacity int, interval time.Duration) *rateLimiter {
	if capacity <= 0 {
		capacity = 1
	}
	if interval <= 0 {
		interval = time.Second
	}

	perSecond := float64(capacity) / interval.Seconds()
	return &rateLimiter{
		limiter: rate.NewLimiter(rate.Limit(perSecond), capacity),
	}
}

func (rl *rateLimiter) allow() bool {
	return rl.limiter.Allow()
}
