// Package gateway hosts the HTTP listener and per-user admission control.
package gateway

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter enforces per-key (user or client address) request limits using token buckets.
// Limits can be changed at runtime; existing buckets pick up the new values.
type RateLimiter struct {
	limiters sync.Map // key → *limiterEntry

	mu    sync.RWMutex
	r     rate.Limit // refill rate (requests per second)
	burst int

	stop     chan struct{}
	stopOnce sync.Once
}

type limiterEntry struct {
	limiter  *rate.Limiter
	mu       sync.Mutex
	lastSeen time.Time
}

// NewRateLimiter creates a rate limiter.
// rpm is requests per minute, burst is the max burst allowed.
// If rpm <= 0 the limiter always allows.
func NewRateLimiter(rpm, burst int) *RateLimiter {
	rl := &RateLimiter{stop: make(chan struct{})}
	rl.SetLimit(rpm, burst)
	go rl.cleanupLoop()
	return rl
}

func toLimit(rpm, burst int) (rate.Limit, int) {
	if burst <= 0 {
		burst = 5
	}
	if rpm <= 0 {
		return 0, burst
	}
	return rate.Limit(float64(rpm) / 60.0), burst
}

// SetLimit replaces the limits for all keys.
func (rl *RateLimiter) SetLimit(rpm, burst int) {
	r, b := toLimit(rpm, burst)
	rl.mu.Lock()
	rl.r, rl.burst = r, b
	rl.mu.Unlock()

	rl.limiters.Range(func(_, value any) bool {
		entry := value.(*limiterEntry)
		entry.limiter.SetLimit(r)
		entry.limiter.SetBurst(b)
		return true
	})
}

func (rl *RateLimiter) limits() (rate.Limit, int) {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return rl.r, rl.burst
}

// Enabled reports whether the limiter is active.
func (rl *RateLimiter) Enabled() bool {
	r, _ := rl.limits()
	return r > 0
}

// Allow reports whether a request from key may proceed. When it may not,
// retryAfter is how long until a token is available.
func (rl *RateLimiter) Allow(key string) (ok bool, retryAfter time.Duration) {
	r, burst := rl.limits()
	if r == 0 {
		return true, 0
	}
	entry := rl.getOrCreate(key, r, burst)

	now := time.Now()
	entry.mu.Lock()
	entry.lastSeen = now
	entry.mu.Unlock()

	res := entry.limiter.ReserveN(now, 1)
	if !res.OK() {
		slog.Warn("security.rate_limited", "key", key)
		return false, time.Minute
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		slog.Warn("security.rate_limited", "key", key, "retry_after", delay)
		return false, delay
	}
	return true, 0
}

// Stop ends the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) getOrCreate(key string, r rate.Limit, burst int) *limiterEntry {
	if v, ok := rl.limiters.Load(key); ok {
		return v.(*limiterEntry)
	}
	entry := &limiterEntry{
		limiter:  rate.NewLimiter(r, burst),
		lastSeen: time.Now(),
	}
	actual, _ := rl.limiters.LoadOrStore(key, entry)
	return actual.(*limiterEntry)
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.cleanup(time.Now().Add(-10 * time.Minute))
		}
	}
}

func (rl *RateLimiter) cleanup(cutoff time.Time) {
	rl.limiters.Range(func(key, value any) bool {
		entry := value.(*limiterEntry)
		entry.mu.Lock()
		stale := entry.lastSeen.Before(cutoff)
		entry.mu.Unlock()
		if stale {
			rl.limiters.Delete(key)
		}
		return true
	})
}
