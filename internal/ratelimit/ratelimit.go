package ratelimit

import (
	"net"
	"sync"
	"time"
)

// TokenBucket implements a token bucket rate limiter
type TokenBucket struct {
	mu         sync.Mutex
	tokens     int
	capacity   int
	rate       int // tokens per second
	lastRefill time.Time
	now        func() time.Time
}

// NewTokenBucket creates a new token bucket with the given rate and capacity
func NewTokenBucket(rate, capacity int) *TokenBucket {
	return newTokenBucket(rate, capacity, time.Now)
}

func newTokenBucket(rate, capacity int, now func() time.Time) *TokenBucket {
	if capacity <= 0 {
		capacity = 1
	}
	return &TokenBucket{
		tokens:     capacity,
		capacity:   capacity,
		rate:       rate,
		lastRefill: now(),
		now:        now,
	}
}

// Allow checks if a request can be allowed and consumes a token if available
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	elapsed := now.Sub(tb.lastRefill)

	// Add tokens based on elapsed time
	tokensToAdd := int(elapsed.Seconds() * float64(tb.rate))
	if tokensToAdd > 0 {
		tb.tokens += tokensToAdd
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastRefill = now
	}

	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

func (tb *TokenBucket) idleSince() time.Time {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.lastRefill
}

// RateLimiter admits accepted connections against a global bucket and a
// bucket per remote IP. A zero rate disables that bucket.
type RateLimiter struct {
	mu          sync.Mutex
	global      *TokenBucket
	perPeer     map[string]*TokenBucket
	perPeerRate int
	burstSize   int
	now         func() time.Time
}

// NewRateLimiter creates a limiter allowing globalRate connections per second
// overall and perPeerRate per remote IP, each with burstSize headroom.
func NewRateLimiter(globalRate, perPeerRate, burstSize int) *RateLimiter {
	return newRateLimiter(globalRate, perPeerRate, burstSize, time.Now)
}

func newRateLimiter(globalRate, perPeerRate, burstSize int, now func() time.Time) *RateLimiter {
	rl := &RateLimiter{
		perPeer:     make(map[string]*TokenBucket),
		perPeerRate: perPeerRate,
		burstSize:   burstSize,
		now:         now,
	}
	if globalRate > 0 {
		rl.global = newTokenBucket(globalRate, burstSize, now)
	}
	return rl
}

// Enabled reports whether any bucket is active.
func (rl *RateLimiter) Enabled() bool {
	return rl != nil && (rl.global != nil || rl.perPeerRate > 0)
}

// AllowConnection checks if a connection from remote may be served.
func (rl *RateLimiter) AllowConnection(remote net.Addr) bool {
	if rl.global != nil && !rl.global.Allow() {
		return false
	}
	if rl.perPeerRate <= 0 {
		return true
	}

	key := peerKey(remote)
	rl.mu.Lock()
	bucket, exists := rl.perPeer[key]
	if !exists {
		bucket = newTokenBucket(rl.perPeerRate, rl.burstSize, rl.now)
		rl.perPeer[key] = bucket
	}
	rl.mu.Unlock()

	return bucket.Allow()
}

// Prune drops per-peer buckets that have not refilled for longer than idle.
func (rl *RateLimiter) Prune(idle time.Duration) int {
	cutoff := rl.now().Add(-idle)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	removed := 0
	for key, bucket := range rl.perPeer {
		if bucket.idleSince().Before(cutoff) {
			delete(rl.perPeer, key)
			removed++
		}
	}
	return removed
}

func peerKey(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr.String()); err == nil {
		return host
	}
	return addr.String()
}
