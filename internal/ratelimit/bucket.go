// Package ratelimit implements the token buckets behind Valet's request
// gate. Grounded on github.com/nextlevelbuilder/goclaw's
// internal/channels/ratelimit.go (WebhookRateLimiter): same bounded map
// of lazily-created per-key state guarded by a single mutex, same
// refill-on-inspect evaluation instead of a background ticker. Unlike the
// teacher's fixed-window counter, spec.md's data model calls for a true
// token bucket (capacity, refill rate, last-refill timestamp, current
// tokens), so Allow here refills proportionally to elapsed time rather
// than resetting a window.
package ratelimit

import (
	"sync"
	"time"
)

// maxTrackedKeys bounds memory under key rotation, same defense as the
// teacher's maxTrackedKeys.
const maxTrackedKeys = 4096

// bucket is a single token bucket: capacity, refill rate, last-refill
// timestamp and current token count, per spec.md §3's data model.
type bucket struct {
	capacity   float64
	refillPS   float64 // tokens added per second
	tokens     float64
	lastRefill time.Time
}

func newBucket(capacity, refillPS float64) *bucket {
	return &bucket{capacity: capacity, refillPS: refillPS, tokens: capacity, lastRefill: time.Now()}
}

// take refills the bucket for elapsed time, caps at capacity, then
// attempts to deduct one token. Caller must hold the limiter's mutex.
func (b *bucket) take(now time.Time) bool {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * b.refillPS
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.lastRefill = now
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Limiter tracks one bucket per token plus a single global bucket, per
// spec.md §4.F: a request must pass both to be allowed.
type Limiter struct {
	mu       sync.Mutex
	perToken map[string]*bucket

	tokenCapacity float64
	tokenRefillPS float64

	global *bucket
}

// New builds a limiter with the given per-token bucket parameters and a
// global bucket sized by globalCapacity/globalRefillPS.
func New(tokenCapacity, tokenRefillPS, globalCapacity, globalRefillPS float64) *Limiter {
	return &Limiter{
		perToken:      make(map[string]*bucket),
		tokenCapacity: tokenCapacity,
		tokenRefillPS: tokenRefillPS,
		global:        newBucket(globalCapacity, globalRefillPS),
	}
}

// Allow reports whether a request bearing the given token identity may
// proceed, consuming one token from both the per-token and global
// buckets. Per-token state is created lazily on first sight; the map is
// bounded the same way the teacher bounds its key set.
func (l *Limiter) Allow(token string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()

	b, ok := l.perToken[token]
	if !ok {
		if len(l.perToken) >= maxTrackedKeys {
			l.evictOneLocked()
		}
		b = newBucket(l.tokenCapacity, l.tokenRefillPS)
		l.perToken[token] = b
	}

	// Evaluate the per-token bucket first so an exhausted caller never
	// consumes a global token it wasn't entitled to.
	if !b.take(now) {
		return false
	}
	if !l.global.take(now) {
		// Refund the per-token deduction: the request is still denied
		// overall, and the caller shouldn't lose quota to a rejection
		// caused by the shared bucket.
		b.tokens++
		return false
	}
	return true
}

// evictOneLocked drops an arbitrary tracked key to make room for a new
// one. Caller must hold l.mu.
func (l *Limiter) evictOneLocked() {
	for k := range l.perToken {
		delete(l.perToken, k)
		return
	}
}
