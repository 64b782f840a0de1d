// Package ratelimit provides per-client request throttling ahead of the
// authentication and metering layers.
package ratelimit

import (
	"sync"
	"time"
)

// bucket is a token bucket: tokens accrue at refillRate per second up to
// capacity, and each admitted request consumes one.
type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// Limiter keeps one bucket per key (typically the client IP). Buckets idle
// past the stale window are dropped on the next sweep.
type Limiter struct {
	capacity   float64
	refillRate float64

	mu      sync.Mutex
	buckets map[string]*bucket

	lastSweep time.Time
	now       func() time.Time
}

const staleAfter = 10 * time.Minute

func NewLimiter(capacity int, refillRate float64) *Limiter {
	return &Limiter{
		capacity:   float64(capacity),
		refillRate: refillRate,
		buckets:    make(map[string]*bucket),
		lastSweep:  time.Now(),
		now:        time.Now,
	}
}

// Allow reports whether one request for key may proceed, consuming a token
// when it does.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.capacity, lastRefill: now}
		l.buckets[key] = b
	}

	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens += elapsed * l.refillRate
	if b.tokens > l.capacity {
		b.tokens = l.capacity
	}
	b.lastRefill = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (l *Limiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < staleAfter {
		return
	}
	for key, b := range l.buckets {
		if now.Sub(b.lastRefill) >= staleAfter {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}
