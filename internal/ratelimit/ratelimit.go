// Package ratelimit provides an injected in-memory counter service with
// expiry. It replaces ambient global throttle state so limits are testable
// and can later be swapped for an external store behind the same interface.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is the counter service surface consumers depend on.
type Limiter interface {
	Allow(key string) bool
}

type entry struct {
	lim  *rate.Limiter
	seen time.Time
}

// KeyedLimiter keeps one token bucket per key (typically a client IP) and
// evicts buckets not seen within the TTL.
type KeyedLimiter struct {
	mu      sync.Mutex
	buckets map[string]*entry

	limit rate.Limit
	burst int
	ttl   time.Duration

	lastPrune time.Time
}

func New(perMinute, burst int, ttl time.Duration) *KeyedLimiter {
	if perMinute <= 0 {
		perMinute = 10
	}
	if burst <= 0 {
		burst = perMinute
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &KeyedLimiter{
		buckets: make(map[string]*entry),
		limit:   rate.Limit(float64(perMinute) / 60.0),
		burst:   burst,
		ttl:     ttl,
	}
}

// Allow reports whether the key may proceed, consuming one token.
func (l *KeyedLimiter) Allow(key string) bool {
	if key == "" {
		key = "unknown"
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastPrune) > l.ttl {
		for k, e := range l.buckets {
			if now.Sub(e.seen) > l.ttl {
				delete(l.buckets, k)
			}
		}
		l.lastPrune = now
	}

	e, ok := l.buckets[key]
	if !ok {
		e = &entry{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = e
	}
	e.seen = now
	return e.lim.Allow()
}

// Unlimited never throttles. Useful in tests and as a default.
type Unlimited struct{}

func (Unlimited) Allow(string) bool { return true }
