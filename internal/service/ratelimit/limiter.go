package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// KeyedLimiter keeps one token bucket per key (client IP, user id).
type KeyedLimiter struct {
	mu    sync.Mutex
	m     map[string]*rate.Limiter
	limit rate.Limit
	burst int
}

func New(perSecond float64, burst int) *KeyedLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &KeyedLimiter{m: make(map[string]*rate.Limiter), limit: rate.Limit(perSecond), burst: burst}
}

// Allow returns true if one token can be consumed for key.
func (l *KeyedLimiter) Allow(key string) bool {
	return l.get(key).Allow()
}

func (l *KeyedLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.m[key]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.m[key] = b
	}
	return b
}

// Len reports how many keys have a bucket.
func (l *KeyedLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
