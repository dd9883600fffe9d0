package composer

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// SubmitLimiter is a token bucket per composer session.
type SubmitLimiter struct {
	mu      sync.Mutex
	every   rate.Limit
	burst   int
	buckets map[SessionID]*bucket
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewSubmitLimiter returns nil, meaning unlimited, when perMinute is not positive.
func NewSubmitLimiter(perMinute, burst int) *SubmitLimiter {
	if perMinute <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &SubmitLimiter{
		every:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   burst,
		buckets: make(map[SessionID]*bucket),
	}
}

func (l *SubmitLimiter) Allow(id SessionID) bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	b, ok := l.buckets[id]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.every, l.burst)}
		l.buckets[id] = b
	}
	b.lastSeen = time.Now()
	l.mu.Unlock()

	return b.limiter.Allow()
}

// Forget drops buckets not used for longer than maxIdle.
func (l *SubmitLimiter) Forget(maxIdle time.Duration) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, b := range l.buckets {
		if time.Since(b.lastSeen) > maxIdle {
			delete(l.buckets, id)
		}
	}
}
