package auth

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// AttemptLimiter keeps one token bucket per key. Keys are phone numbers
// for signup requests and pending ids for verification attempts.
type AttemptLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	now     func() time.Time
	buckets map[string]*attemptBucket
}

type attemptBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewAttemptLimiter allows burst attempts per key refilled every interval.
// A non positive burst disables limiting.
func NewAttemptLimiter(burst int, interval time.Duration) *AttemptLimiter {
	limit := rate.Inf
	if burst > 0 && interval > 0 {
		limit = rate.Every(interval)
	}
	return &AttemptLimiter{
		limit:   limit,
		burst:   burst,
		now:     time.Now,
		buckets: make(map[string]*attemptBucket),
	}
}

// Allow consumes one attempt for key
func (l *AttemptLimiter) Allow(key string) bool {
	if l == nil || l.limit == rate.Inf {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &attemptBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// Forget drops the bucket for key
func (l *AttemptLimiter) Forget(key string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	delete(l.buckets, key)
	l.mu.Unlock()
}

// Prune drops buckets idle for longer than idle and returns how many
func (l *AttemptLimiter) Prune(idle time.Duration) int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-idle)
	n := 0
	for k, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, k)
			n++
		}
	}
	return n
}

// Len returns the number of tracked keys
func (l *AttemptLimiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
