// ABOUTME: Per-user token bucket rate limiting for agent requests
// ABOUTME: Limiters are created on first use and swept after an idle period

package gateway

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// limiterIdleTTL is how long an unused user limiter is kept.
	limiterIdleTTL = 30 * time.Minute

	// limiterCleanupInterval is how often stale limiters are swept.
	limiterCleanupInterval = 5 * time.Minute
)

// userRateLimiter holds one token bucket per user id. A nil *userRateLimiter
// allows everything.
type userRateLimiter struct {
	limit rate.Limit
	burst int

	limiters   map[string]*rate.Limiter
	lastAccess map[string]time.Time
	mu         sync.RWMutex

	now  func() time.Time
	done chan struct{}
	once sync.Once
}

// newUserRateLimiter returns nil when requestsPerMinute <= 0.
func newUserRateLimiter(requestsPerMinute float64, burst int) *userRateLimiter {
	if requestsPerMinute <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	l := &userRateLimiter{
		limit:      rate.Limit(requestsPerMinute / 60),
		burst:      burst,
		limiters:   make(map[string]*rate.Limiter),
		lastAccess: make(map[string]time.Time),
		now:        time.Now,
		done:       make(chan struct{}),
	}
	go l.startCleanup()
	return l
}

// Allow reports whether userID may make a request now, consuming a token if so.
func (l *userRateLimiter) Allow(userID string) bool {
	if l == nil {
		return true
	}
	return l.getLimiter(userID).AllowN(l.now(), 1)
}

// getLimiter returns the limiter for userID, creating one if needed.
func (l *userRateLimiter) getLimiter(userID string) *rate.Limiter {
	l.mu.RLock()
	limiter, ok := l.limiters[userID]
	l.mu.RUnlock()

	if ok {
		l.touch(userID)
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring the write lock
	if limiter, ok = l.limiters[userID]; ok {
		l.lastAccess[userID] = l.now()
		return limiter
	}

	limiter = rate.NewLimiter(l.limit, l.burst)
	l.limiters[userID] = limiter
	l.lastAccess[userID] = l.now()
	return limiter
}

func (l *userRateLimiter) touch(userID string) {
	l.mu.Lock()
	l.lastAccess[userID] = l.now()
	l.mu.Unlock()
}

// startCleanup runs periodic cleanup of stale limiters until Close.
func (l *userRateLimiter) startCleanup() {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanupStale()
		case <-l.done:
			return
		}
	}
}

// cleanupStale removes limiters that have not been used within limiterIdleTTL.
func (l *userRateLimiter) cleanupStale() {
	cutoff := l.now().Add(-limiterIdleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()

	for userID, last := range l.lastAccess {
		if last.Before(cutoff) {
			delete(l.limiters, userID)
			delete(l.lastAccess, userID)
		}
	}
}

// Len returns the number of tracked users.
func (l *userRateLimiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.limiters)
}

// Close stops the cleanup goroutine.
func (l *userRateLimiter) Close() {
	if l == nil {
		return
	}
	l.once.Do(func() { close(l.done) })
}
