// internal/app/system/ratelimit/ratelimit.go
package ratelimit

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Checker decides whether one more request for key fits in the current window.
type Checker interface {
	Allow(ctx context.Context, key string) bool
}

// Limiter is an in-process fixed-window counter. It is safe for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	windows  map[string]*window
	limit    int
	duration time.Duration
	now      func() time.Time
	stop     chan struct{}
	once     sync.Once
}

type window struct {
	count     int
	expiresAt time.Time
}

// New creates a limiter allowing limit requests per duration per key. A
// background goroutine drops expired windows until Stop is called.
func New(limit int, duration time.Duration) *Limiter {
	l := &Limiter{
		windows:  make(map[string]*window),
		limit:    limit,
		duration: duration,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go l.cleanupLoop(duration * 2)
	return l
}

// Allow implements Checker.
func (l *Limiter) Allow(_ context.Context, key string) bool {
	return l.allow(key)
}

func (l *Limiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.After(w.expiresAt) {
		l.windows[key] = &window{count: 1, expiresAt: now.Add(l.duration)}
		return true
	}
	if w.count >= l.limit {
		return false
	}
	w.count++
	return true
}

// Remaining returns how many requests key has left in its window.
func (l *Limiter) Remaining(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || l.now().After(w.expiresAt) {
		return l.limit
	}
	if r := l.limit - w.count; r > 0 {
		return r
	}
	return 0
}

// Reset forgets key's window.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}

// Stop ends the cleanup goroutine.
func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}

func (l *Limiter) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.mu.Lock()
			now := l.now()
			for key, w := range l.windows {
				if now.After(w.expiresAt) {
					delete(l.windows, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

// SigninLimiter throttles sign-in attempts per client IP and per email.
type SigninLimiter struct {
	ip    Checker
	email Checker
	reset func(key string)
}

// NewSigninLimiter uses in-process limiters: 10 attempts per IP per minute and
// 5 per email per 5 minutes.
func NewSigninLimiter() *SigninLimiter {
	emails := New(5, 5*time.Minute)
	return &SigninLimiter{
		ip:    New(10, time.Minute),
		email: emails,
		reset: emails.Reset,
	}
}

// NewSigninLimiterWith builds a limiter from arbitrary checkers, such as the
// Redis-backed ones shared across instances.
func NewSigninLimiterWith(ip, email Checker) *SigninLimiter {
	sl := &SigninLimiter{ip: ip, email: email}
	if r, ok := email.(interface{ Reset(string) }); ok {
		sl.reset = r.Reset
	}
	return sl
}

// Check reports whether the attempt may proceed, and a message when it may not.
func (sl *SigninLimiter) Check(r *http.Request, email string) (bool, string) {
	if !sl.ip.Allow(r.Context(), "signin:ip:"+ClientIP(r)) {
		return false, "too many sign-in attempts, wait a minute and try again"
	}
	if key := normalizeEmail(email); key != "" {
		if !sl.email.Allow(r.Context(), "signin:email:"+key) {
			return false, "too many sign-in attempts for this account, wait a few minutes"
		}
	}
	return true, ""
}

// ResetEmail clears the per-email counter after a successful sign-in.
func (sl *SigninLimiter) ResetEmail(email string) {
	if key := normalizeEmail(email); key != "" && sl.reset != nil {
		sl.reset("signin:email:" + key)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
