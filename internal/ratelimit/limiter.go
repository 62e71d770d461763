package ratelimit

import (
	"sync"
	"time"
)

// Window is the fixed rate-limit window length.
const Window = 60 * time.Second

type window struct {
	start time.Time
	count int
}

// Limiter counts requests per key in fixed 60-second windows. The clock is
// injectable for tests. Counting happens under one mutex so concurrent
// increments for the same key never under-count.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

func New() *Limiter {
	return NewWithClock(time.Now)
}

func NewWithClock(now func() time.Time) *Limiter {
	return &Limiter{windows: make(map[string]*window), now: now}
}

// CheckAndIncrement counts the request and reports whether it is within
// limit. A non-positive limit means unlimited; remaining is -1 in that case.
func (l *Limiter) CheckAndIncrement(key string, limit int) (allowed bool, remaining int) {
	if limit <= 0 {
		return true, -1
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= Window {
		w = &window{start: now}
		l.windows[key] = w
	}
	w.count++

	remaining = limit - w.count
	if remaining < 0 {
		remaining = 0
	}
	return w.count <= limit, remaining
}

// Remaining reports how many requests are left in the current window without
// counting one. -1 means unlimited.
func (l *Limiter) Remaining(key string, limit int) int {
	if limit <= 0 {
		return -1
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || l.now().Sub(w.start) >= Window {
		return limit
	}
	remaining := limit - w.count
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// RetryAfter reports how long until the key's current window resets.
func (l *Limiter) RetryAfter(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok {
		return 0
	}
	left := Window - l.now().Sub(w.start)
	if left < 0 {
		return 0
	}
	return left
}

// Sweep drops expired windows. Called periodically by the server.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, w := range l.windows {
		if now.Sub(w.start) >= Window {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}
