package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter keeps counters in process. Suitable for single instances and tests.
type MemoryLimiter struct {
	rules Rules
	now   func() time.Time

	mu      sync.Mutex
	windows map[string]*memoryWindow
}

type memoryWindow struct {
	category string
	start    time.Time
	count    int64
}

// NewMemoryLimiter builds an in-process limiter. now defaults to time.Now.
func NewMemoryLimiter(rules Rules, now func() time.Time) *MemoryLimiter {
	if now == nil {
		now = time.Now
	}
	return &MemoryLimiter{
		rules:   rules,
		now:     now,
		windows: make(map[string]*memoryWindow),
	}
}

// Check counts the request against the current window.
func (l *MemoryLimiter) Check(_ context.Context, identifier, category string) (Result, error) {
	rule, err := l.rules.lookup(category)
	if err != nil {
		return Result{}, err
	}
	start := windowStart(l.now(), rule.Window)
	key := category + "|" + identifier

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || !w.start.Equal(start) {
		w = &memoryWindow{category: category, start: start}
		l.windows[key] = w
	}
	w.count++
	return buildResult(rule, w.count, start), nil
}

// Prune drops windows that ended before now.
func (l *MemoryLimiter) Prune() int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, w := range l.windows {
		rule, ok := l.rules[w.category]
		if !ok || !w.start.Add(rule.Window).After(now) {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}
