// Package ratelimit implements fixed-window request limiting per caller and category.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// CategoryAPI is the bucket applied to authenticated API calls.
const CategoryAPI = "API"

// Result reports the outcome of one check.
type Result struct {
	Success   bool
	Limit     int
	Remaining int
	// Reset is the window end as unix milliseconds.
	Reset int64
}

// RetryAfter returns how long a rejected caller should wait, rounded up to a whole second.
func (r Result) RetryAfter(now time.Time) time.Duration {
	wait := time.UnixMilli(r.Reset).Sub(now)
	if wait <= 0 {
		return time.Second
	}
	return wait.Truncate(time.Second) + time.Second
}

// Rule is a fixed window quota.
type Rule struct {
	Requests int
	Window   time.Duration
}

// Limiter checks whether identifier may perform another request in category.
type Limiter interface {
	Check(ctx context.Context, identifier, category string) (Result, error)
}

// Rules maps a category to its quota.
type Rules map[string]Rule

func (r Rules) lookup(category string) (Rule, error) {
	rule, ok := r[category]
	if !ok {
		return Rule{}, fmt.Errorf("ratelimit: unknown category %q", category)
	}
	if rule.Requests <= 0 || rule.Window <= 0 {
		return Rule{}, fmt.Errorf("ratelimit: invalid rule for category %q", category)
	}
	return rule, nil
}

func windowStart(now time.Time, window time.Duration) time.Time {
	return now.Truncate(window)
}

func buildResult(rule Rule, count int64, start time.Time) Result {
	remaining := rule.Requests - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Success:   count <= int64(rule.Requests),
		Limit:     rule.Requests,
		Remaining: remaining,
		Reset:     start.Add(rule.Window).UnixMilli(),
	}
}

func bucketKey(prefix, category, identifier string, start time.Time) string {
	return strings.Join([]string{prefix, category, identifier, fmt.Sprintf("%d", start.UnixMilli())}, ":")
}
