// Package ratelimit meters MCP tool calls with per-tool token buckets.
//
// Calls are charged by the work they ask for rather than one token each: a
// propagation costs a token per step and a flow computation a token per
// iteration. A request whose cost exceeds the bucket size is refused
// outright instead of draining the bucket.
package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrLimited is wrapped by every error CheckLimit returns.
var ErrLimited = errors.New("rate limit exceeded")

// Limiter holds one token bucket per key. Buckets start full, refill at
// rate tokens per second and never hold more than burst tokens.
// It is safe for concurrent use.
type Limiter struct {
	rate  float64
	burst int

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	nowFunc func() time.Time
}

// NewLimiter creates a limiter refilling r tokens per second up to burst.
func NewLimiter(r float64, burst int) *Limiter {
	return &Limiter{
		rate:    r,
		burst:   burst,
		buckets: make(map[string]*rate.Limiter),
		nowFunc: time.Now,
	}
}

// Burst is the most tokens a single call can be charged.
func (l *Limiter) Burst() int {
	return l.burst
}

// Allow charges one token to key.
func (l *Limiter) Allow(key string) bool {
	return l.AllowN(key, 1)
}

// AllowN charges n tokens to key if they are all available. Nothing is
// taken when it returns false.
func (l *Limiter) AllowN(key string, n int) bool {
	_, ok := l.take(key, n)
	return ok
}

// take charges n tokens or reports how long until n would be available.
// The wait is negative when n can never be satisfied.
func (l *Limiter) take(key string, n int) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(rate.Limit(l.rate), l.burst)
		l.buckets[key] = b
	}

	now := l.nowFunc()
	r := b.ReserveN(now, n)
	if !r.OK() {
		return -1, false
	}
	if wait := r.DelayFrom(now); wait > 0 {
		r.CancelAt(now)
		return wait, false
	}
	return 0, true
}

// Cost converts a requested amount of work (steps, iterations) into tokens.
// Every call costs at least one token.
func Cost(work int) int {
	if work < 1 {
		return 1
	}
	return work
}

// ToolLimiters maps MCP tool names to their limiters.
type ToolLimiters map[string]*Limiter

// NewToolLimiters creates the default per-tool limiters. tension_propagate
// and tension_flow buckets are sized in steps and iterations; the others in
// calls.
func NewToolLimiters() ToolLimiters {
	return ToolLimiters{
		"tension_propagate":  NewLimiter(50, 500),      // 50 steps/s, 500 steps per call at most
		"tension_flow":       NewLimiter(50, 500),      // 50 iterations/s, 500 per call at most
		"tension_graph":      NewLimiter(30.0/60.0, 5), // 30 calls/minute
		"tension_expression": NewLimiter(2.0, 20),      // 120 calls/minute
		"tension_networks":   NewLimiter(30.0/60.0, 5), // 30 calls/minute
	}
}

// CheckLimit charges cost tokens to tool. Tools without a limiter are not
// metered. Errors wrap ErrLimited.
func CheckLimit(limiters ToolLimiters, tool string, cost int) error {
	l, ok := limiters[tool]
	if !ok {
		return nil
	}
	cost = Cost(cost)

	if cost > l.Burst() {
		return fmt.Errorf("%w for %s: request costs %d, a single call may use at most %d", ErrLimited, tool, cost, l.Burst())
	}

	wait, ok := l.take(tool, cost)
	if ok {
		return nil
	}
	if wait < 0 {
		return fmt.Errorf("%w for %s", ErrLimited, tool)
	}
	return fmt.Errorf("%w for %s, retry in %s", ErrLimited, tool, wait.Round(time.Millisecond))
}
