package core

import (
	"fmt"
	"sync"
)

// CallLimiter enforces a maximum number of reasoning calls per simulation
// and counts failed calls.
type CallLimiter struct {
	max    int
	count  int
	errors int
	mu     sync.Mutex
}

// NewCallLimiter creates a limiter. max == 0 allows unlimited calls.
func NewCallLimiter(max int) *CallLimiter {
	return &CallLimiter{max: max}
}

// Acquire records one call, returning ErrCallLimit once the ceiling is passed.
func (l *CallLimiter) Acquire() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.max > 0 && l.count >= l.max {
		return fmt.Errorf("%w: %d", ErrCallLimit, l.max)
	}
	l.count++
	return nil
}

// Fail records a failed call.
func (l *CallLimiter) Fail() {
	l.mu.Lock()
	l.errors++
	l.mu.Unlock()
}

// Counts returns the number of calls made and failed.
func (l *CallLimiter) Counts() (calls, failed int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count, l.errors
}

// Remaining returns how many calls are left, or -1 when unlimited.
func (l *CallLimiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.max == 0 {
		return -1
	}
	return l.max - l.count
}

// Reset zeroes the counters.
func (l *CallLimiter) Reset() {
	l.mu.Lock()
	l.count, l.errors = 0, 0
	l.mu.Unlock()
}
