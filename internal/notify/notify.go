// Package notify delivers versioned snapshots to a listener so that a
// snapshot captured earlier is never delivered after a newer one.
package notify

import "sync"

// Latest serializes calls to a listener and drops out-of-date snapshots.
// Versions are assigned by the caller while it holds its own data lock.
type Latest[T any] struct {
	mu        sync.Mutex
	delivered uint64
	fn        func(T)
}

// NewLatest wraps fn. A nil fn makes Deliver a no-op.
func NewLatest[T any](fn func(T)) *Latest[T] {
	return &Latest[T]{fn: fn}
}

// Deliver calls the listener with v unless a newer version was already delivered.
func (l *Latest[T]) Deliver(version uint64, v T) {
	if l == nil || l.fn == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if version <= l.delivered {
		return
	}
	l.delivered = version
	l.fn(v)
}

// Enabled reports whether a listener is attached.
func (l *Latest[T]) Enabled() bool {
	return l != nil && l.fn != nil
}
