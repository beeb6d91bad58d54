package mail

import (
	"context"
	"slices"
	"sync"

	"github.com/hupe1980/agentorg/core"
)

// Inbox is an unbounded FIFO queue of mail. Deliver never blocks, so
// workers can mail each other from their own processing loops without
// deadlocking.
type Inbox struct {
	mu     sync.Mutex
	items  []core.Mail
	signal chan struct{}
}

// NewInbox creates an empty inbox.
func NewInbox() *Inbox {
	return &Inbox{signal: make(chan struct{}, 1)}
}

// Deliver appends m.
func (b *Inbox) Deliver(m core.Mail) {
	b.mu.Lock()
	b.items = append(b.items, m)
	b.mu.Unlock()

	select {
	case b.signal <- struct{}{}:
	default:
	}
}

// Next blocks until a mail is available or ctx is done.
func (b *Inbox) Next(ctx context.Context) (core.Mail, error) {
	for {
		if m, ok := b.TryNext(); ok {
			return m, nil
		}
		select {
		case <-ctx.Done():
			return core.Mail{}, ctx.Err()
		case <-b.signal:
		}
	}
}

// TryNext pops the oldest mail without blocking.
func (b *Inbox) TryNext() (core.Mail, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) == 0 {
		return core.Mail{}, false
	}
	m := b.items[0]
	b.items[0] = core.Mail{}
	b.items = b.items[1:]
	return m, true
}

// Len returns the number of queued mails.
func (b *Inbox) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Pending returns a copy of the queued mails.
func (b *Inbox) Pending() []core.Mail {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.items)
}

// Clear drops every queued mail and returns how many were dropped.
func (b *Inbox) Clear() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.items)
	b.items = nil
	return n
}
