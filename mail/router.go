// Package mail routes addressed messages between workers and keeps an
// append-only audit log of everything sent.
package mail

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/hupe1980/agentorg/core"
	"github.com/hupe1980/agentorg/logging"
	"github.com/hupe1980/agentorg/metrics"
)

// Recipient is anything mail can be delivered to.
type Recipient interface {
	Name() string
	Deliver(m core.Mail)
}

// Options configures a Router.
type Options struct {
	Logger  logging.Logger
	Metrics *metrics.Recorder
	// OnMail observes every logged mail in send order. It runs while the
	// router is sending and must not send mail itself.
	OnMail func(m core.Mail)
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// Router maintains the name to recipient directory and delivers mail.
type Router struct {
	opts Options

	mu     sync.RWMutex
	routes map[string]Recipient

	sendMu sync.Mutex
	log    []core.Mail
}

// NewRouter creates an empty router.
func NewRouter(optFns ...func(o *Options)) *Router {
	opts := Options{Now: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Router{opts: opts, routes: map[string]Recipient{}}
}

// Register adds r to the directory. The last registration for a name wins.
func (r *Router) Register(rcpt Recipient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.routes[rcpt.Name()]; exists {
		r.opts.Logger.Warn("mail.route.replaced", "name", rcpt.Name())
	}
	r.routes[rcpt.Name()] = rcpt
}

// Registered reports whether name has a route.
func (r *Router) Registered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.routes[name]
	return ok
}

// Send stamps, logs and delivers a mail to the named recipient. Mail to an
// unknown name is logged but not delivered. The stored mail is returned.
func (r *Router) Send(to string, env core.Envelope) core.Mail {
	now := r.opts.Now().UTC()
	m := core.Mail{
		ID:        fmt.Sprintf("mail-%d-%s", now.UnixMilli(), core.NewID()[:8]),
		From:      env.From,
		To:        to,
		Subject:   env.Subject,
		Body:      env.Body,
		Timestamp: now,
	}

	r.sendMu.Lock()
	defer r.sendMu.Unlock()

	r.log = append(r.log, m)
	if r.opts.OnMail != nil {
		r.opts.OnMail(m)
	}

	r.mu.RLock()
	rcpt, ok := r.routes[to]
	r.mu.RUnlock()

	r.opts.Metrics.MailSent(context.Background(), m.Subject, ok)
	if ok {
		rcpt.Deliver(m)
	}
	r.logMail(m, ok)
	return m
}

func (r *Router) logMail(m core.Mail, delivered bool) {
	if ml, ok := r.opts.Logger.(interface {
		LogMail(id, from, to, subject string, delivered bool)
	}); ok {
		ml.LogMail(m.ID, m.From, m.To, string(m.Subject), delivered)
		return
	}
	if !delivered {
		r.opts.Logger.Warn("mail.dropped", "reason", "no route", "to", m.To, "from", m.From, "subject", m.Subject)
		return
	}
	r.opts.Logger.Debug("mail.delivered", "mail_id", m.ID, "to", m.To, "from", m.From, "subject", m.Subject)
}

// Log returns a copy of the audit log in send order.
func (r *Router) Log() []core.Mail {
	r.sendMu.Lock()
	defer r.sendMu.Unlock()
	return slices.Clone(r.log)
}
