// Package conversation tracks multi-party discussions among workers. Every
// mutation fans out mail to the other participants and publishes a full
// snapshot of all conversations.
package conversation

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/hupe1980/agentorg/core"
	"github.com/hupe1980/agentorg/internal/notify"
	"github.com/hupe1980/agentorg/logging"
)

// Sender delivers mail; *mail.Router satisfies it.
type Sender interface {
	Send(to string, env core.Envelope) core.Mail
}

// Options configures a Manager.
type Options struct {
	Logger logging.Logger
	// OnChange receives every conversation, in creation order, after each mutation.
	OnChange func([]core.Conversation)
	// Release is called after a conversation linked to a task is resolved.
	Release func(conv core.Conversation)
	// MaxTurns resolves a conversation automatically once its history reaches
	// this many messages. Zero disables the limit.
	MaxTurns int
}

// Manager owns the set of conversations.
type Manager struct {
	sender   Sender
	opts     Options
	listener *notify.Latest[[]core.Conversation]

	mu      sync.RWMutex
	convs   map[string]*core.Conversation
	order   []string
	version uint64
}

// NewManager creates a Manager that mails participants through sender.
func NewManager(sender Sender, optFns ...func(o *Options)) *Manager {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &Manager{
		sender:   sender,
		opts:     opts,
		listener: notify.NewLatest(opts.OnChange),
		convs:    map[string]*core.Conversation{},
	}
}

// Start opens an ACTIVE conversation. The initiator is always a participant;
// every other participant receives a CONVERSATION_START mail. A non-empty
// opening becomes the first message.
func (m *Manager) Start(initiator string, participants []string, topic, opening, taskID string) core.Conversation {
	now := time.Now().UTC()
	members := []string{initiator}
	for _, p := range participants {
		if p != "" && !slices.Contains(members, p) {
			members = append(members, p)
		}
	}
	conv := &core.Conversation{
		ID:           core.NewID(),
		Topic:        topic,
		Initiator:    initiator,
		Participants: members,
		Status:       core.ConversationActive,
		TaskID:       taskID,
		CreatedAt:    now,
	}
	if opening != "" {
		conv.History = append(conv.History, core.ConversationMessage{Speaker: initiator, Text: opening, Timestamp: now})
	}

	m.mu.Lock()
	m.convs[conv.ID] = conv
	m.order = append(m.order, conv.ID)
	snap := conv.Clone()
	m.mu.Unlock()

	m.publish()
	m.opts.Logger.Info("conversation.started", "conversation_id", snap.ID, "initiator", initiator, "topic", topic)
	m.fanOut(snap, initiator, core.SubjectConversationStart)
	return snap
}

// Contribute appends a message from speaker. Contributions to resolved
// conversations or from non-participants are logged and ignored.
func (m *Manager) Contribute(id, speaker, text string) error {
	m.mu.Lock()
	conv, ok := m.convs[id]
	if !ok {
		m.mu.Unlock()
		m.opts.Logger.Warn("conversation.contribute.ignored", "conversation_id", id, "reason", "not found")
		return fmt.Errorf("%w: %s", core.ErrConversationNotFound, id)
	}
	if conv.Status == core.ConversationResolved {
		m.mu.Unlock()
		m.opts.Logger.Warn("conversation.contribute.ignored", "conversation_id", id, "reason", "resolved")
		return fmt.Errorf("%w: %s", core.ErrConversationResolved, id)
	}
	if !conv.HasParticipant(speaker) {
		m.mu.Unlock()
		m.opts.Logger.Warn("conversation.contribute.ignored", "conversation_id", id, "speaker", speaker, "reason", "not a participant")
		return fmt.Errorf("%w: %s", core.ErrNotParticipant, speaker)
	}
	conv.History = append(conv.History, core.ConversationMessage{Speaker: speaker, Text: text, Timestamp: time.Now().UTC()})
	limitReached := m.opts.MaxTurns > 0 && len(conv.History) >= m.opts.MaxTurns
	snap := conv.Clone()
	m.mu.Unlock()

	if limitReached {
		return m.Resolve(id, "", fmt.Sprintf("Turn limit of %d messages reached.", m.opts.MaxTurns))
	}
	m.publish()
	m.fanOut(snap, speaker, core.SubjectConversationMessage)
	return nil
}

// Resolve marks the conversation RESOLVED, freezing its history, mails every
// participant except the resolver and releases the linked task. An empty
// resolver means the system resolved it.
func (m *Manager) Resolve(id, by, summary string) error {
	m.mu.Lock()
	conv, ok := m.convs[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", core.ErrConversationNotFound, id)
	}
	if conv.Status == core.ConversationResolved {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", core.ErrConversationResolved, id)
	}
	if by != "" && !conv.HasParticipant(by) {
		m.mu.Unlock()
		m.opts.Logger.Warn("conversation.resolve.ignored", "conversation_id", id, "by", by, "reason", "not a participant")
		return fmt.Errorf("%w: %s", core.ErrNotParticipant, by)
	}
	conv.Status = core.ConversationResolved
	conv.Summary = summary
	conv.ResolvedAt = time.Now().UTC()
	snap := conv.Clone()
	m.mu.Unlock()

	m.publish()
	m.opts.Logger.Info("conversation.resolved", "conversation_id", id, "by", by)
	m.fanOut(snap, by, core.SubjectConversationResolved)
	if snap.TaskID != "" && m.opts.Release != nil {
		m.opts.Release(snap)
	}
	return nil
}

// Get returns a copy of the conversation.
func (m *Manager) Get(id string) (core.Conversation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conv, ok := m.convs[id]
	if !ok {
		return core.Conversation{}, false
	}
	return conv.Clone(), true
}

// List returns copies of all conversations in creation order.
func (m *Manager) List() []core.Conversation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLocked()
}

// ActiveFor returns the ACTIVE conversations name takes part in.
func (m *Manager) ActiveFor(name string) []core.Conversation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []core.Conversation
	for _, id := range m.order {
		c := m.convs[id]
		if c.Status == core.ConversationActive && c.HasParticipant(name) {
			out = append(out, c.Clone())
		}
	}
	return out
}

// Reset removes every conversation.
func (m *Manager) Reset() {
	m.mu.Lock()
	m.convs = map[string]*core.Conversation{}
	m.order = nil
	m.mu.Unlock()
	m.publish()
}

func (m *Manager) listLocked() []core.Conversation {
	out := make([]core.Conversation, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.convs[id].Clone())
	}
	return out
}

func (m *Manager) publish() {
	if !m.listener.Enabled() {
		return
	}
	m.mu.Lock()
	m.version++
	v, snap := m.version, m.listLocked()
	m.mu.Unlock()
	m.listener.Deliver(v, snap)
}

func (m *Manager) fanOut(conv core.Conversation, except string, subject core.Subject) {
	from := except
	if from == "" {
		from = core.SystemIssuer
	}
	for _, p := range conv.Participants {
		if p == except {
			continue
		}
		m.sender.Send(p, core.Envelope{From: from, Subject: subject, Body: conv})
	}
}
