package agent

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/agentorg/core"
	"github.com/hupe1980/agentorg/logging"
	"github.com/hupe1980/agentorg/mail"
	"github.com/hupe1980/agentorg/metrics"
	"github.com/hupe1980/agentorg/workflow"
)

// Host is the set of orchestration operations a worker relies on.
type Host interface {
	Task(id string) (core.Task, bool)
	BeginTask(id, worker string) (core.Task, error)
	ActiveTask(worker string) (core.Task, bool)
	Subtasks(parentID string) []core.Task
	Delegate(parentID, issuer string, specs []core.SubtaskSpec) ([]core.Task, error)
	CompleteTask(id, worker, result string) error
	FailTask(id, worker, reason string) error
	RequestHumanInput(taskID, worker, question string) (core.HumanInputRequest, error)

	StartConversation(initiator string, participants []string, topic, opening, taskID string) core.Conversation
	Contribute(convID, speaker, text string) error
	ResolveConversation(convID, by, summary string) error
	ActiveConversations(worker string) []core.Conversation

	UpdateEnvironment(envID, worker, event string, changes map[string]any) error
	EnvironmentState(envID string) (core.EnvironmentState, bool)

	InstantiateSOP(name, context string) ([]workflow.TaskDraft, error)
	SOPNames() []string
	Role(worker string) (core.Role, bool)

	Send(to string, env core.Envelope) core.Mail
	Emit(ev core.Event)

	// Generation changes whenever the host discards its task table.
	Generation() uint64
}

// Config is the identity of a worker.
type Config struct {
	ID           string
	Name         string
	Role         core.Role
	Supervisor   string
	Subordinates []string
	Environment  string
	Tools        []string
}

// Options configures a Worker.
type Options struct {
	Logger  logging.Logger
	Metrics *metrics.Recorder
	// Semaphore bounds concurrent reasoning calls across workers. Nil means unbounded.
	Semaphore *semaphore.Weighted
	// MailboxSize is how many recent mails are handed to reasoning.
	MailboxSize int
	// OnThinking is told when the worker starts and stops waiting for a decision.
	OnThinking func(worker string, thinking bool)
}

// Worker processes its inbox one mail at a time.
type Worker struct {
	cfg      Config
	host     Host
	reasoner core.Reasoner
	inbox    *mail.Inbox
	opts     Options

	mu      sync.Mutex
	mailbox []core.Mail
}

// New creates a worker.
func New(cfg Config, host Host, reasoner core.Reasoner, optFns ...func(o *Options)) *Worker {
	opts := Options{MailboxSize: 20}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	if opts.MailboxSize <= 0 {
		opts.MailboxSize = 20
	}
	cfg.Subordinates = slices.Clone(cfg.Subordinates)
	cfg.Tools = slices.Clone(cfg.Tools)
	return &Worker{cfg: cfg, host: host, reasoner: reasoner, inbox: mail.NewInbox(), opts: opts}
}

// Name returns the worker's unique name.
func (w *Worker) Name() string { return w.cfg.Name }

// Config returns a copy of the worker's identity.
func (w *Worker) Config() Config {
	c := w.cfg
	c.Subordinates = slices.Clone(c.Subordinates)
	c.Tools = slices.Clone(c.Tools)
	return c
}

// Environment returns the id of the environment the worker is bound to.
func (w *Worker) Environment() string { return w.cfg.Environment }

// Deliver queues a mail; it never blocks.
func (w *Worker) Deliver(m core.Mail) { w.inbox.Deliver(m) }

// Inbox exposes the queue of unprocessed mail.
func (w *Worker) Inbox() *mail.Inbox { return w.inbox }

// Mailbox returns the recent mails seen by the worker.
func (w *Worker) Mailbox() []core.Mail {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.mailbox)
}

// Reset drops queued and remembered mail.
func (w *Worker) Reset() {
	w.inbox.Clear()
	w.mu.Lock()
	w.mailbox = nil
	w.mu.Unlock()
}

// Run processes mail until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	for {
		m, err := w.inbox.Next(ctx)
		if err != nil {
			return err
		}
		w.Step(ctx, m)
	}
}

// Step handles a single mail: it decides whether the mail calls for a
// reasoning step, runs it and applies the resulting effects.
func (w *Worker) Step(ctx context.Context, m core.Mail) {
	w.remember(m)

	gen := w.host.Generation()
	focus, ok := w.focus(m)
	if !ok {
		return
	}

	req := w.buildRequest(m, focus)
	decision, err := w.reason(ctx, req)
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return
	}
	if serr := w.current(gen, focus); serr != nil {
		w.opts.Logger.Debug("worker.decision.stale", "worker", w.cfg.Name, "task_id", req.TaskID, "error", serr)
		return
	}
	if err != nil {
		w.opts.Logger.Warn("worker.reasoning.failed", "worker", w.cfg.Name, "task_id", req.TaskID, "error", err)
		w.host.Emit(core.NewEvent(EventReasoningError, w.cfg.Name, map[string]any{
			"task_id": req.TaskID,
			"error":   err.Error(),
		}))
		return
	}
	if decision.Thought != "" {
		w.opts.Logger.Debug("worker.thought", "worker", w.cfg.Name, "task_id", req.TaskID, "thought", decision.Thought)
	}
	w.apply(focus, decision)
}

// Event names emitted by workers.
const (
	EventReasoningError = "worker.reasoning_error"
	EventConfigError    = "worker.configuration_error"
	EventInvalidEffect  = "worker.invalid_effect"
)

func (w *Worker) remember(m core.Mail) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.mailbox = append(w.mailbox, m)
	if over := len(w.mailbox) - w.opts.MailboxSize; over > 0 {
		w.mailbox = slices.Delete(w.mailbox, 0, over)
	}
}

// focus resolves the task a mail is about and whether it warrants reasoning.
func (w *Worker) focus(m core.Mail) (*core.Task, bool) {
	switch m.Subject {
	case core.SubjectNewTask:
		body, ok := m.TaskBody()
		if !ok {
			return nil, false
		}
		t, err := w.host.BeginTask(body.ID, w.cfg.Name)
		if err != nil {
			w.opts.Logger.Debug("worker.task.skipped", "worker", w.cfg.Name, "task_id", body.ID, "error", err)
			return nil, false
		}
		return &t, true

	case core.SubjectTaskResult:
		body, ok := m.TaskBody()
		if !ok || body.ParentID == "" {
			return nil, false
		}
		if parent, ok := w.ownActive(body.ParentID); ok {
			return parent, true
		}
		return nil, false

	case core.SubjectConversationStart, core.SubjectConversationMessage, core.SubjectConversationResolved:
		conv, ok := m.ConversationBody()
		if !ok {
			return nil, false
		}
		focus, _ := w.ownActive(conv.TaskID)
		if focus == nil {
			if t, ok := w.host.ActiveTask(w.cfg.Name); ok {
				focus = &t
			}
		}
		if m.Subject == core.SubjectConversationResolved {
			return focus, focus != nil
		}
		return focus, conv.Status == core.ConversationActive

	default:
		t, ok := w.host.ActiveTask(w.cfg.Name)
		if !ok {
			return nil, false
		}
		return &t, true
	}
}

// current reports ErrStale when the run has been reset or the focus task is
// no longer in progress for this worker since reasoning started.
func (w *Worker) current(gen uint64, focus *core.Task) error {
	if g := w.host.Generation(); g != gen {
		return fmt.Errorf("%w: run %d replaced by %d", core.ErrStale, gen, g)
	}
	if focus == nil {
		return nil
	}
	t, ok := w.host.Task(focus.ID)
	if !ok {
		return fmt.Errorf("%w: task %s no longer exists", core.ErrStale, focus.ID)
	}
	if t.Assignee != w.cfg.Name || t.Status != core.TaskInProgress {
		return fmt.Errorf("%w: task %s is %s for %q", core.ErrStale, t.ID, t.Status, t.Assignee)
	}
	return nil
}

func (w *Worker) ownActive(taskID string) (*core.Task, bool) {
	if taskID == "" {
		return nil, false
	}
	t, ok := w.host.Task(taskID)
	if !ok || t.Assignee != w.cfg.Name || t.Status != core.TaskInProgress {
		return nil, false
	}
	return &t, true
}

func (w *Worker) buildRequest(trigger core.Mail, focus *core.Task) core.ReasoningRequest {
	req := core.ReasoningRequest{
		Version:       core.DecisionVersion,
		Worker:        w.cfg.Name,
		Role:          w.cfg.Role,
		Supervisor:    w.cfg.Supervisor,
		Trigger:       trigger,
		Mailbox:       w.Mailbox(),
		Subordinates:  slices.Clone(w.cfg.Subordinates),
		Tools:         slices.Clone(w.cfg.Tools),
		Conversations: w.host.ActiveConversations(w.cfg.Name),
		SOPs:          w.host.SOPNames(),
	}
	if focus != nil {
		req.TaskID = focus.ID
		req.Goal = focus.Goal
		for _, st := range w.host.Subtasks(focus.ID) {
			req.Subtasks = append(req.Subtasks, st.Summary())
		}
	}
	if w.cfg.Environment != "" {
		if state, ok := w.host.EnvironmentState(w.cfg.Environment); ok {
			req.Environment = state
		}
	}
	return req
}

func (w *Worker) reason(ctx context.Context, req core.ReasoningRequest) (core.Decision, error) {
	if w.opts.Semaphore != nil {
		if err := w.opts.Semaphore.Acquire(ctx, 1); err != nil {
			return core.Decision{}, err
		}
		defer w.opts.Semaphore.Release(1)
	}
	if w.opts.OnThinking != nil {
		w.opts.OnThinking(w.cfg.Name, true)
		defer w.opts.OnThinking(w.cfg.Name, false)
	}

	start := time.Now()
	d, err := w.reasoner.Reason(ctx, req)
	dur := time.Since(start)
	w.opts.Metrics.ReasoningCall(ctx, w.cfg.Name, dur, err)
	if rl, ok := w.opts.Logger.(interface {
		LogReasoningCall(worker, taskID string, dur time.Duration, err error)
	}); ok {
		rl.LogReasoningCall(w.cfg.Name, req.TaskID, dur, err)
	}
	return d, err
}
