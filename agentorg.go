// Package agentorg runs simulations of hierarchical agent organizations.
//
// A Simulation wraps an orchestrator.Orchestrator and adds what a caller of
// the engine usually needs on top of it:
//  1. snapshots of the run (tasks, mail, events, conversations, environments)
//  2. completion detection and an end-of-run metrics.Report
//  3. optional persistence of snapshots through a snapshot.Store
//  4. an optional retry policy for failed reasoning calls
//
// The orchestrator itself stays policy free; everything here is built from
// its public operations and listener callbacks.
package agentorg

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/hupe1980/agentorg/agent"
	"github.com/hupe1980/agentorg/config"
	"github.com/hupe1980/agentorg/core"
	"github.com/hupe1980/agentorg/logging"
	"github.com/hupe1980/agentorg/metrics"
	"github.com/hupe1980/agentorg/orchestrator"
	"github.com/hupe1980/agentorg/snapshot"
)

// RetryPolicy retries a task whose reasoning call failed. MaxAttempts == 0
// disables automatic retries. Once the attempts are used up the task fails.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// Options configures a Simulation.
type Options struct {
	Logger  logging.Logger
	Metrics *metrics.Recorder
	// Store receives a snapshot whenever the run changes. Saves are
	// coalesced; a final snapshot is written when the run completes or stops.
	Store snapshot.Store

	MaxConcurrentReasoning int64
	MaxConversationTurns   int
	MailboxSize            int
	Retry                  RetryPolicy
	// Limiter is the call budget shared with the reasoner. It is reset
	// whenever a run starts and reported in Report.
	Limiter *core.CallLimiter
	// KeepEnvironments carries environment state from one run into the next.
	KeepEnvironments bool

	OnMail       func(m core.Mail)
	OnEvent      func(ev core.Event)
	OnTasks      func(tasks []core.Task)
	OnHumanInput func(pending []core.HumanInputRequest)
	OnThinking   func(worker string, thinking bool)
	OnComplete   func(r metrics.Report)
}

// ErrNotStarted is returned by operations that need a running goal.
var ErrNotStarted = errors.New("simulation not started")

// Simulation runs goals against one organization.
type Simulation struct {
	opts   Options
	logger logging.Logger
	orch   *orchestrator.Orchestrator

	mu       sync.Mutex
	runID    string
	goal     string
	gen      uint64
	start    time.Time
	end      time.Time
	mails    []core.Mail
	events   []core.Event
	complete bool
	done     chan struct{}
	dirty    chan struct{}
	runCtx   context.Context
	cancel   context.CancelFunc
	saverWG  sync.WaitGroup
}

// New builds a simulation of cfg whose workers reason with r.
func New(cfg config.OrgConfig, r core.Reasoner, optFns ...func(o *Options)) *Simulation {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNoop()
	}

	s := &Simulation{opts: opts, logger: opts.Logger}
	s.orch = orchestrator.New(cfg, r, func(o *orchestrator.Options) {
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
		if opts.MaxConcurrentReasoning > 0 {
			o.MaxConcurrentReasoning = opts.MaxConcurrentReasoning
		}
		if opts.MailboxSize > 0 {
			o.MailboxSize = opts.MailboxSize
		}
		o.MaxConversationTurns = opts.MaxConversationTurns
		o.Retry = orchestrator.RetryPolicy{MaxAttempts: opts.Retry.MaxAttempts}
		o.KeepEnvironments = opts.KeepEnvironments
		o.OnTasks = s.onTasks
		o.OnMail = s.onMail
		o.OnEvent = s.onEvent
		o.OnHumanInput = s.onHumanInput
		o.OnConversations = func([]core.Conversation) { s.markDirty() }
		o.OnEnvironments = func(map[string]core.EnvironmentState) { s.markDirty() }
		o.OnThinking = opts.OnThinking
	})
	return s
}

// Orchestrator exposes the underlying engine.
func (s *Simulation) Orchestrator() *orchestrator.Orchestrator { return s.orch }

// Start stops any previous run and hands goal to the root worker. The run
// continues in the background until ctx is cancelled or Stop is called.
func (s *Simulation) Start(ctx context.Context, goal string) (core.Task, error) {
	s.Stop()

	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.gen++
	s.runID = core.NewID()
	s.goal = goal
	s.start = time.Now().UTC()
	s.end = time.Time{}
	s.mails = nil
	s.events = nil
	s.complete = false
	s.done = make(chan struct{})
	s.dirty = make(chan struct{}, 1)
	s.runCtx = runCtx
	s.cancel = cancel
	dirty := s.dirty
	s.mu.Unlock()

	s.opts.Metrics.Reset()
	if s.opts.Limiter != nil {
		s.opts.Limiter.Reset()
	}
	if s.opts.Store != nil {
		s.saverWG.Add(1)
		go s.saveLoop(runCtx, dirty)
	}

	s.orch.Start(runCtx)
	root, err := s.orch.RunGoal(goal)
	if err != nil {
		s.Stop()
		return core.Task{}, err
	}
	s.logger.Info("simulation.started", "run_id", s.RunID(), "goal", goal)
	return root, nil
}

// Stop cancels the current run, waits for the workers and writes the final
// snapshot. It is a no-op when nothing is running.
func (s *Simulation) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.orch.Stop()
	s.saverWG.Wait()
}

// Done is closed when every task of the current run is terminal.
func (s *Simulation) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		return nil
	}
	return s.done
}

// Wait blocks until the run completes or ctx is done.
func (s *Simulation) Wait(ctx context.Context) error {
	done := s.Done()
	if done == nil {
		return ErrNotStarted
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunID identifies the current run.
func (s *Simulation) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

// ProvideHumanInput answers a pending question.
func (s *Simulation) ProvideHumanInput(requestID, response string) error {
	return s.orch.ProvideHumanInput(requestID, response)
}

// PendingHumanInput lists the unanswered questions.
func (s *Simulation) PendingHumanInput() []core.HumanInputRequest {
	return s.orch.PendingHumanInput()
}

// Retry re-dispatches a task to its assignee.
func (s *Simulation) Retry(taskID string) error {
	return s.orch.RetryTask(taskID)
}

// Snapshot captures the observable state of the current run.
func (s *Simulation) Snapshot() snapshot.Snapshot {
	s.mu.Lock()
	snap := snapshot.Snapshot{
		RunID:    s.runID,
		Goal:     s.goal,
		Mail:     slices.Clone(s.mails),
		Events:   slices.Clone(s.events),
		Complete: s.complete,
	}
	s.mu.Unlock()

	snap.Tasks = s.orch.Tasks()
	snap.Conversations = s.orch.Conversations()
	snap.Environments = s.orch.EnvironmentStates()
	snap.HumanInput = s.orch.PendingHumanInput()
	snap.SavedAt = time.Now().UTC()
	return snap
}

// Report summarizes the current run.
func (s *Simulation) Report() metrics.Report {
	s.mu.Lock()
	start, end := s.start, s.end
	s.mu.Unlock()
	calls, failed := s.opts.Metrics.ReasoningCounts()
	r := metrics.BuildReport(start, end, s.orch.Tasks(), calls, failed)
	if s.opts.Limiter != nil {
		r.CallsRemaining = s.opts.Limiter.Remaining()
	}
	return r
}

func (s *Simulation) onTasks(tasks []core.Task) {
	defer s.markDirty()
	if s.opts.OnTasks != nil {
		s.opts.OnTasks(tasks)
	}

	if !core.IsComplete(tasks) {
		return
	}
	s.mu.Lock()
	if s.complete || s.done == nil {
		s.mu.Unlock()
		return
	}
	s.complete = true
	s.end = time.Now().UTC()
	done := s.done
	s.mu.Unlock()

	report := s.Report()
	s.logger.Info("simulation.completed", "run_id", s.RunID(), "report", report.String())
	if s.opts.Limiter != nil {
		calls, failed := s.opts.Limiter.Counts()
		s.logger.Debug("simulation.model_calls", "run_id", s.RunID(), "calls", calls, "failed", failed, "remaining", report.CallsRemaining)
	}
	if s.opts.OnComplete != nil {
		s.opts.OnComplete(report)
	}
	close(done)
}

func (s *Simulation) onMail(m core.Mail) {
	s.mu.Lock()
	s.mails = append(s.mails, m)
	s.mu.Unlock()
	if s.opts.OnMail != nil {
		s.opts.OnMail(m)
	}
	s.markDirty()
}

func (s *Simulation) onEvent(ev core.Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	if s.opts.OnEvent != nil {
		s.opts.OnEvent(ev)
	}
	if ev.Name == agent.EventReasoningError {
		if taskID, _ := ev.Data["task_id"].(string); taskID != "" {
			s.scheduleRetry(taskID)
		}
	}
	s.markDirty()
}

func (s *Simulation) onHumanInput(pending []core.HumanInputRequest) {
	if s.opts.OnHumanInput != nil {
		s.opts.OnHumanInput(pending)
	}
	s.markDirty()
}

// scheduleRetry retries taskID after the backoff. A task whose retries are
// exhausted is failed on behalf of its assignee.
func (s *Simulation) scheduleRetry(taskID string) {
	if s.opts.Retry.MaxAttempts <= 0 {
		return
	}
	s.mu.Lock()
	gen, ctx := s.gen, s.runCtx
	s.mu.Unlock()
	if ctx == nil {
		return
	}

	go func() {
		timer := time.NewTimer(s.opts.Retry.Backoff)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		s.mu.Lock()
		current := s.gen == gen
		s.mu.Unlock()
		if !current {
			return
		}

		err := s.orch.RetryTask(taskID)
		if err == nil {
			return
		}
		if !errors.Is(err, core.ErrRetryLimit) {
			s.logger.Warn("simulation.retry.failed", "task_id", taskID, "error", err)
			return
		}
		t, ok := s.orch.Task(taskID)
		if !ok {
			return
		}
		reason := fmt.Sprintf("Reasoning failed; gave up after %d attempts.", s.opts.Retry.MaxAttempts)
		if ferr := s.orch.FailTask(taskID, t.Assignee, reason); ferr != nil {
			s.logger.Warn("simulation.retry.give_up_failed", "task_id", taskID, "error", ferr)
		}
	}()
}

func (s *Simulation) markDirty() {
	s.mu.Lock()
	dirty := s.dirty
	s.mu.Unlock()
	if dirty == nil {
		return
	}
	select {
	case dirty <- struct{}{}:
	default:
	}
}

// saveLoop writes coalesced snapshots until ctx ends, then writes a final one.
func (s *Simulation) saveLoop(ctx context.Context, dirty <-chan struct{}) {
	defer s.saverWG.Done()
	for {
		select {
		case <-ctx.Done():
			s.save(context.WithoutCancel(ctx))
			return
		case <-dirty:
			s.save(ctx)
		}
	}
}

func (s *Simulation) save(ctx context.Context) {
	snap := s.Snapshot()
	if err := s.opts.Store.Save(ctx, snap); err != nil && ctx.Err() == nil {
		s.logger.Error("simulation.save.failed", "run_id", snap.RunID, "error", err)
	}
}
