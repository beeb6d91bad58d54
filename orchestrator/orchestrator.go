package orchestrator

import (
	"context"
	"slices"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/agentorg/agent"
	"github.com/hupe1980/agentorg/config"
	"github.com/hupe1980/agentorg/conversation"
	"github.com/hupe1980/agentorg/core"
	"github.com/hupe1980/agentorg/environment"
	"github.com/hupe1980/agentorg/internal/notify"
	"github.com/hupe1980/agentorg/logging"
	"github.com/hupe1980/agentorg/mail"
	"github.com/hupe1980/agentorg/workflow"
)

// Orchestrator coordinates the workers of one organization.
//
// Concurrency model:
//   - one goroutine per worker, started by Start;
//   - the task table, pending human input and listener versions are guarded by mu;
//   - conversations, environments and the mail log carry their own locks;
//   - no lock is held while a worker reasons or a listener runs.
type Orchestrator struct {
	opts     Options
	cfg      config.OrgConfig
	reasoner core.Reasoner
	logger   logging.Logger

	router *mail.Router
	convs  *conversation.Manager
	envs   *environment.Registry
	sops   *workflow.Manager
	sem    *semaphore.Weighted

	// Worker registry, immutable after New.
	workers map[string]*agent.Worker
	order   []string
	roles   map[string]core.Role
	root    string
	issues  config.Issues

	mu         sync.Mutex
	gen        uint64
	tasks      map[string]*core.Task
	humanQueue []core.HumanInputRequest
	versions   struct{ tasks, envs, human uint64 }

	taskListener  *notify.Latest[[]core.Task]
	envListener   *notify.Latest[map[string]core.EnvironmentState]
	humanListener *notify.Latest[[]core.HumanInputRequest]

	runMu  sync.Mutex
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

var _ agent.Host = (*Orchestrator)(nil)

// New builds an orchestrator for cfg. Configuration problems are logged and
// available through Issues; the affected workers are still created where
// possible so a partially valid organization can run.
func New(cfg config.OrgConfig, r core.Reasoner, optFns ...func(o *Options)) *Orchestrator {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	if opts.MaxConcurrentReasoning <= 0 {
		opts.MaxConcurrentReasoning = 1
	}

	o := &Orchestrator{
		opts:          opts,
		cfg:           cfg,
		reasoner:      r,
		logger:        opts.Logger,
		envs:          environment.NewRegistry(),
		sops:          workflow.NewManager(cfg.SOPs...),
		sem:           semaphore.NewWeighted(opts.MaxConcurrentReasoning),
		workers:       map[string]*agent.Worker{},
		roles:         map[string]core.Role{},
		tasks:         map[string]*core.Task{},
		taskListener:  notify.NewLatest(opts.OnTasks),
		envListener:   notify.NewLatest(opts.OnEnvironments),
		humanListener: notify.NewLatest(opts.OnHumanInput),
	}

	o.router = mail.NewRouter(func(ro *mail.Options) {
		ro.Logger = opts.Logger
		ro.Metrics = opts.Metrics
		ro.OnMail = opts.OnMail
	})
	o.convs = conversation.NewManager(o.router, func(co *conversation.Options) {
		co.Logger = opts.Logger
		co.OnChange = opts.OnConversations
		co.MaxTurns = opts.MaxConversationTurns
		co.Release = o.releaseConversationTask
	})

	for _, e := range cfg.Environments {
		o.envs.Add(e.ID, e.Description, e.InitialState)
	}

	flat, issues := cfg.Flatten()
	o.issues = issues
	for _, issue := range issues {
		o.logger.Warn("config.issue", "kind", string(issue.Kind), "subject", issue.Subject, "message", issue.Message)
	}

	for i, fw := range flat {
		w := agent.New(agent.Config{
			ID:           fw.ID,
			Name:         fw.Name,
			Role:         fw.Role,
			Supervisor:   fw.Supervisor,
			Subordinates: fw.Subordinates,
			Environment:  fw.Environment,
			Tools:        fw.Tools,
		}, o, r, func(ao *agent.Options) {
			ao.Logger = opts.Logger
			if sl, ok := opts.Logger.(*logging.StructuredLogger); ok {
				ao.Logger = sl.WithWorker(fw.Name)
			}
			ao.Metrics = opts.Metrics
			ao.Semaphore = o.sem
			ao.MailboxSize = opts.MailboxSize
			ao.OnThinking = opts.OnThinking
		})
		if i == 0 {
			o.root = fw.Name
		}
		if _, dup := o.workers[fw.Name]; !dup {
			o.order = append(o.order, fw.Name)
		}
		o.workers[fw.Name] = w
		o.roles[fw.Name] = fw.Role
		o.router.Register(w)
	}

	return o
}

// Start launches one processing loop per worker. It returns immediately;
// loops stop when ctx is cancelled or Stop is called.
func (o *Orchestrator) Start(ctx context.Context) {
	o.runMu.Lock()
	defer o.runMu.Unlock()
	if o.cancel != nil {
		return
	}
	ctx, o.cancel = context.WithCancel(ctx)
	for _, name := range o.order {
		w := o.workers[name]
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			_ = w.Run(ctx)
		}()
	}
	o.logger.Info("orchestrator.started", "workers", len(o.order), "root", o.root)
}

// Stop cancels the worker loops and waits for them to return.
func (o *Orchestrator) Stop() {
	o.runMu.Lock()
	cancel := o.cancel
	o.cancel = nil
	o.runMu.Unlock()
	if cancel != nil {
		cancel()
	}
	o.wg.Wait()
}

// Wait blocks until every worker loop has returned.
func (o *Orchestrator) Wait() { o.wg.Wait() }

// Generation identifies the current run. RunGoal advances it, which lets
// workers recognize decisions made for a discarded task table.
func (o *Orchestrator) Generation() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.gen
}

// Root returns the name of the top-level worker.
func (o *Orchestrator) Root() string { return o.root }

// Issues returns the configuration problems found at construction.
func (o *Orchestrator) Issues() config.Issues { return slices.Clone(o.issues) }

// Config returns the organization description the orchestrator was built from.
func (o *Orchestrator) Config() config.OrgConfig { return o.cfg }

// Worker returns the worker registered under name.
func (o *Orchestrator) Worker(name string) (*agent.Worker, bool) {
	w, ok := o.workers[name]
	return w, ok
}

// Workers returns the registered workers in hierarchy order.
func (o *Orchestrator) Workers() []*agent.Worker {
	out := make([]*agent.Worker, 0, len(o.order))
	for _, name := range o.order {
		out = append(out, o.workers[name])
	}
	return out
}

// Role returns the role of a worker.
func (o *Orchestrator) Role(worker string) (core.Role, bool) {
	r, ok := o.roles[worker]
	return r, ok
}

// Send routes mail through the router.
func (o *Orchestrator) Send(to string, env core.Envelope) core.Mail {
	return o.router.Send(to, env)
}

// MailLog returns every mail sent so far.
func (o *Orchestrator) MailLog() []core.Mail { return o.router.Log() }

// SOPNames lists the SOP library.
func (o *Orchestrator) SOPNames() []string { return o.sops.Names() }

// InstantiateSOP binds an SOP to context.
func (o *Orchestrator) InstantiateSOP(name, context string) ([]workflow.TaskDraft, error) {
	return o.sops.Instantiate(name, context)
}

// Conversations returns all conversations in creation order.
func (o *Orchestrator) Conversations() []core.Conversation { return o.convs.List() }

// StartConversation opens a conversation on behalf of initiator.
func (o *Orchestrator) StartConversation(initiator string, participants []string, topic, opening, taskID string) core.Conversation {
	return o.convs.Start(initiator, participants, topic, opening, taskID)
}

// Contribute adds a message to a conversation.
func (o *Orchestrator) Contribute(convID, speaker, text string) error {
	return o.convs.Contribute(convID, speaker, text)
}

// ResolveConversation resolves a conversation. An empty by means the system resolved it.
func (o *Orchestrator) ResolveConversation(convID, by, summary string) error {
	return o.convs.Resolve(convID, by, summary)
}

// ActiveConversations lists the active conversations worker takes part in.
func (o *Orchestrator) ActiveConversations(worker string) []core.Conversation {
	return o.convs.ActiveFor(worker)
}

// releaseConversationTask records the outcome of a resolved conversation on
// the task it was opened for.
func (o *Orchestrator) releaseConversationTask(conv core.Conversation) {
	note := "Conversation resolved: " + conv.Topic + "."
	if conv.Summary != "" {
		note = "Conversation resolved: " + conv.Topic + ". " + conv.Summary
	}
	_, err := o.mutateTask(conv.TaskID, func(t *core.Task) error {
		if t.Status.IsTerminal() {
			return core.ErrStale
		}
		t.Note(note)
		return nil
	})
	if err != nil {
		o.logger.Debug("conversation.release.skipped", "conversation_id", conv.ID, "task_id", conv.TaskID, "error", err)
	}
}
