package testutil

import (
	"time"

	"github.com/hupe1980/agentorg/config"
	"github.com/hupe1980/agentorg/core"
	"github.com/hupe1980/agentorg/workflow"
)

// TaskBuilder provides a fluent helper for constructing tasks in tests.
// Example:
//
//	t := NewTaskBuilder().Goal("write").Assignee("Writer").Status(core.TaskInProgress).Build()
type TaskBuilder struct {
	t core.Task
}

// NewTaskBuilder creates a PENDING task with a fresh id.
func NewTaskBuilder() *TaskBuilder {
	return &TaskBuilder{t: core.Task{ID: core.NewID(), Status: core.TaskPending, Issuer: core.SystemIssuer}}
}

// ID overrides the generated id (chainable).
func (b *TaskBuilder) ID(id string) *TaskBuilder { b.t.ID = id; return b }

// Goal sets goal and original goal (chainable).
func (b *TaskBuilder) Goal(g string) *TaskBuilder { b.t.Goal, b.t.OriginalGoal = g, g; return b }

// Assignee sets the assignee (chainable).
func (b *TaskBuilder) Assignee(a string) *TaskBuilder { b.t.Assignee = a; return b }

// Issuer sets the issuer (chainable).
func (b *TaskBuilder) Issuer(i string) *TaskBuilder { b.t.Issuer = i; return b }

// Parent sets the parent task id (chainable).
func (b *TaskBuilder) Parent(id string) *TaskBuilder { b.t.ParentID = id; return b }

// Status sets the status (chainable).
func (b *TaskBuilder) Status(s core.TaskStatus) *TaskBuilder { b.t.Status = s; return b }

// DependsOn sets dependencies (chainable).
func (b *TaskBuilder) DependsOn(ids ...string) *TaskBuilder { b.t.Dependencies = ids; return b }

// CreatedAt seeds the first history entry at ts (chainable).
func (b *TaskBuilder) CreatedAt(ts time.Time) *TaskBuilder {
	b.t.History = []core.HistoryEntry{{Status: b.t.Status, Timestamp: ts, Message: "Task created."}}
	return b
}

// Build returns the task, adding a creation entry when none was set.
func (b *TaskBuilder) Build() core.Task {
	t := b.t.Clone()
	if len(t.History) == 0 {
		t.History = []core.HistoryEntry{{Status: t.Status, Timestamp: time.Now().UTC(), Message: "Task created."}}
	}
	return t
}

// OrgBuilder assembles an organization config in tests.
type OrgBuilder struct {
	cfg   config.OrgConfig
	nodes map[string]*config.WorkerConfig
}

// NewOrg starts an organization with the given root worker.
func NewOrg(root string) *OrgBuilder {
	b := &OrgBuilder{cfg: config.OrgConfig{Name: "Test Org"}, nodes: map[string]*config.WorkerConfig{}}
	b.cfg.Root = config.WorkerConfig{Name: root, Role: config.RoleConfig{Name: root}}
	b.nodes[root] = &b.cfg.Root
	return b
}

// Worker adds name under supervisor with the given role name (chainable).
// Supervisors must be added before their subordinates.
func (b *OrgBuilder) Worker(supervisor, name, role string) *OrgBuilder {
	sup := b.nodes[supervisor]
	sup.Subordinates = append(sup.Subordinates, config.WorkerConfig{Name: name, Role: config.RoleConfig{Name: role}})
	// re-index: appending may have moved sibling structs
	for i := range sup.Subordinates {
		b.reindex(&sup.Subordinates[i])
	}
	return b
}

func (b *OrgBuilder) reindex(w *config.WorkerConfig) {
	b.nodes[w.Name] = w
	for i := range w.Subordinates {
		b.reindex(&w.Subordinates[i])
	}
}

// In binds worker to environment (chainable).
func (b *OrgBuilder) In(worker, env string) *OrgBuilder {
	b.nodes[worker].Environment = env
	return b
}

// Environment declares an environment (chainable).
func (b *OrgBuilder) Environment(id string, initial map[string]any) *OrgBuilder {
	b.cfg.Environments = append(b.cfg.Environments, config.EnvironmentConfig{ID: id, InitialState: initial})
	return b
}

// SOP adds an SOP to the library (chainable).
func (b *OrgBuilder) SOP(sop workflow.SOP) *OrgBuilder {
	b.cfg.SOPs = append(b.cfg.SOPs, sop)
	return b
}

// Build returns the config.
func (b *OrgBuilder) Build() config.OrgConfig { return b.cfg }
