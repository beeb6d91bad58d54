package orchestrator

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/hupe1980/agentorg/core"
)

// outgoing is a mail queued under the task lock and sent after it is released.
type outgoing struct {
	to  string
	env core.Envelope
}

// CreateTask stores a new task with a single "Task created." history entry.
func (o *Orchestrator) CreateTask(spec core.TaskSpec) core.Task {
	o.mu.Lock()
	t := o.newTaskLocked(spec).Clone()
	o.mu.Unlock()

	o.opts.Metrics.TaskCreated(context.Background())
	o.publishTasks()
	return t
}

func (o *Orchestrator) newTaskLocked(spec core.TaskSpec) *core.Task {
	status := spec.Status
	if status == "" {
		status = core.TaskPending
	}
	t := &core.Task{
		ID:           core.NewID(),
		Goal:         spec.Goal,
		OriginalGoal: spec.Goal,
		Assignee:     spec.Assignee,
		Issuer:       spec.Issuer,
		ParentID:     spec.ParentID,
		Dependencies: slices.Clone(spec.Dependencies),
		AutoDispatch: spec.AutoDispatch,
	}
	t.Append(status, "Task created.")
	o.tasks[t.ID] = t
	return t
}

// UpdateTask replaces the stored task with the same id. The original goal
// cannot be changed, a status change must be a legal transition and the
// stored history may only be extended.
func (o *Orchestrator) UpdateTask(t core.Task) error {
	o.mu.Lock()
	old, ok := o.tasks[t.ID]
	if !ok {
		o.mu.Unlock()
		return fmt.Errorf("%w: %s", core.ErrTaskNotFound, t.ID)
	}
	if t.Status != old.Status && !core.CanTransition(old.Status, t.Status) {
		o.mu.Unlock()
		return fmt.Errorf("%w: %s to %s", core.ErrInvalidTransition, old.Status, t.Status)
	}
	if !t.HasHistoryPrefix(old.History) {
		o.mu.Unlock()
		return fmt.Errorf("%w: task %s", core.ErrHistoryRewrite, t.ID)
	}
	from := old.Status
	t = t.Clone()
	t.OriginalGoal = old.OriginalGoal
	o.tasks[t.ID] = &t
	o.mu.Unlock()

	if t.Status != from {
		o.logTransition(t.ID, from, t.Status, "Updated.")
	}
	o.publishTasks()
	return nil
}

// UpdateTaskDependencies replaces the dependency list of a task.
func (o *Orchestrator) UpdateTaskDependencies(id string, deps []string) error {
	_, err := o.mutateTask(id, func(t *core.Task) error {
		t.Dependencies = slices.Clone(deps)
		return nil
	})
	return err
}

// UpdateTaskGoal replaces the current goal of a task.
func (o *Orchestrator) UpdateTaskGoal(id, goal string) error {
	_, err := o.mutateTask(id, func(t *core.Task) error {
		t.Goal = goal
		return nil
	})
	return err
}

// mutateTask applies fn to a copy of the task and stores it when fn succeeds.
func (o *Orchestrator) mutateTask(id string, fn func(t *core.Task) error) (core.Task, error) {
	o.mu.Lock()
	cur, ok := o.tasks[id]
	if !ok {
		o.mu.Unlock()
		return core.Task{}, fmt.Errorf("%w: %s", core.ErrTaskNotFound, id)
	}
	next := cur.Clone()
	if err := fn(&next); err != nil {
		o.mu.Unlock()
		return core.Task{}, err
	}
	o.tasks[id] = &next
	out := next.Clone()
	o.mu.Unlock()

	o.publishTasks()
	return out, nil
}

// Task returns a copy of the task.
func (o *Orchestrator) Task(id string) (core.Task, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	t, ok := o.tasks[id]
	if !ok {
		return core.Task{}, false
	}
	return t.Clone(), true
}

// Tasks returns every task ordered by creation time.
func (o *Orchestrator) Tasks() []core.Task {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sortedLocked()
}

func (o *Orchestrator) sortedLocked() []core.Task {
	out := make([]core.Task, 0, len(o.tasks))
	for _, t := range o.tasks {
		out = append(out, t.Clone())
	}
	// Map iteration is random; order by id first so creation-time ties are stable.
	slices.SortFunc(out, func(a, b core.Task) int { return strings.Compare(a.ID, b.ID) })
	core.SortTasks(out)
	return out
}

// Subtasks returns the tasks delegated from parentID in creation order.
func (o *Orchestrator) Subtasks(parentID string) []core.Task {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []core.Task
	for _, t := range o.sortedLocked() {
		if t.ParentID == parentID {
			out = append(out, t)
		}
	}
	return out
}

// ActiveTask returns the IN_PROGRESS task of worker that changed most recently.
func (o *Orchestrator) ActiveTask(worker string) (core.Task, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var best *core.Task
	for _, t := range o.tasks {
		if t.Assignee != worker || t.Status != core.TaskInProgress {
			continue
		}
		if best == nil || lastChange(t).After(lastChange(best)) {
			best = t
		}
	}
	if best == nil {
		return core.Task{}, false
	}
	return best.Clone(), true
}

func lastChange(t *core.Task) time.Time {
	if n := len(t.History); n > 0 {
		return t.History[n-1].Timestamp
	}
	return time.Time{}
}

// DispatchTask mails a PENDING task to its assignee once every dependency
// has completed. A task without an assignee is left alone.
func (o *Orchestrator) DispatchTask(id string) error {
	o.mu.Lock()
	t, ok := o.tasks[id]
	if !ok {
		o.mu.Unlock()
		return fmt.Errorf("%w: %s", core.ErrTaskNotFound, id)
	}
	if t.Assignee == "" {
		o.mu.Unlock()
		return nil
	}
	if t.Status == core.TaskAwaitingInput || !core.CanTransition(t.Status, core.TaskPending) {
		o.mu.Unlock()
		return fmt.Errorf("%w: dispatch from %s", core.ErrInvalidTransition, t.Status)
	}
	if dep, ok := o.unmetLocked(t); !ok {
		o.mu.Unlock()
		return fmt.Errorf("%w: task %s waits for %s", core.ErrDependenciesUnmet, id, dep)
	}
	out := o.dispatchLocked(t)
	o.mu.Unlock()

	o.publishTasks()
	o.deliver(out)
	return nil
}

// unmetLocked returns the first dependency that has not completed.
func (o *Orchestrator) unmetLocked(t *core.Task) (string, bool) {
	for _, dep := range t.Dependencies {
		d, ok := o.tasks[dep]
		if !ok || d.Status != core.TaskCompleted {
			return dep, false
		}
	}
	return "", true
}

func (o *Orchestrator) dispatchLocked(t *core.Task) outgoing {
	t.Append(core.TaskPending, "Dependencies met. Dispatching.")
	t.Dispatched = true
	return o.newTaskMail(t)
}

func (o *Orchestrator) newTaskMail(t *core.Task) outgoing {
	from := t.Issuer
	if from == "" {
		from = core.SystemIssuer
	}
	return outgoing{to: t.Assignee, env: core.Envelope{From: from, Subject: core.SubjectNewTask, Body: t.Clone()}}
}

// RetryTask increments the retry counter, moves the task back to PENDING
// and mails it to its assignee again. Only PENDING and IN_PROGRESS tasks can
// be retried. The configured RetryPolicy caps the number of attempts.
func (o *Orchestrator) RetryTask(id string) error {
	o.mu.Lock()
	t, ok := o.tasks[id]
	if !ok {
		o.mu.Unlock()
		return fmt.Errorf("%w: %s", core.ErrTaskNotFound, id)
	}
	if t.Assignee == "" {
		o.mu.Unlock()
		return fmt.Errorf("%w: %s", core.ErrNoAssignee, id)
	}
	if t.Status != core.TaskPending && t.Status != core.TaskInProgress {
		o.mu.Unlock()
		return fmt.Errorf("%w: retry from %s", core.ErrInvalidTransition, t.Status)
	}
	if maxAttempts := o.opts.Retry.MaxAttempts; maxAttempts > 0 && t.Retries >= maxAttempts {
		o.mu.Unlock()
		return fmt.Errorf("%w: %d attempts", core.ErrRetryLimit, maxAttempts)
	}
	t.Retries++
	attempt := t.Retries
	t.Append(core.TaskPending, "Retrying task (attempt "+strconv.Itoa(attempt)+").")
	t.Dispatched = true
	out := o.newTaskMail(t)
	o.mu.Unlock()

	o.logger.Info("task.retry", "task_id", id, "attempt", attempt)
	o.publishTasks()
	o.deliver(out)
	return nil
}

// RunGoal discards all previous work and hands goal to the root worker.
// Environments return to their initial state unless KeepEnvironments is set.
func (o *Orchestrator) RunGoal(goal string) (core.Task, error) {
	if o.root == "" {
		return core.Task{}, fmt.Errorf("%w: organization has no root worker", core.ErrNoAssignee)
	}

	o.mu.Lock()
	o.gen++
	o.tasks = map[string]*core.Task{}
	o.humanQueue = nil
	o.mu.Unlock()
	o.convs.Reset()
	if !o.opts.KeepEnvironments {
		o.envs.Reset()
		o.publishEnvironments()
	}
	for _, w := range o.workers {
		w.Reset()
	}
	o.publishTasks()
	o.publishHuman()

	o.mu.Lock()
	root := o.newTaskLocked(core.TaskSpec{Goal: goal, Assignee: o.root, Issuer: core.SystemIssuer})
	root.Dispatched = true
	out := o.newTaskMail(root)
	task := root.Clone()
	o.mu.Unlock()

	o.opts.Metrics.TaskCreated(context.Background())
	o.logger.Info("goal.started", "task_id", task.ID, "root", o.root)
	o.publishTasks()
	o.deliver(out)
	return task, nil
}

// BeginTask moves a PENDING task assigned to worker to IN_PROGRESS.
func (o *Orchestrator) BeginTask(id, worker string) (core.Task, error) {
	return o.transition(id, worker, core.TaskPending, core.TaskInProgress, "Picked up by "+worker+".")
}

func (o *Orchestrator) transition(id, worker string, from, to core.TaskStatus, msg string) (core.Task, error) {
	t, err := o.mutateTask(id, func(t *core.Task) error {
		if t.Assignee != worker || t.Status != from {
			return fmt.Errorf("%w: task %s is %s for %q", core.ErrStale, t.ID, t.Status, t.Assignee)
		}
		t.Append(to, msg)
		return nil
	})
	if err == nil {
		o.logTransition(id, from, to, msg)
	}
	return t, err
}

// CompleteTask records the result of a task in progress, reports it to the
// issuer and dispatches tasks that were waiting for it.
func (o *Orchestrator) CompleteTask(id, worker, result string) error {
	msg := "Completed."
	if result != "" {
		msg = "Completed: " + result
	}
	return o.finish(id, worker, core.TaskCompleted, result, msg)
}

// FailTask marks a task in progress as failed and cascades the failure to
// tasks depending on it.
func (o *Orchestrator) FailTask(id, worker, reason string) error {
	return o.finish(id, worker, core.TaskFailed, reason, "Failed: "+reason)
}

func (o *Orchestrator) finish(id, worker string, status core.TaskStatus, result, msg string) error {
	t, err := o.mutateTask(id, func(t *core.Task) error {
		if t.Assignee != worker || t.Status != core.TaskInProgress {
			return fmt.Errorf("%w: task %s is %s for %q", core.ErrStale, t.ID, t.Status, t.Assignee)
		}
		t.Result = result
		t.Append(status, msg)
		return nil
	})
	if err != nil {
		return err
	}
	o.logTransition(id, core.TaskInProgress, status, msg)
	o.opts.Metrics.TaskFinished(context.Background(), status)
	o.reportResult(t)
	o.ResolveDependencies()
	return nil
}

// reportResult mails a finished task to the worker that issued it.
func (o *Orchestrator) reportResult(t core.Task) {
	if t.Issuer == "" || t.Issuer == core.SystemIssuer || !o.router.Registered(t.Issuer) {
		return
	}
	o.router.Send(t.Issuer, core.Envelope{From: t.Assignee, Subject: core.SubjectTaskResult, Body: t})
}

// Delegate creates subtasks of parentID issued by its assignee. DependsOn
// entries may name the Ref of an earlier spec in the same call or the id of
// an existing task; anything else is dropped with a warning. Ready subtasks
// are dispatched immediately.
func (o *Orchestrator) Delegate(parentID, issuer string, specs []core.SubtaskSpec) ([]core.Task, error) {
	o.mu.Lock()
	parent, ok := o.tasks[parentID]
	if !ok {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", core.ErrTaskNotFound, parentID)
	}
	if parent.Assignee != issuer || parent.Status != core.TaskInProgress {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: task %s is %s for %q", core.ErrStale, parentID, parent.Status, parent.Assignee)
	}

	refs := map[string]string{}
	created := make([]core.Task, 0, len(specs))
	for i, s := range specs {
		var deps []string
		for _, d := range s.DependsOn {
			switch id, isRef := refs[d]; {
			case isRef:
				deps = append(deps, id)
			case o.tasks[d] != nil:
				deps = append(deps, d)
			default:
				o.logger.Warn("task.delegate.unknown_dependency", "parent_id", parentID, "subtask", i, "dependency", d)
			}
		}
		t := o.newTaskLocked(core.TaskSpec{
			Goal:         s.Goal,
			Assignee:     s.Assignee,
			Issuer:       issuer,
			ParentID:     parentID,
			Dependencies: deps,
			AutoDispatch: true,
		})
		if s.Ref != "" {
			refs[s.Ref] = t.ID
		}
		parent.SubtaskIDs = append(parent.SubtaskIDs, t.ID)
		created = append(created, t.Clone())
	}
	o.mu.Unlock()

	for range created {
		o.opts.Metrics.TaskCreated(context.Background())
	}
	o.logger.Info("task.delegated", "parent_id", parentID, "issuer", issuer, "subtasks", len(created))
	o.publishTasks()
	o.ResolveDependencies()
	return created, nil
}

// ResolveDependencies dispatches every undispatched PENDING AutoDispatch
// task whose dependencies have all completed and fails any undispatched
// task depending on a failed task. Failures cascade until no further task
// is affected. Tasks created without AutoDispatch wait for DispatchTask.
func (o *Orchestrator) ResolveDependencies() {
	var (
		mails  []outgoing
		failed []core.Task
	)

	o.mu.Lock()
	for changed := true; changed; {
		changed = false
		for _, t := range o.sortedLocked() {
			cur := o.tasks[t.ID]
			if cur.Dispatched || cur.Status != core.TaskPending || cur.Assignee == "" {
				continue
			}
			if dep, bad := o.failedDependencyLocked(cur); bad {
				cur.Result = "Dependency " + dep + " failed."
				cur.Append(core.TaskFailed, cur.Result)
				failed = append(failed, cur.Clone())
				changed = true
				continue
			}
			if _, ok := o.unmetLocked(cur); ok && cur.AutoDispatch {
				mails = append(mails, o.dispatchLocked(cur))
			}
		}
	}
	o.mu.Unlock()

	if len(mails) == 0 && len(failed) == 0 {
		return
	}
	o.publishTasks()
	for _, t := range failed {
		o.logTransition(t.ID, core.TaskPending, core.TaskFailed, t.Result)
		o.opts.Metrics.TaskFinished(context.Background(), core.TaskFailed)
		o.reportResult(t)
	}
	o.deliver(mails...)
}

func (o *Orchestrator) failedDependencyLocked(t *core.Task) (string, bool) {
	for _, dep := range t.Dependencies {
		if d, ok := o.tasks[dep]; ok && d.Status == core.TaskFailed {
			return dep, true
		}
	}
	return "", false
}

func (o *Orchestrator) deliver(out ...outgoing) {
	for _, m := range out {
		o.router.Send(m.to, m.env)
	}
}

func (o *Orchestrator) publishTasks() {
	if !o.taskListener.Enabled() {
		return
	}
	o.mu.Lock()
	o.versions.tasks++
	v, snap := o.versions.tasks, o.sortedLocked()
	o.mu.Unlock()
	o.taskListener.Deliver(v, snap)
}

func (o *Orchestrator) logTransition(id string, from, to core.TaskStatus, note string) {
	if sl, ok := o.logger.(interface {
		LogTransition(taskID, from, to, note string)
	}); ok {
		sl.LogTransition(id, string(from), string(to), note)
		return
	}
	o.logger.Debug("task.transition", "task_id", id, "from", string(from), "to", string(to), "note", note)
}
