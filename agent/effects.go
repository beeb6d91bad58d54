package agent

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/hupe1980/agentorg/core"
	"github.com/hupe1980/agentorg/workflow"
)

// apply executes the effects of a decision in order. Invalid or stale
// effects are logged and skipped; the remaining effects still run.
func (w *Worker) apply(focus *core.Task, d core.Decision) {
	if d.Version != "" && d.Version != core.DecisionVersion {
		w.opts.Logger.Warn("worker.decision.rejected", "worker", w.cfg.Name, "version", d.Version)
		return
	}
	for _, effect := range d.Effects {
		if effect == nil {
			continue
		}
		if err := effect.Validate(); err != nil {
			w.invalid(effect, err)
			continue
		}
		if err := w.applyOne(focus, effect); err != nil {
			if errors.Is(err, core.ErrStale) || errors.Is(err, core.ErrTaskNotFound) {
				w.opts.Logger.Debug("worker.effect.stale", "worker", w.cfg.Name, "effect", effect.Kind(), "error", err)
				continue
			}
			w.invalid(effect, err)
		}
	}
}

var errNoTask = errors.New("effect requires a task in progress")

func (w *Worker) applyOne(focus *core.Task, effect core.Effect) error {
	switch e := effect.(type) {
	case core.DelegateEffect:
		if focus == nil {
			return errNoTask
		}
		return w.delegate(focus, e.Subtasks)

	case core.CompleteEffect:
		if focus == nil {
			return errNoTask
		}
		return w.host.CompleteTask(focus.ID, w.cfg.Name, e.Result)

	case core.FailEffect:
		if focus == nil {
			return errNoTask
		}
		return w.host.FailTask(focus.ID, w.cfg.Name, e.Reason)

	case core.RequestHumanInputEffect:
		if focus == nil {
			return errNoTask
		}
		_, err := w.host.RequestHumanInput(focus.ID, w.cfg.Name, e.Question)
		return err

	case core.UseSOPEffect:
		if focus == nil {
			return errNoTask
		}
		return w.useSOP(focus, e)

	case core.StartConversationEffect:
		taskID := ""
		if focus != nil {
			taskID = focus.ID
		}
		w.host.StartConversation(w.cfg.Name, e.Participants, e.Topic, e.Opening, taskID)
		return nil

	case core.ContributeEffect:
		return w.host.Contribute(e.ConversationID, w.cfg.Name, e.Message)

	case core.ResolveConversationEffect:
		return w.host.ResolveConversation(e.ConversationID, w.cfg.Name, e.Summary)

	case core.UpdateEnvironmentEffect:
		if w.cfg.Environment == "" {
			return fmt.Errorf("%w: worker has no environment", core.ErrUnknownEnvironment)
		}
		return w.host.UpdateEnvironment(w.cfg.Environment, w.cfg.Name, e.Event, e.Changes)

	case core.SendMessageEffect:
		w.host.Send(e.To, core.Envelope{From: w.cfg.Name, Subject: core.SubjectMessage, Body: e.Text})
		return nil

	case core.WaitEffect:
		w.opts.Logger.Debug("worker.wait", "worker", w.cfg.Name, "reason", e.Reason)
		return nil

	default:
		return fmt.Errorf("unsupported effect %T", effect)
	}
}

// delegate drops subtasks addressed outside the subordinate list, which is
// a configuration error rather than a runtime fault, and hands the rest to
// the host.
func (w *Worker) delegate(focus *core.Task, specs []core.SubtaskSpec) error {
	valid := make([]core.SubtaskSpec, 0, len(specs))
	for _, s := range specs {
		if !slices.Contains(w.cfg.Subordinates, s.Assignee) {
			w.opts.Logger.Error("worker.delegate.not_subordinate", "worker", w.cfg.Name, "assignee", s.Assignee)
			w.host.Emit(core.NewEvent(EventConfigError, w.cfg.Name, map[string]any{
				"task_id":  focus.ID,
				"assignee": s.Assignee,
				"error":    "delegation target is not a direct subordinate",
			}))
			continue
		}
		valid = append(valid, s)
	}
	if len(valid) == 0 {
		return nil
	}
	_, err := w.host.Delegate(focus.ID, w.cfg.Name, valid)
	return err
}

// useSOP instantiates an SOP and delegates each step to the subordinate
// holding the step's role. When the SOP is unknown the worker mails itself
// a notice so the next reasoning step can decompose the task ad hoc.
func (w *Worker) useSOP(focus *core.Task, e core.UseSOPEffect) error {
	context := e.Context
	if context == "" {
		context = focus.Goal
	}
	drafts, err := w.host.InstantiateSOP(e.Name, context)
	if errors.Is(err, core.ErrSOPNotFound) {
		w.host.Send(w.cfg.Name, core.Envelope{
			From:    core.SystemIssuer,
			Subject: core.SubjectSystemNotice,
			Body: fmt.Sprintf("SOP %q does not exist. Known SOPs: %s. Decompose the task yourself.",
				e.Name, strings.Join(w.host.SOPNames(), ", ")),
		})
		return nil
	}
	if err != nil {
		return err
	}
	return w.delegate(focus, w.specsFromDrafts(drafts))
}

func (w *Worker) specsFromDrafts(drafts []workflow.TaskDraft) []core.SubtaskSpec {
	specs := make([]core.SubtaskSpec, 0, len(drafts))
	prev := ""
	for _, d := range drafts {
		assignee, ok := w.subordinateFor(d.Role)
		if !ok {
			w.opts.Logger.Warn("worker.sop.step_unassigned", "worker", w.cfg.Name, "step", d.Step, "role", d.Role)
			continue
		}
		spec := core.SubtaskSpec{Ref: fmt.Sprintf("step-%d", d.Step), Assignee: assignee, Goal: d.Goal}
		if prev != "" {
			spec.DependsOn = []string{prev}
		}
		prev = spec.Ref
		specs = append(specs, spec)
	}
	return specs
}

// subordinateFor matches a role against subordinate names first and role
// names second. An empty role goes to the first subordinate.
func (w *Worker) subordinateFor(role string) (string, bool) {
	if len(w.cfg.Subordinates) == 0 {
		return "", false
	}
	if role == "" {
		return w.cfg.Subordinates[0], true
	}
	for _, s := range w.cfg.Subordinates {
		if strings.EqualFold(s, role) {
			return s, true
		}
	}
	for _, s := range w.cfg.Subordinates {
		if r, ok := w.host.Role(s); ok && strings.EqualFold(r.Name, role) {
			return s, true
		}
	}
	return "", false
}

func (w *Worker) invalid(effect core.Effect, err error) {
	w.opts.Logger.Warn("worker.effect.invalid", "worker", w.cfg.Name, "effect", effect.Kind(), "error", err)
	w.host.Emit(core.NewEvent(EventInvalidEffect, w.cfg.Name, map[string]any{
		"effect": effect.Kind(),
		"error":  err.Error(),
	}))
}
