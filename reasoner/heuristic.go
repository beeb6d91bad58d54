package reasoner

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/agentorg/core"
)

// HeuristicOptions configures a Heuristic reasoner.
type HeuristicOptions struct {
	// SOPs maps a worker name to the SOP it applies to every new task
	// instead of delegating one subtask per subordinate.
	SOPs map[string]string
	// Questions maps a worker name to a question it asks a human once per
	// task before starting work.
	Questions map[string]string
}

// Heuristic is a deterministic reasoner that needs no model. A worker with
// subordinates delegates (or applies its SOP) and completes once every
// subtask is terminal; a worker without subordinates completes immediately.
type Heuristic struct {
	opts HeuristicOptions

	mu    sync.Mutex
	asked map[string]bool
}

// NewHeuristic creates a Heuristic reasoner.
func NewHeuristic(optFns ...func(o *HeuristicOptions)) *Heuristic {
	opts := HeuristicOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Heuristic{opts: opts, asked: map[string]bool{}}
}

// Reason implements core.Reasoner.
func (h *Heuristic) Reason(ctx context.Context, req core.ReasoningRequest) (core.Decision, error) {
	if err := ctx.Err(); err != nil {
		return core.Decision{}, err
	}
	if req.TaskID == "" {
		return decision("No task in focus.", core.WaitEffect{Reason: "idle"}), nil
	}

	if q, ok := h.opts.Questions[req.Worker]; ok && h.firstAsk(req.TaskID) {
		return decision("I need guidance before starting.", core.RequestHumanInputEffect{Question: q}), nil
	}

	fresh := req.Trigger.Subject == core.SubjectNewTask || req.Trigger.Subject == core.SubjectSystemNotice
	if fresh && len(req.Subtasks) == 0 {
		if len(req.Subordinates) == 0 {
			return decision("I can do this myself.", core.CompleteEffect{Result: "Done: " + req.Goal}), nil
		}
		// A system notice follows a failed SOP lookup, so decompose ad hoc.
		if sop, ok := h.opts.SOPs[req.Worker]; ok && req.Trigger.Subject == core.SubjectNewTask {
			return decision("Following the standard procedure.", core.UseSOPEffect{Name: sop, Context: req.Goal}), nil
		}
		specs := make([]core.SubtaskSpec, len(req.Subordinates))
		for i, s := range req.Subordinates {
			specs[i] = core.SubtaskSpec{Assignee: s, Goal: fmt.Sprintf("Handle your part of: %s", req.Goal)}
		}
		return decision("Splitting the work among my team.", core.DelegateEffect{Subtasks: specs}), nil
	}

	if len(req.Subtasks) == 0 {
		return decision("Nothing to do yet.", core.WaitEffect{Reason: "waiting"}), nil
	}
	var (
		results []string
		failed  []string
	)
	for _, st := range req.Subtasks {
		switch st.Status {
		case core.TaskCompleted:
			results = append(results, st.Result)
		case core.TaskFailed:
			failed = append(failed, fmt.Sprintf("%s (%s)", st.Goal, st.Result))
		default:
			return decision("Waiting for subtasks.", core.WaitEffect{Reason: "subtasks running"}), nil
		}
	}
	if len(failed) > 0 {
		return decision("Some subtasks failed.", core.FailEffect{Reason: "Subtasks failed: " + strings.Join(failed, "; ")}), nil
	}
	return decision("All subtasks are done.", core.CompleteEffect{Result: strings.Join(results, "; ")}), nil
}

func (h *Heuristic) firstAsk(taskID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.asked[taskID] {
		return false
	}
	h.asked[taskID] = true
	return true
}

func decision(thought string, effects ...core.Effect) core.Decision {
	return core.Decision{Version: core.DecisionVersion, Thought: thought, Effects: effects}
}
