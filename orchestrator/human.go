package orchestrator

import (
	"fmt"
	"slices"
	"time"

	"github.com/hupe1980/agentorg/core"
)

// RequestHumanInput suspends a task in progress until a human answers
// question. Requests are queued in arrival order.
func (o *Orchestrator) RequestHumanInput(taskID, worker, question string) (core.HumanInputRequest, error) {
	if _, err := o.transition(taskID, worker, core.TaskInProgress, core.TaskAwaitingInput, question); err != nil {
		return core.HumanInputRequest{}, err
	}

	req := core.HumanInputRequest{
		ID:         core.NewID(),
		TaskID:     taskID,
		WorkerName: worker,
		Question:   question,
		CreatedAt:  time.Now().UTC(),
	}
	o.mu.Lock()
	o.humanQueue = append(o.humanQueue, req)
	o.mu.Unlock()

	o.logger.Info("human_input.requested", "request_id", req.ID, "task_id", taskID, "worker", worker)
	o.publishHuman()
	return req, nil
}

// PendingHumanInput returns the unanswered requests in arrival order.
func (o *Orchestrator) PendingHumanInput() []core.HumanInputRequest {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.humanQueue)
}

// ProvideHumanInput answers a request. The request is consumed even when its
// task has moved on, in which case core.ErrStale is returned. Otherwise the
// task's goal is rewritten to carry the original goal, the question and the
// answer, and the task is dispatched again.
func (o *Orchestrator) ProvideHumanInput(requestID, response string) error {
	o.mu.Lock()
	idx := slices.IndexFunc(o.humanQueue, func(r core.HumanInputRequest) bool { return r.ID == requestID })
	if idx < 0 {
		o.mu.Unlock()
		return fmt.Errorf("%w: %s", core.ErrRequestNotFound, requestID)
	}
	req := o.humanQueue[idx]
	o.humanQueue = slices.Delete(o.humanQueue, idx, idx+1)

	t, ok := o.tasks[req.TaskID]
	if !ok || t.Status != core.TaskAwaitingInput {
		o.mu.Unlock()
		o.publishHuman()
		return fmt.Errorf("%w: task %s is no longer awaiting input", core.ErrStale, req.TaskID)
	}
	t.Goal = ResumeGoal(t.OriginalGoal, req.Question, response)
	t.Append(core.TaskPending, "Human input received. Resuming task.")
	out := o.dispatchLocked(t)
	o.mu.Unlock()

	o.logger.Info("human_input.provided", "request_id", requestID, "task_id", req.TaskID)
	o.publishHuman()
	o.publishTasks()
	o.deliver(out)
	return nil
}

// ResumeGoal is the goal text handed back to a worker after a human answered
// its question.
func ResumeGoal(original, question, response string) string {
	return fmt.Sprintf(`My original goal was: "%s". I requested human input with the question: "%s". `+
		`The human provided this response: "%s". I will now use this information to continue my original goal.`,
		original, question, response)
}

func (o *Orchestrator) publishHuman() {
	if !o.humanListener.Enabled() {
		return
	}
	o.mu.Lock()
	o.versions.human++
	v, snap := o.versions.human, slices.Clone(o.humanQueue)
	o.mu.Unlock()
	o.humanListener.Deliver(v, snap)
}
