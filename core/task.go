package core

import (
	"slices"
	"time"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskPending       TaskStatus = "PENDING"
	TaskInProgress    TaskStatus = "IN_PROGRESS"
	TaskAwaitingInput TaskStatus = "AWAITING_INPUT"
	TaskCompleted     TaskStatus = "COMPLETED"
	TaskFailed        TaskStatus = "FAILED"
)

// SystemIssuer is the issuer name used for tasks and mail originating outside any worker.
const SystemIssuer = "System"

// IsTerminal reports whether no further transition is allowed out of s.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// allowedTransitions lists every legal status change. PENDING->PENDING covers
// retry and re-dispatch; PENDING->FAILED covers the dependency failure cascade.
var allowedTransitions = map[TaskStatus][]TaskStatus{
	TaskPending:       {TaskPending, TaskInProgress, TaskFailed},
	TaskInProgress:    {TaskPending, TaskAwaitingInput, TaskCompleted, TaskFailed},
	TaskAwaitingInput: {TaskPending},
}

// CanTransition reports whether a task may move from one status to another.
func CanTransition(from, to TaskStatus) bool {
	return slices.Contains(allowedTransitions[from], to)
}

// HistoryEntry records one status change of a task.
type HistoryEntry struct {
	Status    TaskStatus `json:"status"`
	Timestamp time.Time  `json:"timestamp"`
	Message   string     `json:"message"`
}

// Task is a unit of work assigned to a worker.
type Task struct {
	ID           string         `json:"id"`
	Goal         string         `json:"goal"`
	OriginalGoal string         `json:"original_goal"`
	Status       TaskStatus     `json:"status"`
	Assignee     string         `json:"assignee,omitempty"`
	Issuer       string         `json:"issuer,omitempty"`
	ParentID     string         `json:"parent_id,omitempty"`
	History      []HistoryEntry `json:"history"`
	SubtaskIDs   []string       `json:"subtask_ids,omitempty"`
	Dependencies []string       `json:"dependencies,omitempty"`
	Retries      int            `json:"retries"`
	Dispatched   bool           `json:"dispatched"`
	// AutoDispatch tasks are mailed as soon as their dependencies complete.
	AutoDispatch bool           `json:"auto_dispatch,omitempty"`
	Result       string         `json:"result,omitempty"`
}

// Clone returns a deep copy of the task.
func (t Task) Clone() Task {
	t.History = slices.Clone(t.History)
	t.SubtaskIDs = slices.Clone(t.SubtaskIDs)
	t.Dependencies = slices.Clone(t.Dependencies)
	return t
}

// CreatedAt returns the timestamp of the first history entry.
func (t Task) CreatedAt() time.Time {
	if len(t.History) == 0 {
		return time.Time{}
	}
	return t.History[0].Timestamp
}

// Append moves the task to status and records a history entry.
// It does not check the transition; callers use CanTransition first.
func (t *Task) Append(status TaskStatus, message string) {
	t.Status = status
	t.History = append(t.History, HistoryEntry{Status: status, Timestamp: time.Now().UTC(), Message: message})
}

// Note records a history entry without changing the status.
func (t *Task) Note(message string) {
	t.History = append(t.History, HistoryEntry{Status: t.Status, Timestamp: time.Now().UTC(), Message: message})
}

// TaskSpec is the input for creating a task.
type TaskSpec struct {
	Goal     string
	Assignee string
	Issuer   string
	ParentID string
	// Status defaults to PENDING.
	Status       TaskStatus
	Dependencies []string
	// AutoDispatch hands the task to dependency resolution instead of
	// waiting for an explicit dispatch.
	AutoDispatch bool
}

// HasHistoryPrefix reports whether t's history starts with every entry of prefix.
func (t Task) HasHistoryPrefix(prefix []HistoryEntry) bool {
	if len(t.History) < len(prefix) {
		return false
	}
	for i, e := range prefix {
		h := t.History[i]
		if h.Status != e.Status || h.Message != e.Message || !h.Timestamp.Equal(e.Timestamp) {
			return false
		}
	}
	return true
}

// SortTasks orders tasks by creation time, ties keeping their input order.
func SortTasks(tasks []Task) {
	slices.SortStableFunc(tasks, func(a, b Task) int {
		return a.CreatedAt().Compare(b.CreatedAt())
	})
}

// IsComplete reports whether a simulation has finished: at least one task
// exists and every task is terminal.
func IsComplete(tasks []Task) bool {
	if len(tasks) == 0 {
		return false
	}
	for _, t := range tasks {
		if !t.Status.IsTerminal() {
			return false
		}
	}
	return true
}

// TaskSummary is the compact view of a task handed to reasoning.
type TaskSummary struct {
	ID       string     `json:"id"`
	Goal     string     `json:"goal"`
	Assignee string     `json:"assignee"`
	Status   TaskStatus `json:"status"`
	Result   string     `json:"result,omitempty"`
}

// Summary returns the compact view of t.
func (t Task) Summary() TaskSummary {
	return TaskSummary{ID: t.ID, Goal: t.Goal, Assignee: t.Assignee, Status: t.Status, Result: t.Result}
}
