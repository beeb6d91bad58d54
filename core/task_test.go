package core

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to TaskStatus
		want     bool
	}{
		{TaskPending, TaskInProgress, true},
		{TaskPending, TaskPending, true},
		{TaskPending, TaskFailed, true},
		{TaskPending, TaskCompleted, false},
		{TaskInProgress, TaskCompleted, true},
		{TaskInProgress, TaskAwaitingInput, true},
		{TaskInProgress, TaskPending, true},
		{TaskAwaitingInput, TaskPending, true},
		{TaskAwaitingInput, TaskCompleted, false},
		{TaskCompleted, TaskPending, false},
		{TaskFailed, TaskInProgress, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestTask_AppendAndNote(t *testing.T) {
	task := Task{ID: "t", Status: TaskPending}
	task.Append(TaskInProgress, "picked up")
	task.Note("conversation resolved")

	require.Len(t, task.History, 2)
	assert.Equal(t, TaskInProgress, task.Status)
	assert.Equal(t, TaskInProgress, task.History[1].Status)
	assert.Equal(t, "conversation resolved", task.History[1].Message)
}

func TestTask_CloneIsDeep(t *testing.T) {
	orig := Task{ID: "t", SubtaskIDs: []string{"a"}, Dependencies: []string{"b"}}
	orig.Append(TaskPending, "created")

	c := orig.Clone()
	c.SubtaskIDs[0] = "x"
	c.Dependencies[0] = "y"
	c.History[0].Message = "z"

	assert.Equal(t, "a", orig.SubtaskIDs[0])
	assert.Equal(t, "b", orig.Dependencies[0])
	assert.Equal(t, "created", orig.History[0].Message)
}

func TestSortTasks(t *testing.T) {
	now := time.Now()
	mk := func(id string, at time.Time) Task {
		return Task{ID: id, History: []HistoryEntry{{Timestamp: at}}}
	}
	tasks := []Task{mk("c", now.Add(2*time.Second)), mk("a", now), mk("b", now.Add(time.Second))}
	SortTasks(tasks)
	assert.Equal(t, "a", tasks[0].ID)
	assert.Equal(t, "b", tasks[1].ID)
	assert.Equal(t, "c", tasks[2].ID)
}

func TestHasHistoryPrefix(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	base := []HistoryEntry{{Status: TaskPending, Timestamp: at, Message: "Task created."}}
	task := Task{History: append(slices.Clone(base), HistoryEntry{Status: TaskInProgress, Timestamp: at.Add(time.Second)})}

	assert.True(t, task.HasHistoryPrefix(base))
	assert.True(t, task.HasHistoryPrefix(nil))
	assert.False(t, Task{}.HasHistoryPrefix(base))

	moved := slices.Clone(base)
	moved[0].Timestamp = at.Add(-time.Minute)
	assert.False(t, task.HasHistoryPrefix(moved))
}

func TestIsComplete(t *testing.T) {
	assert.False(t, IsComplete(nil))
	assert.True(t, IsComplete([]Task{{Status: TaskCompleted}, {Status: TaskFailed}}))
	assert.False(t, IsComplete([]Task{{Status: TaskCompleted}, {Status: TaskAwaitingInput}}))
}

func TestServiceError(t *testing.T) {
	err := NewServiceError("openai", assert.AnError)
	assert.ErrorIs(t, err, ErrReasoningService)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "openai")
}

func TestCallLimiter(t *testing.T) {
	l := NewCallLimiter(2)
	require.NoError(t, l.Acquire())
	require.NoError(t, l.Acquire())
	assert.ErrorIs(t, l.Acquire(), ErrCallLimit)
	l.Fail()
	calls, failed := l.Counts()
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, failed)
	l.Reset()
	assert.Equal(t, 2, l.Remaining())
}
