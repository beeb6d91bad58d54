package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hupe1980/agentorg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_ReasoningCounts(t *testing.T) {
	r := NewNoop()
	require.NotNil(t, r)

	ctx := context.Background()
	r.ReasoningCall(ctx, "Editor", time.Millisecond, nil)
	r.ReasoningCall(ctx, "Editor", time.Millisecond, errors.New("timeout"))
	r.TaskCreated(ctx)
	r.MailSent(ctx, core.SubjectNewTask, true)

	calls, failed := r.ReasoningCounts()
	assert.Equal(t, int64(2), calls)
	assert.Equal(t, int64(1), failed)

	r.Reset()
	calls, _ = r.ReasoningCounts()
	assert.Zero(t, calls)
}

func TestRecorder_NilIsSafe(t *testing.T) {
	var r *Recorder
	r.TaskCreated(context.Background())
	r.ReasoningCall(context.Background(), "x", 0, nil)
	calls, failed := r.ReasoningCounts()
	assert.Zero(t, calls)
	assert.Zero(t, failed)
}

func TestBuildReport(t *testing.T) {
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Second)
	tasks := []core.Task{
		{Status: core.TaskCompleted},
		{Status: core.TaskCompleted},
		{Status: core.TaskFailed},
		{Status: core.TaskAwaitingInput},
	}

	r := BuildReport(start, end, tasks, 7, 1)
	assert.Equal(t, 4, r.TotalTasks)
	assert.Equal(t, 2, r.CompletedTasks)
	assert.Equal(t, 1, r.FailedTasks)
	assert.Equal(t, 1, r.PendingTasks)
	assert.Equal(t, 90*time.Second, r.Duration)
	assert.InDelta(t, 0.5, r.SuccessRate(), 1e-9)
	assert.Contains(t, r.String(), "reasoning_calls=7")
	assert.Equal(t, -1, r.CallsRemaining)
}
