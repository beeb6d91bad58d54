package reasoner

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentorg/core"
	"github.com/hupe1980/agentorg/model"
)

func sampleRequest() core.ReasoningRequest {
	return core.ReasoningRequest{
		Version:      core.DecisionVersion,
		Worker:       "Editor",
		Role:         core.Role{Name: "Editor", Description: "Polishes manuscripts"},
		Supervisor:   "Publisher",
		TaskID:       "t1",
		Goal:         "edit the book",
		Trigger:      core.Mail{Subject: core.SubjectNewTask},
		Subordinates: []string{"Writer"},
	}
}

func TestModelReasoner_FunctionCalls(t *testing.T) {
	m := model.NewMockModel("mock").AddCalls(
		model.FunctionCall{Name: "delegate", Arguments: `{"subtasks":[{"assignee":"Writer","goal":"write"}]}`},
		model.FunctionCall{Name: "fail_task", Arguments: `{}`},
		model.FunctionCall{Name: "no_such_tool", Arguments: `{}`},
	)
	r := NewModel(m)

	d, err := r.Reason(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.Len(t, d.Effects, 1)
	del, ok := d.Effects[0].(core.DelegateEffect)
	require.True(t, ok)
	assert.Equal(t, "Writer", del.Subtasks[0].Assignee)

	reqs := m.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Instructions, "You are Editor")
	assert.Contains(t, reqs[0].Instructions, "Polishes manuscripts")
	assert.Contains(t, reqs[0].Instructions, "You report to Publisher")
	assert.Contains(t, reqs[0].Instructions, "Writer")
	assert.NotEmpty(t, reqs[0].Tools)

	var payload core.ReasoningRequest
	require.NoError(t, json.Unmarshal([]byte(reqs[0].Contents[0].Text()), &payload))
	assert.Equal(t, "edit the book", payload.Goal)
}

func TestModelReasoner_JSONTextFallback(t *testing.T) {
	m := model.NewMockModel("mock").AddText("Here is my plan:\n```json\n" +
		`{"thought":"finish","effects":[{"kind":"complete_task","args":{"result":"done"}}]}` + "\n```")
	r := NewModel(m)

	d, err := r.Reason(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.Len(t, d.Effects, 1)
	assert.Equal(t, core.CompleteEffect{Result: "done"}, d.Effects[0])
	assert.Equal(t, "finish", d.Thought)
}

func TestModelReasoner_PlainTextWaits(t *testing.T) {
	r := NewModel(model.NewMockModel("mock").AddText("Let me think about it."))

	d, err := r.Reason(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.Len(t, d.Effects, 1)
	assert.IsType(t, core.WaitEffect{}, d.Effects[0])
	assert.Equal(t, "Let me think about it.", d.Thought)
}

func TestModelReasoner_ServiceErrors(t *testing.T) {
	limiter := core.NewCallLimiter(2)
	m := model.NewMockModel("mock").AddError(errors.New("unavailable"))
	r := NewModel(m, func(o *ModelOptions) { o.Limiter = limiter })

	_, err := r.Reason(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrReasoningService)
	var se *core.ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "mock", se.Provider)

	_, err = r.Reason(context.Background(), sampleRequest())
	require.NoError(t, err)

	_, err = r.Reason(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, core.ErrCallLimit)
	assert.ErrorIs(t, err, core.ErrReasoningService)

	calls, failed := limiter.Counts()
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, failed)
}

func TestHeuristic(t *testing.T) {
	h := NewHeuristic()
	ctx := context.Background()

	t.Run("delegates to every subordinate", func(t *testing.T) {
		req := sampleRequest()
		req.Subordinates = []string{"Writer", "Proofreader"}
		d, err := h.Reason(ctx, req)
		require.NoError(t, err)
		del := d.Effects[0].(core.DelegateEffect)
		require.Len(t, del.Subtasks, 2)
		assert.Equal(t, "Proofreader", del.Subtasks[1].Assignee)
	})

	t.Run("leaf completes", func(t *testing.T) {
		req := sampleRequest()
		req.Subordinates = nil
		d, err := h.Reason(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, core.CompleteEffect{Result: "Done: edit the book"}, d.Effects[0])
	})

	t.Run("waits for running subtasks", func(t *testing.T) {
		req := sampleRequest()
		req.Trigger.Subject = core.SubjectTaskResult
		req.Subtasks = []core.TaskSummary{{Status: core.TaskCompleted, Result: "a"}, {Status: core.TaskInProgress}}
		d, err := h.Reason(ctx, req)
		require.NoError(t, err)
		assert.IsType(t, core.WaitEffect{}, d.Effects[0])
	})

	t.Run("completes with joined results", func(t *testing.T) {
		req := sampleRequest()
		req.Trigger.Subject = core.SubjectTaskResult
		req.Subtasks = []core.TaskSummary{{Status: core.TaskCompleted, Result: "a"}, {Status: core.TaskCompleted, Result: "b"}}
		d, err := h.Reason(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, core.CompleteEffect{Result: "a; b"}, d.Effects[0])
	})

	t.Run("fails when a subtask failed", func(t *testing.T) {
		req := sampleRequest()
		req.Trigger.Subject = core.SubjectTaskResult
		req.Subtasks = []core.TaskSummary{{Goal: "x", Status: core.TaskFailed, Result: "no ink"}}
		d, err := h.Reason(ctx, req)
		require.NoError(t, err)
		fail := d.Effects[0].(core.FailEffect)
		assert.Contains(t, fail.Reason, "no ink")
	})
}

func TestHeuristic_SOPAndQuestions(t *testing.T) {
	h := NewHeuristic(func(o *HeuristicOptions) {
		o.SOPs = map[string]string{"Editor": "picture_book"}
		o.Questions = map[string]string{"Editor": "Which age group?"}
	})
	ctx := context.Background()

	d, err := h.Reason(ctx, sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, core.RequestHumanInputEffect{Question: "Which age group?"}, d.Effects[0])

	d, err = h.Reason(ctx, sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, core.UseSOPEffect{Name: "picture_book", Context: "edit the book"}, d.Effects[0])

	req := sampleRequest()
	req.Trigger.Subject = core.SubjectSystemNotice
	d, err = h.Reason(ctx, req)
	require.NoError(t, err)
	assert.IsType(t, core.DelegateEffect{}, d.Effects[0])
}

func TestFunc(t *testing.T) {
	var r core.Reasoner = Func(func(_ context.Context, req core.ReasoningRequest) (core.Decision, error) {
		return core.Decision{Thought: req.Worker}, nil
	})
	d, err := r.Reason(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "Editor", d.Thought)
}
