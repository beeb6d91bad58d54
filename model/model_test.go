package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockModel_QueuedReplies(t *testing.T) {
	m := NewMockModel("test").
		AddCalls(FunctionCall{ID: "c1", Name: "complete_task", Arguments: `{"result":"ok"}`}).
		AddError(errors.New("boom"))

	resp, err := Collect(context.Background(), m, Request{Contents: []Content{NewUserContent("hi")}})
	require.NoError(t, err)
	calls := resp.Content.FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "complete_task", calls[0].Name)

	_, err = Collect(context.Background(), m, Request{})
	assert.EqualError(t, err, "boom")

	resp, err = Collect(context.Background(), m, Request{})
	require.NoError(t, err)
	assert.Equal(t, "Nothing to do yet.", resp.Content.Text())
	assert.Len(t, m.Requests(), 3)
}

func TestCollect_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Collect(ctx, NewMockModel("test"), Request{})
	assert.ErrorIs(t, err, context.Canceled)
}
