package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentorg/model"
)

func TestBuildParams(t *testing.T) {
	m := NewModel(func(o *Options) {
		o.APIKey = "test"
		o.Model = "gpt-4o"
	})
	params := m.buildParams(model.Request{
		Instructions: "You are Editor.",
		Contents: []model.Content{
			model.NewUserContent("edit the book"),
			{Role: "assistant", Parts: []model.Part{model.TextPart{Text: "ok"}}},
			{Role: "user"},
		},
		Tools: []model.ToolDefinition{{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        "delegate",
				Description: "Assign subtasks",
				Parameters:  map[string]any{"type": "object"},
			},
		}},
	})

	assert.Equal(t, "gpt-4o", params.Model)
	require.Len(t, params.Messages, 3)
	require.NotNil(t, params.Messages[0].OfSystem)
	require.NotNil(t, params.Messages[1].OfUser)
	require.NotNil(t, params.Messages[2].OfAssistant)
	require.Len(t, params.Tools, 1)
	assert.Equal(t, "delegate", params.Tools[0].Function.Name)
}

func TestBuildParams_NoTools(t *testing.T) {
	m := NewModel(func(o *Options) { o.APIKey = "test" })
	params := m.buildParams(model.Request{Contents: []model.Content{model.NewUserContent("hi")}})
	assert.Empty(t, params.Tools)
	assert.Equal(t, "openai", m.Info().Provider)
}
