package anthropic

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentorg/model"
)

func text(role, s string) model.Content {
	return model.Content{Role: role, Parts: []model.Part{model.TextPart{Text: s}}}
}

func TestBedrockModel(t *testing.T) {
	assert.Equal(t, anthropic.Model("us.anthropic.claude-sonnet-4-20250514-v1:0"), BedrockModel(anthropic.ModelClaudeSonnet4_20250514))
	assert.Equal(t, anthropic.Model("custom-profile"), BedrockModel("custom-profile"))
}

func TestBuildMessages_SkipsEmptyAndMapsRoles(t *testing.T) {
	msgs := buildMessages([]model.Content{
		text("user", "hello"),
		text("assistant", ""),
		text("assistant", "hi"),
		text("system", "treated as user"),
	})
	require.Len(t, msgs, 3)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[0].Role)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[1].Role)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[2].Role)
}

func TestBuildTools(t *testing.T) {
	tools := buildTools([]model.ToolDefinition{{
		Type: "function",
		Function: model.FunctionDefinition{
			Name:        "complete_task",
			Description: "Finish the task",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"result": map[string]any{"type": "string"}},
				"required":   []any{"result"},
			},
		},
	}})
	require.Len(t, tools, 1)
	require.NotNil(t, tools[0].OfTool)
	assert.Equal(t, "complete_task", tools[0].OfTool.Name)
	assert.Equal(t, []string{"result"}, tools[0].OfTool.InputSchema.Required)
}

func TestInfo(t *testing.T) {
	m := NewModel(func(o *Options) { o.APIKey = "test" })
	assert.Equal(t, "anthropic", m.Info().Provider)
	assert.True(t, m.Info().SupportsTools)
}
