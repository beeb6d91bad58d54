package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type subtaskArgs struct {
	Assignee string   `json:"assignee" description:"subordinate name"`
	Goal     string   `json:"goal"`
	Deps     []string `json:"depends_on,omitempty"`
}

type delegateArgs struct {
	Subtasks []subtaskArgs `json:"subtasks"`
}

func TestCreateSchema_Nested(t *testing.T) {
	schema := CreateSchema(delegateArgs{})
	assert.Equal(t, []string{"subtasks"}, schema["required"])

	props := schema["properties"].(map[string]any)
	subtasks := props["subtasks"].(map[string]any)
	assert.Equal(t, "array", subtasks["type"])

	items := subtasks["items"].(map[string]any)
	itemProps := items["properties"].(map[string]any)
	assert.Equal(t, "subordinate name", itemProps["assignee"].(map[string]any)["description"])
	assert.Equal(t, []string{"assignee", "goal"}, items["required"])
}

func TestValidateParameters(t *testing.T) {
	schema := CreateSchema(subtaskArgs{})

	err := ValidateParameters(map[string]any{"assignee": "Writer"}, schema)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "goal", verr.Field)

	err = ValidateParameters(map[string]any{"assignee": "Writer", "goal": 3.0}, schema)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "goal", verr.Field)

	assert.NoError(t, ValidateParameters(map[string]any{"assignee": "Writer", "goal": "draft", "extra": true}, schema))
}

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("Outline {{.goal}} (step {{.step}})", map[string]any{"goal": "a fable", "step": 1})
	require.NoError(t, err)
	assert.Equal(t, "Outline a fable (step 1)", out)

	out, err = RenderTemplate("plain & simple", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain & simple", out)

	_, err = RenderTemplate("{{.goal", nil)
	assert.Error(t, err)
}
