package environment

import (
	"testing"

	"github.com/hupe1980/agentorg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_ApplyAndCopies(t *testing.T) {
	r := NewRegistry()
	r.Add("lab", "Research lab", map[string]any{"temperature": 21})

	state, err := r.Apply("lab", map[string]any{"door": "open"})
	require.NoError(t, err)
	assert.Equal(t, core.EnvironmentState{"temperature": 21, "door": "open"}, state)

	state["door"] = "mutated"
	got, ok := r.State("lab")
	require.True(t, ok)
	assert.Equal(t, "open", got["door"])

	_, err = r.Apply("lab", map[string]any{"door": nil})
	require.NoError(t, err)
	got, _ = r.State("lab")
	assert.NotContains(t, got, "door")
}

func TestRegistry_UnknownEnvironment(t *testing.T) {
	r := NewRegistry()
	_, err := r.Apply("nowhere", map[string]any{"x": 1})
	assert.ErrorIs(t, err, core.ErrUnknownEnvironment)
	_, ok := r.State("nowhere")
	assert.False(t, ok)
}

func TestRegistry_SnapshotAndReset(t *testing.T) {
	r := NewRegistry()
	r.Add("office", "", map[string]any{"coffee": "full"})
	r.Add("lab", "", nil)
	assert.True(t, r.Has("lab"))
	assert.True(t, r.Has("office"))
	assert.False(t, r.Has("yard"))

	_, _ = r.Apply("office", map[string]any{"coffee": "empty"})
	snap := r.Snapshot()
	assert.Equal(t, "empty", snap["office"]["coffee"])
	assert.Empty(t, snap["lab"])

	r.Reset()
	state, _ := r.State("office")
	assert.Equal(t, "full", state["coffee"])
}

func TestRegistry_Set(t *testing.T) {
	r := NewRegistry()
	r.Add("office", "", map[string]any{"coffee": "full"})

	require.NoError(t, r.Set("office", core.EnvironmentState{"printer": "jammed"}))
	state, _ := r.State("office")
	assert.Equal(t, core.EnvironmentState{"printer": "jammed"}, state)

	assert.ErrorIs(t, r.Set("nowhere", nil), core.ErrUnknownEnvironment)
}
