package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentorg/core"
	"github.com/hupe1980/agentorg/internal/testutil"
	"github.com/hupe1980/agentorg/snapshot"
)

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "runs.db"))
	require.NoError(t, err)
	defer s.Close()

	task := testutil.NewTaskBuilder().Goal("publish").Assignee("Publisher").Status(core.TaskCompleted).Build()
	snap := snapshot.Snapshot{
		RunID:        "run-1",
		Goal:         "publish",
		Tasks:        []core.Task{task},
		Mail:         []core.Mail{{ID: "m1", From: "System", To: "Publisher", Subject: core.SubjectNewTask, Body: "hello"}},
		Environments: map[string]core.EnvironmentState{"office": {"draft": "v1"}},
		Complete:     true,
		SavedAt:      time.Now().UTC(),
	}
	require.NoError(t, s.Save(ctx, snap))

	got, err := s.Load(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got.Tasks, 1)
	assert.Equal(t, task.ID, got.Tasks[0].ID)
	assert.Equal(t, core.TaskCompleted, got.Tasks[0].Status)
	assert.Equal(t, "hello", got.Mail[0].Text())
	assert.Equal(t, "v1", got.Environments["office"]["draft"])
	assert.True(t, got.Complete)

	snap.Goal = "publish again"
	snap.SavedAt = snap.SavedAt.Add(time.Second)
	require.NoError(t, s.Save(ctx, snap))
	require.NoError(t, s.Save(ctx, snapshot.Snapshot{RunID: "run-0", Goal: "older", SavedAt: snap.SavedAt.Add(-time.Hour)}))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "run-1", list[0].RunID)
	assert.Equal(t, "publish again", list[0].Goal)
	assert.Equal(t, 1, list[0].Tasks)

	_, err = s.Load(ctx, "missing")
	assert.ErrorIs(t, err, snapshot.ErrNotFound)
}

func TestStore_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, snapshot.Snapshot{RunID: "r", Goal: "g", SavedAt: time.Now()}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Load(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, "g", got.Goal)
}
