package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "Storybook Press", cfg.Name)
	assert.Empty(t, cfg.Validate())

	workers, issues := cfg.Flatten()
	require.Empty(t, issues)
	require.Len(t, workers, 5)
	assert.Equal(t, "Publisher", workers[0].Name)
	assert.Equal(t, []string{"Editor", "ArtDirector"}, workers[0].Subordinates)
	assert.Equal(t, "Publisher", workers[1].Supervisor)
	assert.Equal(t, "Editor", workers[2].Supervisor)
	assert.Len(t, cfg.SOPs, 1)
	assert.Len(t, cfg.SOPs[0].Steps, 2)
}

func TestFlatten_ReportsProblemsButKeepsWorkers(t *testing.T) {
	cfg, err := Parse([]byte(`
name: Broken
root:
  name: Boss
  subordinates:
    - name: Alice
      environment: moon
    - name: Alice
    - name: Bob
      subordinates:
        - name: Boss
environments:
  - id: lab
  - id: lab
sops:
  - name: empty
`))
	require.NoError(t, err)

	workers, issues := cfg.Flatten()
	kinds := map[IssueKind]int{}
	for _, i := range issues {
		kinds[i.Kind]++
	}
	assert.Equal(t, 1, kinds[IssueUnknownEnvironment])
	assert.Equal(t, 1, kinds[IssueDuplicateWorker])
	assert.Equal(t, 1, kinds[IssueCycle])
	assert.Equal(t, 1, kinds[IssueDuplicateEnv])
	assert.Equal(t, 1, kinds[IssueEmptySOP])

	var names []string
	for _, w := range workers {
		names = append(names, w.Name)
	}
	assert.Equal(t, []string{"Boss", "Alice", "Alice", "Bob"}, names)
	assert.Empty(t, workers[3].Subordinates)
	assert.Error(t, issues.Err())
}

func TestFlatten_NoRoot(t *testing.T) {
	_, issues := OrgConfig{Name: "Empty"}.Flatten()
	require.Len(t, issues, 1)
	assert.Equal(t, IssueNoRoot, issues[0].Kind)
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte("root: [unclosed"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "org.yaml")
	require.NoError(t, os.WriteFile(path, []byte(DefaultOrgYAML), 0o600))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Publisher", cfg.Root.Name)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadSettings_DefaultsFileAndEnv(t *testing.T) {
	s, err := LoadSettings("")
	require.NoError(t, err)
	assert.Equal(t, "heuristic", s.Provider.Name)
	assert.Equal(t, 50, s.Limits.MaxReasoningCalls)
	assert.Equal(t, int64(1), s.Limits.MaxConcurrentReasoning)
	assert.Equal(t, 2*time.Second, s.Retry.Backoff)

	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("limits:\n  max_reasoning_calls: 10\nretry:\n  max_attempts: 3\n  backoff: 50ms\n"), 0o600))
	t.Setenv("AGENTORG_LOG_LEVEL", "debug")

	s, err = LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, 10, s.Limits.MaxReasoningCalls)
	assert.Equal(t, 3, s.Retry.MaxAttempts)
	assert.Equal(t, 50*time.Millisecond, s.Retry.Backoff)
	assert.Equal(t, "debug", s.Log.Level)
}

func TestLoadSettings_Invalid(t *testing.T) {
	t.Setenv("AGENTORG_PROVIDER_NAME", "oracle")
	_, err := LoadSettings("")
	assert.ErrorContains(t, err, "unknown provider")
}
