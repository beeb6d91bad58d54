// Package workflow stores standard operating procedures (SOPs) and turns them
// into ordered task drafts for a concrete goal.
package workflow

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/hupe1980/agentorg/core"
	"github.com/hupe1980/agentorg/internal/util"
)

// Step is one templated step of an SOP. Goal may reference {{.goal}},
// {{.step}} and {{.sop}}; Role names the role expected to carry it out.
type Step struct {
	Goal string `json:"goal" yaml:"goal"`
	Role string `json:"role,omitempty" yaml:"role"`
}

// SOP is a named, ordered procedure.
type SOP struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description"`
	Steps       []Step `json:"steps" yaml:"steps"`
}

// TaskDraft is a step bound to a concrete context, ready to become a task.
type TaskDraft struct {
	Step int    `json:"step"` // 1-based
	Goal string `json:"goal"`
	Role string `json:"role,omitempty"`
	// DependsOn is the 1-based step this draft waits for, or 0.
	DependsOn int `json:"depends_on,omitempty"`
}

// Manager is the SOP library.
type Manager struct {
	mu   sync.RWMutex
	sops map[string]SOP
}

// NewManager creates a library holding sops.
func NewManager(sops ...SOP) *Manager {
	m := &Manager{sops: map[string]SOP{}}
	m.Load(sops...)
	return m
}

// Load adds or replaces SOPs by name.
func (m *Manager) Load(sops ...SOP) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range sops {
		s.Steps = slices.Clone(s.Steps)
		m.sops[s.Name] = s
	}
}

// Names returns SOP names in sorted order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.sops))
}

// Get returns a copy of the named SOP.
func (m *Manager) Get(name string) (SOP, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sops[name]
	if !ok {
		return SOP{}, false
	}
	s.Steps = slices.Clone(s.Steps)
	return s, true
}

// Instantiate binds the named SOP to context and returns one draft per step
// in declared order, each depending on the previous one. Steps without
// template markers get the context appended.
func (m *Manager) Instantiate(name, context string) ([]TaskDraft, error) {
	sop, ok := m.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrSOPNotFound, name)
	}
	drafts := make([]TaskDraft, 0, len(sop.Steps))
	for i, step := range sop.Steps {
		goal, err := bind(step.Goal, context, sop.Name, i+1)
		if err != nil {
			return nil, fmt.Errorf("sop %s step %d: %w", sop.Name, i+1, err)
		}
		drafts = append(drafts, TaskDraft{Step: i + 1, Goal: goal, Role: step.Role, DependsOn: i})
	}
	return drafts, nil
}

func bind(goal, context, sop string, step int) (string, error) {
	if !util.HasTemplate(goal) {
		if context == "" {
			return goal, nil
		}
		return goal + " (for: " + context + ")", nil
	}
	return util.RenderTemplate(goal, map[string]any{"goal": context, "step": step, "sop": sop})
}
