// Package environment holds the shared key/value state of the simulated
// workplaces. Workers bound to the same environment observe each other's
// changes through broadcast events.
package environment

import (
	"fmt"
	"sync"

	"github.com/hupe1980/agentorg/core"
)

// Environment is one shared workplace.
type Environment struct {
	ID          string
	Description string
	initial     core.EnvironmentState
	state       core.EnvironmentState
}

// Registry is a process‑local set of environments keyed by id.
//
// Concurrency: protected by RWMutex. All returned states are copies.
type Registry struct {
	mu   sync.RWMutex
	envs map[string]*Environment
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{envs: map[string]*Environment{}}
}

// Add registers an environment with its initial state, replacing any previous one.
func (r *Registry) Add(id, description string, initial map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envs[id] = &Environment{
		ID:          id,
		Description: description,
		initial:     core.EnvironmentState(initial).Clone(),
		state:       core.EnvironmentState(initial).Clone(),
	}
}

// Has reports whether id is known.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.envs[id]
	return ok
}

// State returns a copy of the environment's state.
func (r *Registry) State(id string) (core.EnvironmentState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	env, ok := r.envs[id]
	if !ok {
		return nil, false
	}
	return env.state.Clone(), true
}

// Apply merges delta into the environment's state and returns the new state.
// A nil value deletes the key.
func (r *Registry) Apply(id string, delta map[string]any) (core.EnvironmentState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	env, ok := r.envs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownEnvironment, id)
	}
	for k, v := range delta {
		if v == nil {
			delete(env.state, k)
			continue
		}
		env.state[k] = v
	}
	return env.state.Clone(), nil
}

// Set replaces the environment's state.
func (r *Registry) Set(id string, state core.EnvironmentState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	env, ok := r.envs[id]
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrUnknownEnvironment, id)
	}
	env.state = state.Clone()
	return nil
}

// Snapshot returns a copy of every environment state keyed by id.
func (r *Registry) Snapshot() map[string]core.EnvironmentState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]core.EnvironmentState, len(r.envs))
	for id, env := range r.envs {
		out[id] = env.state.Clone()
	}
	return out
}

// Reset restores every environment to its initial state.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, env := range r.envs {
		env.state = env.initial.Clone()
	}
}
