// Package snapshot persists the observable state of a simulation run so it
// can be inspected after the process exits.
package snapshot

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/agentorg/core"
)

// ErrNotFound is returned when no snapshot exists for a run.
var ErrNotFound = errors.New("snapshot not found")

// Snapshot is the complete observable state of one run. Mail bodies and
// event data survive a storage round trip as decoded JSON values.
type Snapshot struct {
	RunID         string                           `json:"run_id"`
	Goal          string                           `json:"goal"`
	Tasks         []core.Task                      `json:"tasks"`
	Mail          []core.Mail                      `json:"mail"`
	Events        []core.Event                     `json:"events"`
	Conversations []core.Conversation              `json:"conversations"`
	Environments  map[string]core.EnvironmentState `json:"environments"`
	HumanInput    []core.HumanInputRequest         `json:"human_input"`
	Complete      bool                             `json:"complete"`
	SavedAt       time.Time                        `json:"saved_at"`
}

// Clone returns a copy that shares no slices or maps with s.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Tasks = make([]core.Task, len(s.Tasks))
	for i, t := range s.Tasks {
		out.Tasks[i] = t.Clone()
	}
	out.Mail = slices.Clone(s.Mail)
	out.Events = slices.Clone(s.Events)
	out.Conversations = make([]core.Conversation, len(s.Conversations))
	for i, c := range s.Conversations {
		out.Conversations[i] = c.Clone()
	}
	out.Environments = make(map[string]core.EnvironmentState, len(s.Environments))
	for id, st := range s.Environments {
		out.Environments[id] = st.Clone()
	}
	out.HumanInput = slices.Clone(s.HumanInput)
	return out
}

// Summary describes a stored run.
type Summary struct {
	RunID    string    `json:"run_id"`
	Goal     string    `json:"goal"`
	Tasks    int       `json:"tasks"`
	Complete bool      `json:"complete"`
	SavedAt  time.Time `json:"saved_at"`
}

// Summary returns the summary of s.
func (s Snapshot) Summary() Summary {
	return Summary{RunID: s.RunID, Goal: s.Goal, Tasks: len(s.Tasks), Complete: s.Complete, SavedAt: s.SavedAt}
}

// Store persists snapshots keyed by run id. Saving a run again replaces it.
type Store interface {
	Save(ctx context.Context, s Snapshot) error
	Load(ctx context.Context, runID string) (Snapshot, error)
	List(ctx context.Context) ([]Summary, error)
}

// InMemoryStore is a volatile Store storing snapshots in a process local
// map. It is safe for concurrent access; stored and returned snapshots are
// cloned.
type InMemoryStore struct {
	mu    sync.RWMutex
	items map[string]Snapshot
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{items: map[string]Snapshot{}}
}

// Save stores a clone of s.
func (m *InMemoryStore) Save(_ context.Context, s Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[s.RunID] = s.Clone()
	return nil
}

// Load returns a clone of the snapshot of runID.
func (m *InMemoryStore) Load(_ context.Context, runID string) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.items[runID]
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return s.Clone(), nil
}

// List returns the stored runs, most recently saved first.
func (m *InMemoryStore) List(_ context.Context) ([]Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Summary, 0, len(m.items))
	for _, id := range slices.Sorted(maps.Keys(m.items)) {
		out = append(out, m.items[id].Summary())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SavedAt.After(out[j].SavedAt) })
	return out, nil
}
