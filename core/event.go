package core

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// Event is an occurrence inside an environment (or a diagnostic emitted by
// the orchestrator) that is forwarded to the event listener and broadcast to
// co-located workers.
type Event struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	EnvironmentID string         `json:"environment_id,omitempty"`
	Source        string         `json:"source,omitempty"`
	Data          map[string]any `json:"data,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

// NewEvent creates an event stamped with a fresh id and the current UTC time.
func NewEvent(name, source string, data map[string]any) Event {
	return Event{ID: NewID(), Name: name, Source: source, Data: maps.Clone(data), Timestamp: time.Now().UTC()}
}

// NewID returns a new random identifier.
func NewID() string { return uuid.NewString() }

// EnvironmentState is the free-form key/value state of an environment.
type EnvironmentState map[string]any

// Clone returns a shallow copy of the state.
func (s EnvironmentState) Clone() EnvironmentState {
	if s == nil {
		return EnvironmentState{}
	}
	return maps.Clone(s)
}

// HumanInputRequest is an outstanding question a worker has asked a human.
type HumanInputRequest struct {
	ID         string    `json:"id"`
	TaskID     string    `json:"task_id"`
	WorkerName string    `json:"worker_name"`
	Question   string    `json:"question"`
	CreatedAt  time.Time `json:"created_at"`
}
