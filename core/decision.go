package core

import (
	"context"
	"errors"
	"fmt"
)

// DecisionVersion is the version of the reasoning request/decision contract.
const DecisionVersion = "v1"

// Role describes a worker's function in the organization.
type Role struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ReasoningRequest is everything a worker hands to the reasoning capability
// for one step.
type ReasoningRequest struct {
	Version       string           `json:"version"`
	Worker        string           `json:"worker"`
	Role          Role             `json:"role"`
	Supervisor    string           `json:"supervisor,omitempty"`
	TaskID        string           `json:"task_id,omitempty"`
	Goal          string           `json:"goal,omitempty"`
	Trigger       Mail             `json:"trigger"`
	Mailbox       []Mail           `json:"mailbox,omitempty"`
	Subordinates  []string         `json:"subordinates,omitempty"`
	Tools         []string         `json:"tools,omitempty"`
	Subtasks      []TaskSummary    `json:"subtasks,omitempty"`
	Conversations []Conversation   `json:"conversations,omitempty"`
	Environment   EnvironmentState `json:"environment,omitempty"`
	SOPs          []string         `json:"sops,omitempty"`
}

// Decision is the structured output of one reasoning step.
type Decision struct {
	Version string   `json:"version"`
	Thought string   `json:"thought,omitempty"`
	Effects []Effect `json:"-"`
}

// Reasoner is the external reasoning capability. A returned error means the
// service itself failed (see ServiceError); a worker deciding its task failed
// is expressed as a FailEffect instead.
type Reasoner interface {
	Reason(ctx context.Context, req ReasoningRequest) (Decision, error)
}

// Effect is one action decided by a worker. Concrete effect types implement
// the unexported isEffect marker enabling a closed set.
type Effect interface {
	isEffect()
	// Kind returns the stable effect name used on the wire.
	Kind() string
	// Validate performs structural checks.
	Validate() error
}

// SubtaskSpec describes one delegated subtask. DependsOn holds refs of
// sibling specs in the same delegation or ids of existing tasks.
type SubtaskSpec struct {
	Ref       string   `json:"ref,omitempty"`
	Assignee  string   `json:"assignee"`
	Goal      string   `json:"goal"`
	DependsOn []string `json:"depends_on,omitempty"`
}

// DelegateEffect creates subtasks for subordinates.
type DelegateEffect struct {
	Subtasks []SubtaskSpec `json:"subtasks"`
}

// CompleteEffect completes the current task.
type CompleteEffect struct {
	Result string `json:"result"`
}

// FailEffect fails the current task.
type FailEffect struct {
	Reason string `json:"reason"`
}

// StartConversationEffect opens a conversation.
type StartConversationEffect struct {
	Participants []string `json:"participants"`
	Topic        string   `json:"topic"`
	Opening      string   `json:"opening,omitempty"`
}

// ContributeEffect adds a message to a conversation.
type ContributeEffect struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

// ResolveConversationEffect resolves a conversation.
type ResolveConversationEffect struct {
	ConversationID string `json:"conversation_id"`
	Summary        string `json:"summary,omitempty"`
}

// UpdateEnvironmentEffect changes the worker's environment and broadcasts an event.
type UpdateEnvironmentEffect struct {
	Event   string         `json:"event"`
	Changes map[string]any `json:"changes"`
}

// RequestHumanInputEffect suspends the current task until a human answers.
type RequestHumanInputEffect struct {
	Question string `json:"question"`
}

// UseSOPEffect instantiates a standard operating procedure for the current task.
type UseSOPEffect struct {
	Name    string `json:"name"`
	Context string `json:"context,omitempty"`
}

// SendMessageEffect sends a free text mail to another worker.
type SendMessageEffect struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

// WaitEffect does nothing; it documents why the worker is idle.
type WaitEffect struct {
	Reason string `json:"reason,omitempty"`
}

func (DelegateEffect) isEffect()            {}
func (CompleteEffect) isEffect()            {}
func (FailEffect) isEffect()                {}
func (StartConversationEffect) isEffect()   {}
func (ContributeEffect) isEffect()          {}
func (ResolveConversationEffect) isEffect() {}
func (UpdateEnvironmentEffect) isEffect()   {}
func (RequestHumanInputEffect) isEffect()   {}
func (UseSOPEffect) isEffect()              {}
func (SendMessageEffect) isEffect()         {}
func (WaitEffect) isEffect()                {}

func (DelegateEffect) Kind() string            { return "delegate" }
func (CompleteEffect) Kind() string            { return "complete_task" }
func (FailEffect) Kind() string                { return "fail_task" }
func (StartConversationEffect) Kind() string   { return "start_conversation" }
func (ContributeEffect) Kind() string          { return "contribute" }
func (ResolveConversationEffect) Kind() string { return "resolve_conversation" }
func (UpdateEnvironmentEffect) Kind() string   { return "update_environment" }
func (RequestHumanInputEffect) Kind() string   { return "request_human_input" }
func (UseSOPEffect) Kind() string              { return "use_sop" }
func (SendMessageEffect) Kind() string         { return "send_message" }
func (WaitEffect) Kind() string                { return "wait" }

var errEmpty = errors.New("required field is empty")

func (e DelegateEffect) Validate() error {
	if len(e.Subtasks) == 0 {
		return fmt.Errorf("delegate: subtasks: %w", errEmpty)
	}
	refs := map[string]bool{}
	for i, s := range e.Subtasks {
		if s.Assignee == "" {
			return fmt.Errorf("delegate: subtask %d assignee: %w", i, errEmpty)
		}
		if s.Goal == "" {
			return fmt.Errorf("delegate: subtask %d goal: %w", i, errEmpty)
		}
		if s.Ref != "" {
			if refs[s.Ref] {
				return fmt.Errorf("delegate: duplicate ref %q", s.Ref)
			}
			refs[s.Ref] = true
		}
	}
	return nil
}

func (e CompleteEffect) Validate() error { return nil }

func (e FailEffect) Validate() error {
	if e.Reason == "" {
		return fmt.Errorf("fail_task: reason: %w", errEmpty)
	}
	return nil
}

func (e StartConversationEffect) Validate() error {
	if len(e.Participants) == 0 {
		return fmt.Errorf("start_conversation: participants: %w", errEmpty)
	}
	if e.Topic == "" {
		return fmt.Errorf("start_conversation: topic: %w", errEmpty)
	}
	return nil
}

func (e ContributeEffect) Validate() error {
	if e.ConversationID == "" || e.Message == "" {
		return fmt.Errorf("contribute: conversation_id and message: %w", errEmpty)
	}
	return nil
}

func (e ResolveConversationEffect) Validate() error {
	if e.ConversationID == "" {
		return fmt.Errorf("resolve_conversation: conversation_id: %w", errEmpty)
	}
	return nil
}

func (e UpdateEnvironmentEffect) Validate() error {
	if e.Event == "" {
		return fmt.Errorf("update_environment: event: %w", errEmpty)
	}
	return nil
}

func (e RequestHumanInputEffect) Validate() error {
	if e.Question == "" {
		return fmt.Errorf("request_human_input: question: %w", errEmpty)
	}
	return nil
}

func (e UseSOPEffect) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("use_sop: name: %w", errEmpty)
	}
	return nil
}

func (e SendMessageEffect) Validate() error {
	if e.To == "" || e.Text == "" {
		return fmt.Errorf("send_message: to and text: %w", errEmpty)
	}
	return nil
}

func (e WaitEffect) Validate() error { return nil }

// Validate checks the decision version and every effect.
func (d Decision) Validate() error {
	if d.Version != "" && d.Version != DecisionVersion {
		return fmt.Errorf("unsupported decision version %q", d.Version)
	}
	var errs []error
	for _, e := range d.Effects {
		if e == nil {
			errs = append(errs, errors.New("nil effect"))
			continue
		}
		if err := e.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
