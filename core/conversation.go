package core

import (
	"slices"
	"time"
)

// ConversationStatus is the lifecycle state of a conversation.
type ConversationStatus string

const (
	ConversationActive   ConversationStatus = "ACTIVE"
	ConversationResolved ConversationStatus = "RESOLVED"
)

// ConversationMessage is one contribution to a conversation.
type ConversationMessage struct {
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is a multi-party discussion among workers. Once RESOLVED its
// history is frozen.
type Conversation struct {
	ID           string                `json:"id"`
	Topic        string                `json:"topic"`
	Initiator    string                `json:"initiator"`
	Participants []string              `json:"participants"`
	History      []ConversationMessage `json:"history"`
	Status       ConversationStatus    `json:"status"`
	TaskID       string                `json:"task_id,omitempty"`
	Summary      string                `json:"summary,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
	ResolvedAt   time.Time             `json:"resolved_at,omitzero"`
}

// HasParticipant reports whether name takes part in the conversation.
func (c Conversation) HasParticipant(name string) bool {
	return slices.Contains(c.Participants, name)
}

// Clone returns a deep copy of the conversation.
func (c Conversation) Clone() Conversation {
	c.Participants = slices.Clone(c.Participants)
	c.History = slices.Clone(c.History)
	return c
}
