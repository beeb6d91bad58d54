package core

import "time"

// Subject classifies a mail.
type Subject string

const (
	SubjectNewTask              Subject = "NEW_TASK"
	SubjectTaskResult           Subject = "TASK_RESULT"
	SubjectEnvironmentEvent     Subject = "ENVIRONMENT_EVENT"
	SubjectConversationStart    Subject = "CONVERSATION_START"
	SubjectConversationMessage  Subject = "CONVERSATION_MESSAGE"
	SubjectConversationResolved Subject = "CONVERSATION_RESOLVED"
	SubjectMessage              Subject = "MESSAGE"
	SubjectSystemNotice         Subject = "SYSTEM_NOTICE"
)

// Mail is an addressed message between workers. Body holds a Task, Event,
// Conversation or a plain string depending on Subject.
type Mail struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Subject   Subject   `json:"subject"`
	Body      any       `json:"body,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Envelope is the caller supplied part of a mail; the router stamps id and timestamp.
type Envelope struct {
	From    string
	Subject Subject
	Body    any
}

// TaskBody returns the task carried by the mail, if any.
func (m Mail) TaskBody() (Task, bool) {
	switch b := m.Body.(type) {
	case Task:
		return b, true
	case *Task:
		if b != nil {
			return *b, true
		}
	}
	return Task{}, false
}

// EventBody returns the event carried by the mail, if any.
func (m Mail) EventBody() (Event, bool) {
	e, ok := m.Body.(Event)
	return e, ok
}

// ConversationBody returns the conversation carried by the mail, if any.
func (m Mail) ConversationBody() (Conversation, bool) {
	c, ok := m.Body.(Conversation)
	return c, ok
}

// Text returns the body as text when it is a string.
func (m Mail) Text() string {
	s, _ := m.Body.(string)
	return s
}
