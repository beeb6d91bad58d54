package testutil

import (
	"slices"
	"sync"

	"github.com/hupe1980/agentorg/core"
)

// Recorder captures listener notifications. Its methods can be assigned
// directly to the listener callbacks of an orchestrator.
type Recorder struct {
	mu            sync.Mutex
	taskSnapshots [][]core.Task
	events        []core.Event
	mails         []core.Mail
	convs         []core.Conversation
	envs          map[string]core.EnvironmentState
	human         []core.HumanInputRequest
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// OnTasks records a task snapshot.
func (r *Recorder) OnTasks(tasks []core.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.taskSnapshots = append(r.taskSnapshots, tasks)
}

// OnEvent records an event.
func (r *Recorder) OnEvent(ev core.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// OnMail records a mail.
func (r *Recorder) OnMail(m core.Mail) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mails = append(r.mails, m)
}

// OnConversations records the latest conversation snapshot.
func (r *Recorder) OnConversations(convs []core.Conversation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.convs = convs
}

// OnEnvironments records the latest environment snapshot.
func (r *Recorder) OnEnvironments(envs map[string]core.EnvironmentState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envs = envs
}

// OnHumanInput records the latest pending human input.
func (r *Recorder) OnHumanInput(pending []core.HumanInputRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.human = pending
}

// TaskSnapshots returns every task snapshot received.
func (r *Recorder) TaskSnapshots() [][]core.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.taskSnapshots)
}

// Tasks returns the latest task snapshot.
func (r *Recorder) Tasks() []core.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.taskSnapshots) == 0 {
		return nil
	}
	return r.taskSnapshots[len(r.taskSnapshots)-1]
}

// Events returns the events received.
func (r *Recorder) Events() []core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// EventNames returns the names of the events received.
func (r *Recorder) EventNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.events))
	for i, e := range r.events {
		names[i] = e.Name
	}
	return names
}

// Mails returns the mails received.
func (r *Recorder) Mails() []core.Mail {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.mails)
}

// MailsTo returns the mails addressed to name with the given subject.
func (r *Recorder) MailsTo(name string, subject core.Subject) []core.Mail {
	var out []core.Mail
	for _, m := range r.Mails() {
		if m.To == name && m.Subject == subject {
			out = append(out, m)
		}
	}
	return out
}

// Conversations returns the latest conversation snapshot.
func (r *Recorder) Conversations() []core.Conversation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.convs)
}

// Environments returns the latest environment snapshot.
func (r *Recorder) Environments() map[string]core.EnvironmentState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.envs
}

// HumanInput returns the latest pending human input.
func (r *Recorder) HumanInput() []core.HumanInputRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.human)
}

// Complete reports whether the latest task snapshot is non-empty and fully terminal.
func (r *Recorder) Complete() bool {
	return core.IsComplete(r.Tasks())
}
