package orchestrator

import (
	"github.com/hupe1980/agentorg/core"
	"github.com/hupe1980/agentorg/logging"
	"github.com/hupe1980/agentorg/metrics"
)

// RetryPolicy bounds RetryTask. MaxAttempts == 0 means unbounded.
type RetryPolicy struct {
	MaxAttempts int
}

// Options configures an Orchestrator using the functional options pattern.
//
// Listener callbacks receive complete snapshots. They are invoked without
// any orchestrator lock held but must not block for long, since the
// goroutine that triggered the change waits for them.
type Options struct {
	Logger  logging.Logger
	Metrics *metrics.Recorder

	// MaxConcurrentReasoning bounds how many workers may wait on the
	// reasoner at once. Defaults to 1, which serializes reasoning calls
	// across the whole organization: a slow call delays every other worker's
	// next decision, though mail routing and task bookkeeping keep running.
	// Raise it when the reasoner tolerates parallel requests.
	MaxConcurrentReasoning int64
	// MaxConversationTurns resolves conversations automatically once they
	// reach this many messages. Zero disables the limit.
	MaxConversationTurns int
	// MailboxSize is the number of recent mails each worker hands to reasoning.
	MailboxSize int
	Retry       RetryPolicy
	// KeepEnvironments carries environment state over into the next RunGoal
	// instead of restoring the configured initial state.
	KeepEnvironments bool

	OnTasks         func(tasks []core.Task)
	OnEnvironments  func(states map[string]core.EnvironmentState)
	OnConversations func(convs []core.Conversation)
	OnEvent         func(ev core.Event)
	OnMail          func(m core.Mail)
	OnHumanInput    func(pending []core.HumanInputRequest)
	OnThinking      func(worker string, thinking bool)
}

// DefaultOptions returns the defaults applied before option functions run.
func DefaultOptions() Options {
	return Options{
		Logger:                 logging.NoOpLogger{},
		MaxConcurrentReasoning: 1,
		MailboxSize:            20,
	}
}
