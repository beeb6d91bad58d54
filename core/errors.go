package core

import (
	"errors"
	"fmt"
)

var (
	ErrTaskNotFound         = errors.New("task not found")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrHistoryRewrite       = errors.New("task history is append-only")
	ErrDependenciesUnmet    = errors.New("dependencies not met")
	ErrNoAssignee           = errors.New("task has no assignee")
	ErrRetryLimit           = errors.New("retry limit reached")
	ErrStale                = errors.New("stale effect")
	ErrUnknownWorker        = errors.New("unknown worker")
	ErrUnknownEnvironment   = errors.New("unknown environment")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrConversationResolved = errors.New("conversation already resolved")
	ErrNotParticipant       = errors.New("speaker is not a participant")
	ErrSOPNotFound          = errors.New("sop not found")
	ErrRequestNotFound      = errors.New("human input request not found")
	ErrReasoningService     = errors.New("reasoning service error")
	ErrCallLimit            = errors.New("reasoning call limit exceeded")
)

// ServiceError wraps a transport level failure of the reasoning capability.
// It is distinct from a worker deciding that its task failed.
type ServiceError struct {
	Provider string
	Err      error
}

func (e *ServiceError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("reasoning service: %v", e.Err)
	}
	return fmt.Sprintf("reasoning service %s: %v", e.Provider, e.Err)
}

// Unwrap exposes both the sentinel and the cause to errors.Is.
func (e *ServiceError) Unwrap() []error { return []error{ErrReasoningService, e.Err} }

// NewServiceError wraps err as a ServiceError.
func NewServiceError(provider string, err error) error {
	return &ServiceError{Provider: provider, Err: err}
}
