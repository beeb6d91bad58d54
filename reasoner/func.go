package reasoner

import (
	"context"

	"github.com/hupe1980/agentorg/core"
)

// Func is a functional adapter allowing ordinary functions to be used as reasoners.
type Func func(ctx context.Context, req core.ReasoningRequest) (core.Decision, error)

// Reason implements core.Reasoner.
func (f Func) Reason(ctx context.Context, req core.ReasoningRequest) (core.Decision, error) {
	return f(ctx, req)
}
