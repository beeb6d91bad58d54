package testutil

import (
	"context"
	"sync"

	"github.com/hupe1980/agentorg/core"
)

// DecideFunc produces a decision for one reasoning request.
type DecideFunc func(req core.ReasoningRequest) (core.Decision, error)

// ScriptedReasoner answers reasoning requests from per-worker functions or
// queues. Workers without a script wait. Safe for concurrent use.
type ScriptedReasoner struct {
	mu       sync.Mutex
	funcs    map[string]DecideFunc
	queues   map[string][]core.Decision
	requests []core.ReasoningRequest
}

// NewScriptedReasoner creates an empty script.
func NewScriptedReasoner() *ScriptedReasoner {
	return &ScriptedReasoner{funcs: map[string]DecideFunc{}, queues: map[string][]core.Decision{}}
}

// On registers fn for worker (chainable).
func (r *ScriptedReasoner) On(worker string, fn DecideFunc) *ScriptedReasoner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[worker] = fn
	return r
}

// Queue appends decisions returned to worker in order before its function is consulted (chainable).
func (r *ScriptedReasoner) Queue(worker string, effects ...core.Effect) *ScriptedReasoner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queues[worker] = append(r.queues[worker], core.Decision{Version: core.DecisionVersion, Effects: effects})
	return r
}

// Reason implements core.Reasoner.
func (r *ScriptedReasoner) Reason(ctx context.Context, req core.ReasoningRequest) (core.Decision, error) {
	if err := ctx.Err(); err != nil {
		return core.Decision{}, err
	}
	r.mu.Lock()
	r.requests = append(r.requests, req)
	if q := r.queues[req.Worker]; len(q) > 0 {
		r.queues[req.Worker] = q[1:]
		r.mu.Unlock()
		return q[0], nil
	}
	fn := r.funcs[req.Worker]
	r.mu.Unlock()

	if fn == nil {
		return core.Decision{Version: core.DecisionVersion, Effects: []core.Effect{core.WaitEffect{Reason: "no script"}}}, nil
	}
	return fn(req)
}

// Requests returns every request received so far.
func (r *ScriptedReasoner) Requests() []core.ReasoningRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.ReasoningRequest(nil), r.requests...)
}

// RequestsFor returns the requests made by worker.
func (r *ScriptedReasoner) RequestsFor(worker string) []core.ReasoningRequest {
	var out []core.ReasoningRequest
	for _, req := range r.Requests() {
		if req.Worker == worker {
			out = append(out, req)
		}
	}
	return out
}

// Decide is a shorthand for a v1 decision made of effects.
func Decide(effects ...core.Effect) core.Decision {
	return core.Decision{Version: core.DecisionVersion, Effects: effects}
}
