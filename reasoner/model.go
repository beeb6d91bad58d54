package reasoner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/agentorg/core"
	"github.com/hupe1980/agentorg/internal/util"
	"github.com/hupe1980/agentorg/logging"
	"github.com/hupe1980/agentorg/model"
	"github.com/hupe1980/agentorg/tool"
)

// DefaultInstructions is the system prompt template. It is rendered with
// the worker name, role, supervisor and subordinates of the request.
const DefaultInstructions = `You are {{.worker}}, working as {{.role}} in a simulated organization.
{{if .description}}Your responsibilities: {{.description}}
{{end}}{{if .supervisor}}You report to {{.supervisor}}.
{{end}}{{if .subordinates}}You may delegate work to your direct subordinates: {{.subordinates}}.
{{else}}You have no subordinates; do the work yourself and report the result.
{{end}}
Each turn you receive a JSON description of your situation: your current task, the mail that
triggered this turn, recent mail, your subtasks and their status, active conversations, your
environment and the available standard operating procedures.
Respond by calling one or more of the provided functions. Complete your task only once all of
its subtasks have finished. If nothing needs doing right now, call wait.`

// ModelOptions configures a ModelReasoner.
type ModelOptions struct {
	// Instructions is the system prompt template, see DefaultInstructions.
	Instructions string
	// Tools is the effect set offered to the model. Defaults to tool.Effects().
	Tools *tool.Set
	// Limiter caps the number of model calls. Nil means unlimited.
	Limiter *core.CallLimiter
	Logger  logging.Logger
}

// ModelReasoner asks an LLM for decisions.
type ModelReasoner struct {
	model model.Model
	opts  ModelOptions
}

// NewModel creates a reasoner backed by m.
func NewModel(m model.Model, optFns ...func(o *ModelOptions)) *ModelReasoner {
	opts := ModelOptions{Instructions: DefaultInstructions}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Tools == nil {
		opts.Tools = tool.Effects()
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &ModelReasoner{model: m, opts: opts}
}

// Reason implements core.Reasoner. Transport failures and an exhausted call
// budget are returned as core.ServiceError; an answer that cannot be mapped
// to effects becomes a wait decision.
func (r *ModelReasoner) Reason(ctx context.Context, req core.ReasoningRequest) (core.Decision, error) {
	provider := r.model.Info().Provider
	if r.opts.Limiter != nil {
		if err := r.opts.Limiter.Acquire(); err != nil {
			return core.Decision{}, core.NewServiceError(provider, err)
		}
	}

	mreq, err := r.buildRequest(req)
	if err != nil {
		return core.Decision{}, err
	}

	resp, err := model.Collect(ctx, r.model, mreq)
	if err != nil {
		if ctx.Err() != nil {
			return core.Decision{}, err
		}
		if r.opts.Limiter != nil {
			r.opts.Limiter.Fail()
		}
		return core.Decision{}, core.NewServiceError(provider, err)
	}
	return r.decide(req, resp.Content), nil
}

func (r *ModelReasoner) buildRequest(req core.ReasoningRequest) (model.Request, error) {
	instructions, err := util.RenderTemplate(r.opts.Instructions, map[string]any{
		"worker":       req.Worker,
		"role":         req.Role.Name,
		"description":  req.Role.Description,
		"supervisor":   req.Supervisor,
		"subordinates": strings.Join(req.Subordinates, ", "),
	})
	if err != nil {
		return model.Request{}, fmt.Errorf("render instructions: %w", err)
	}
	payload, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return model.Request{}, fmt.Errorf("encode reasoning request: %w", err)
	}
	return model.Request{
		Instructions: instructions,
		Contents:     []model.Content{model.NewUserContent(string(payload))},
		Tools:        r.opts.Tools.Definitions(),
	}, nil
}

// decide maps the model answer to a decision: function calls first, then a
// JSON decision embedded in the text, otherwise a wait.
func (r *ModelReasoner) decide(req core.ReasoningRequest, content model.Content) core.Decision {
	d := core.Decision{Version: core.DecisionVersion, Thought: strings.TrimSpace(content.Text())}

	if calls := content.FunctionCalls(); len(calls) > 0 {
		for _, call := range calls {
			effect, err := r.opts.Tools.DecodeCall(call)
			if err != nil {
				r.opts.Logger.Warn("reasoner.call.rejected", "worker", req.Worker, "tool", call.Name, "error", err)
				continue
			}
			d.Effects = append(d.Effects, effect)
		}
		return d
	}

	if raw, ok := extractJSON(d.Thought); ok {
		parsed, err := r.opts.Tools.ParseDecision([]byte(raw))
		if err != nil {
			r.opts.Logger.Warn("reasoner.decision.partial", "worker", req.Worker, "error", err)
		}
		if len(parsed.Effects) > 0 {
			return parsed
		}
	}

	d.Effects = []core.Effect{core.WaitEffect{Reason: "no actionable answer"}}
	return d
}

// extractJSON returns the outermost JSON object in text, tolerating code fences.
func extractJSON(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	candidate := text[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return "", false
	}
	return candidate, true
}
