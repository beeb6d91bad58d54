package tool

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/hupe1980/agentorg/core"
	"github.com/hupe1980/agentorg/model"
)

// Set is a name indexed collection of tools.
type Set struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewSet creates a set holding tools in registration order.
func NewSet(tools ...Tool) *Set {
	s := &Set{tools: map[string]Tool{}}
	for _, t := range tools {
		s.Add(t)
	}
	return s
}

// Add registers t, replacing a tool with the same name.
func (s *Set) Add(t Tool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tools[t.Name()]; !ok {
		s.order = append(s.order, t.Name())
	}
	s.tools[t.Name()] = t
}

// Get returns the tool called name.
func (s *Set) Get(name string) (Tool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tools[name]
	return t, ok
}

// Names returns tool names in registration order.
func (s *Set) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order)
}

// Definitions returns function definitions for every tool.
func (s *Set) Definitions() []model.ToolDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	defs := make([]model.ToolDefinition, 0, len(s.order))
	for _, n := range s.order {
		defs = append(defs, Definition(s.tools[n]))
	}
	return defs
}

// DecodeCall turns one model function call into an effect.
func (s *Set) DecodeCall(call model.FunctionCall) (core.Effect, error) {
	t, ok := s.Get(call.Name)
	if !ok {
		return nil, NewToolError(call.Name, "no such tool", CodeUnknown)
	}
	args := map[string]any{}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return nil, NewToolError(call.Name, fmt.Sprintf("arguments are not a JSON object: %v", err), CodeDecode)
		}
	}
	return t.Decode(args)
}

// wireDecision is the JSON shape accepted when a model answers in text.
type wireDecision struct {
	Version string `json:"version"`
	Thought string `json:"thought"`
	Effects []struct {
		Kind string         `json:"kind"`
		Args map[string]any `json:"args"`
	} `json:"effects"`
}

// ParseDecision decodes a JSON decision of the form
// {"thought": "...", "effects": [{"kind": "delegate", "args": {...}}]}.
// Malformed effects are skipped and reported in the joined error.
func (s *Set) ParseDecision(data []byte) (core.Decision, error) {
	var w wireDecision
	if err := json.Unmarshal(data, &w); err != nil {
		return core.Decision{}, err
	}
	d := core.Decision{Version: w.Version, Thought: w.Thought}
	if d.Version == "" {
		d.Version = core.DecisionVersion
	}
	var errs []error
	for _, e := range w.Effects {
		effect, err := s.DecodeCall(model.FunctionCall{Name: e.Kind, Arguments: mustJSON(e.Args)})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		d.Effects = append(d.Effects, effect)
	}
	return d, errors.Join(errs...)
}

func mustJSON(v map[string]any) string {
	if v == nil {
		return ""
	}
	b, _ := json.Marshal(v)
	return string(b)
}

// Effects returns the built-in effect tools.
func Effects() *Set {
	return NewSet(
		NewEffectTool[core.DelegateEffect]("Delegate subtasks of your current task to your direct subordinates. Use ref and depends_on to order them."),
		NewEffectTool[core.CompleteEffect]("Mark your current task as completed and report the result to whoever issued it."),
		NewEffectTool[core.FailEffect]("Mark your current task as failed with a reason."),
		NewEffectTool[core.StartConversationEffect]("Start a discussion with other workers about a topic."),
		NewEffectTool[core.ContributeEffect]("Add a message to an active conversation you take part in."),
		NewEffectTool[core.ResolveConversationEffect]("Close a conversation with a summary of the outcome."),
		NewEffectTool[core.UpdateEnvironmentEffect]("Change the shared state of your environment and notify co-located workers."),
		NewEffectTool[core.RequestHumanInputEffect]("Pause your current task and ask a human a question."),
		NewEffectTool[core.UseSOPEffect]("Instantiate a standard operating procedure as subtasks for your subordinates."),
		NewEffectTool[core.SendMessageEffect]("Send a short message to another worker."),
		NewEffectTool[core.WaitEffect]("Do nothing for now, for example while subtasks are still running."),
	)
}
