package tool

import (
	"encoding/json"

	"github.com/hupe1980/agentorg/core"
	"github.com/hupe1980/agentorg/internal/util"
)

// EffectTool exposes one effect type as a function. The parameter schema is
// derived from the effect struct and decoded arguments are unmarshaled into it.
//
// An EffectTool has no mutable state after construction and is safe for
// concurrent use.
type EffectTool[E core.Effect] struct {
	name        string
	description string
	parameters  map[string]any
}

// NewEffectTool builds a tool for E named after E's Kind.
func NewEffectTool[E core.Effect](description string) *EffectTool[E] {
	var zero E
	return &EffectTool[E]{
		name:        zero.Kind(),
		description: description,
		parameters:  util.CreateSchema(zero),
	}
}

// Name returns the function name.
func (t *EffectTool[E]) Name() string { return t.name }

// Description returns the description exposed to models.
func (t *EffectTool[E]) Description() string { return t.description }

// Parameters returns the JSON schema of the effect.
func (t *EffectTool[E]) Parameters() map[string]any { return t.parameters }

// Decode validates args against the schema, decodes them and runs the
// effect's structural validation.
func (t *EffectTool[E]) Decode(args map[string]any) (core.Effect, error) {
	if args == nil {
		args = map[string]any{}
	}
	if err := util.ValidateParameters(args, t.parameters); err != nil {
		te := NewToolError(t.name, err.Error(), CodeValidation)
		te.Details = err
		return nil, te
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, NewToolError(t.name, err.Error(), CodeDecode)
	}
	var e E
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, NewToolError(t.name, err.Error(), CodeDecode)
	}
	if err := e.Validate(); err != nil {
		return nil, NewToolError(t.name, err.Error(), CodeValidation)
	}
	return e, nil
}

// FunctionTool adapts a plain function into a Tool for custom effects built
// from an explicit schema.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(args map[string]any) (core.Effect, error)
}

// NewFunctionTool constructs a FunctionTool.
func NewFunctionTool(name, description string, parameters map[string]any, fn func(args map[string]any) (core.Effect, error)) *FunctionTool {
	return &FunctionTool{name: name, description: description, parameters: parameters, fn: fn}
}

func (t *FunctionTool) Name() string               { return t.name }
func (t *FunctionTool) Description() string        { return t.description }
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Decode validates args and calls the wrapped function.
func (t *FunctionTool) Decode(args map[string]any) (core.Effect, error) {
	if err := util.ValidateParameters(args, t.parameters); err != nil {
		return nil, NewToolError(t.name, err.Error(), CodeValidation)
	}
	e, err := t.fn(args)
	if err != nil {
		if te, ok := err.(*ToolError); ok {
			return nil, te
		}
		return nil, NewToolError(t.name, err.Error(), CodeDecode)
	}
	return e, nil
}
