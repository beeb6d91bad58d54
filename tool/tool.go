// Package tool exposes worker effects as callable functions so a language
// model can express a decision as function calls with schema validated
// arguments, consistent error handling and descriptions for LLM guidance.
package tool

import (
	"fmt"

	"github.com/hupe1980/agentorg/core"
	"github.com/hupe1980/agentorg/internal/util"
	"github.com/hupe1980/agentorg/model"
)

// Tool turns the arguments of one function call into an effect.
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define proper JSON schema for parameters
//   - Be safe for concurrent use
type Tool interface {
	// Name returns the unique function name (snake_case).
	Name() string

	// Description is shown to the model to explain when to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	Parameters() map[string]any

	// Decode validates args and builds the effect.
	Decode(args map[string]any) (core.Effect, error)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// Error codes carried by ToolError.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeDecode     = "DECODE_ERROR"
	CodeUnknown    = "UNKNOWN_TOOL"
)

// ToolError represents a malformed function call.
type ToolError struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}

// Definition converts a tool into the provider neutral function definition.
func Definition(t Tool) model.ToolDefinition {
	return model.ToolDefinition{
		Type: "function",
		Function: model.FunctionDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		},
	}
}
