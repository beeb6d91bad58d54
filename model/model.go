package model

import (
	"context"
	"errors"
	"sync"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request captures the normalized model input produced by the reasoner.
type Request struct {
	Instructions string           `json:"instructions"`
	Contents     []Content        `json:"contents"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the final message emitted by a model.
type Response struct {
	ID           string      `json:"id"`
	Content      Content     `json:"content"`
	FinishReason string      `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock"
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by reasoners to drive generation.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Collect drains a Generate call and returns the last response.
func Collect(ctx context.Context, m Model, req Request) (Response, error) {
	respCh, errCh := m.Generate(ctx, req)
	var (
		last Response
		got  bool
	)
	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case r, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			last, got = r, true
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return Response{}, err
			}
		}
	}
	if !got {
		return Response{}, errors.New("model returned no response")
	}
	return last, nil
}

// MockModel is a lightweight in‑memory Model useful for tests & examples.
// Queued replies are returned in order; when the queue is empty it answers
// with a plain text wait message.
type MockModel struct {
	info     Info
	mu       sync.Mutex
	replies  []mockReply
	requests []Request
}

type mockReply struct {
	content Content
	err     error
}

// NewMockModel constructs a MockModel with tool support enabled.
func NewMockModel(name string) *MockModel {
	return &MockModel{info: Info{Name: name, Provider: "mock", SupportsTools: true}}
}

// AddText queues a text reply.
func (m *MockModel) AddText(text string) *MockModel {
	return m.add(mockReply{content: Content{Role: "assistant", Parts: []Part{TextPart{Text: text}}}})
}

// AddCalls queues a reply made of function calls.
func (m *MockModel) AddCalls(calls ...FunctionCall) *MockModel {
	parts := make([]Part, len(calls))
	for i, c := range calls {
		parts[i] = FunctionCallPart{FunctionCall: c}
	}
	return m.add(mockReply{content: Content{Role: "assistant", Parts: parts}})
}

// AddError queues a failing reply.
func (m *MockModel) AddError(err error) *MockModel {
	return m.add(mockReply{err: err})
}

func (m *MockModel) add(r mockReply) *MockModel {
	m.mu.Lock()
	m.replies = append(m.replies, r)
	m.mu.Unlock()
	return m
}

// Requests returns every request received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 1)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.requests = append(m.requests, req)
	reply := mockReply{content: Content{Role: "assistant", Parts: []Part{TextPart{Text: "Nothing to do yet."}}}}
	if len(m.replies) > 0 {
		reply = m.replies[0]
		m.replies = m.replies[1:]
	}
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)
		if err := ctx.Err(); err != nil {
			errCh <- err
			return
		}
		if reply.err != nil {
			errCh <- reply.err
			return
		}
		respCh <- Response{Content: reply.content, FinishReason: "stop"}
	}()
	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
