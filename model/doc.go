// Package model defines the provider‑agnostic abstractions for interacting
// with the language models that back worker reasoning.
//
// Core goals:
//   - One Generate interface for every provider
//   - Normalize tool / function call representation (ToolDefinition, FunctionCall)
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (OpenAI, Anthropic) implement the Model interface from this
// package so the reasoner remains decoupled from vendor SDKs.
package model
