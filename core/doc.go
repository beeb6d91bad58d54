// Package core provides the foundational domain types and interfaces of
// agentorg. It defines the core abstractions for:
//
//   - Tasks and the task status state machine (PENDING, IN_PROGRESS,
//     AWAITING_INPUT, COMPLETED, FAILED) with append-only history
//   - Mail, the unit of communication between workers
//   - Conversations, environments and broadcast events
//   - Human input requests
//   - The versioned reasoning contract (ReasoningRequest, Decision, Effect)
//     and the Reasoner interface backed by an external reasoning capability
//
// The package keeps implementation concerns (routing, orchestration, concrete
// reasoners) out of scope, exposing small value types and interfaces so the
// orchestrator, workers and listeners share one vocabulary.
package core
