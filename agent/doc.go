// Package agent implements the Worker: a member of the organization with a
// role, a supervisor, subordinates and an inbox. The package focuses on
// three concerns:
//
//  1. Serial mail processing (Run pulls one mail at a time from the inbox)
//  2. Building a versioned ReasoningRequest and calling the Reasoner
//  3. Translating the returned effects into Host operations
//
// Design principles:
//   - The hierarchy is a flat table: workers know supervisor and subordinate
//     names, never pointers to other workers
//   - No orchestrator lock is held while reasoning; effects re-check task
//     state on application so late effects after a reset are discarded
//   - Reasoning concurrency across workers is bounded by a shared semaphore
//
// The Host interface is implemented by orchestrator.Orchestrator.
package agent
