// Package logging provides a minimal logging interface and adapters for agentorg.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the router, orchestrator and workers use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - StructuredLogger with component/worker context and domain helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	orch := orchestrator.New(cfg, reasoner, func(o *orchestrator.Options) { o.Logger = logger })
package logging
