// Package reasoner provides implementations of core.Reasoner.
//
// ModelReasoner drives an LLM through the model.Model interface and exposes
// the effect set as function tools. Heuristic is a deterministic offline
// reasoner for demos and tests. Func adapts an ordinary function.
package reasoner
