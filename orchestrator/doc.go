// Package orchestrator is the task lifecycle authority of an organization.
//
// An Orchestrator owns the task table, the mail router, the conversation
// manager, the environments and the SOP library, and runs one goroutine per
// worker. Workers never touch shared state directly: they call the
// orchestrator through the agent.Host interface, and every such call is
// checked against the current task id, assignee and status so that effects
// computed from an outdated view are discarded with core.ErrStale.
//
// Observers attach through the listener callbacks in Options. Each
// notification carries a complete snapshot (all tasks, all conversations,
// all environment states) and snapshots are never delivered out of order.
//
// Example:
//
//	orch := orchestrator.New(cfg, reasoner.NewHeuristic(), func(o *orchestrator.Options) {
//	    o.OnTasks = func(tasks []core.Task) { ... }
//	})
//	orch.Start(ctx)
//	root, err := orch.RunGoal("Publish a picture book")
package orchestrator
