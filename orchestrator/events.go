package orchestrator

import (
	"github.com/hupe1980/agentorg/core"
)

// EnvironmentSender is the mail sender name used for environment events.
func EnvironmentSender(envID string) string { return "env:" + envID }

// Emit reports an event to the event listener without mailing anyone.
func (o *Orchestrator) Emit(ev core.Event) {
	o.logger.Debug("event.emitted", "event", ev.Name, "source", ev.Source)
	if o.opts.OnEvent != nil {
		o.opts.OnEvent(ev)
	}
}

// BroadcastEvent reports ev to the event listener, then mails it to every
// worker bound to envID except the originator. Events for unknown
// environments are dropped.
func (o *Orchestrator) BroadcastEvent(ev core.Event, originator, envID string) {
	if !o.envs.Has(envID) {
		o.logger.Warn("environment.broadcast.unknown", "environment", envID, "event", ev.Name, "source", originator)
		return
	}
	ev.EnvironmentID = envID
	if o.opts.OnEvent != nil {
		o.opts.OnEvent(ev)
	}
	for _, name := range o.order {
		w := o.workers[name]
		if name == originator || w.Environment() != envID {
			continue
		}
		o.router.Send(name, core.Envelope{From: EnvironmentSender(envID), Subject: core.SubjectEnvironmentEvent, Body: ev})
	}
}

// UpdateEnvironment merges changes into an environment on behalf of worker,
// publishes the new environment states and broadcasts event to the other
// workers of that environment.
func (o *Orchestrator) UpdateEnvironment(envID, worker, event string, changes map[string]any) error {
	if _, err := o.envs.Apply(envID, changes); err != nil {
		return err
	}
	o.publishEnvironments()
	o.logger.Info("environment.updated", "environment", envID, "worker", worker, "event", event)
	o.BroadcastEvent(core.NewEvent(event, worker, map[string]any{"changes": changes}), worker, envID)
	return nil
}

// SetEnvironmentState replaces the state of an environment, for example
// when an operator edits it between runs.
func (o *Orchestrator) SetEnvironmentState(envID string, state core.EnvironmentState) error {
	if err := o.envs.Set(envID, state); err != nil {
		return err
	}
	o.publishEnvironments()
	return nil
}

// EnvironmentState returns a copy of one environment's state.
func (o *Orchestrator) EnvironmentState(envID string) (core.EnvironmentState, bool) {
	return o.envs.State(envID)
}

// EnvironmentStates returns a copy of every environment's state.
func (o *Orchestrator) EnvironmentStates() map[string]core.EnvironmentState {
	return o.envs.Snapshot()
}

func (o *Orchestrator) publishEnvironments() {
	if !o.envListener.Enabled() {
		return
	}
	o.mu.Lock()
	o.versions.envs++
	v, snap := o.versions.envs, o.envs.Snapshot()
	o.mu.Unlock()
	o.envListener.Deliver(v, snap)
}
