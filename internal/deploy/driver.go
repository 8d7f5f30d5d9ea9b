package deploy

import (
	"errors"
)

// RunState is the overall outcome of a run.
type RunState string

const (
	// StatePlanned means the plan was built but nothing has executed.
	StatePlanned RunState = "planned"
	// StateExecuting means layers are still running.
	StateExecuting RunState = "executing"
	// StateCompleted means every component succeeded or was skipped.
	StateCompleted RunState = "completed"
	// StateCompletedWithErrors means the run finished but at least one
	// component failed or was blocked by a failure.
	StateCompletedWithErrors RunState = "completed-with-errors"
)

// Driver executes a component set layer by layer.
type Driver struct {
	state RunState
}

// NewDriver creates a Driver in the planned state.
func NewDriver() *Driver {
	return &Driver{state: StatePlanned}
}

// State returns the driver's current state.
func (d *Driver) State() RunState {
	return d.state
}

// Run builds the plan for components, skips what is excluded or already
// satisfied, and deploys the rest in dependency order. Layers of independent
// components run concurrently up to Config.MaxParallel. A failure stops the
// failed component's dependents but independent branches keep going; a fatal
// error aborts everything still pending.
//
// The returned Report always describes every component. The error is non-nil
// only when the plan itself is invalid.
func (d *Driver) Run(ctx *Context, components []Component) (*Report, error) {
	started := now()

	plan, err := BuildPlan(components)
	if err != nil {
		d.state = StateCompletedWithErrors
		return nil, err
	}

	ApplySkips(ctx, plan)
	DetectSatisfied(ctx, plan)

	d.state = StateExecuting
	aborted := false

	for plan.Pending() {
		layer := plan.NextLayer()
		if len(layer) == 0 {
			// Everything still pending is downstream of a failure.
			blocked := plan.MarkBlocked()
			for _, name := range blocked {
				ctx.Observer.Event(Event{
					Type:      EventComponentFailed,
					Component: name,
					Message:   plan.Get(name).Detail,
				})
			}
			break
		}

		runLayer(ctx, layer, ctx.Config.MaxParallel)

		for _, phase := range layer {
			if phase.Err != nil && IsFatal(phase.Err) {
				aborted = true
			}
		}
		if aborted {
			for _, name := range plan.Names() {
				phase := plan.Get(name)
				if phase.Status == StatusPending {
					phase.Status = StatusFailed
					phase.Err = errors.New("not executed: run aborted by fatal error")
					phase.Detail = phase.Err.Error()
					ctx.Observer.Event(Event{
						Type:      EventComponentFailed,
						Component: name,
						Message:   phase.Detail,
					})
				}
			}
			break
		}
	}

	if plan.Failed() {
		d.state = StateCompletedWithErrors
	} else {
		d.state = StateCompleted
	}

	report := NewReport(plan, d.state, started, now())
	return report, nil
}
