package deploy

// DetectSatisfied probes every pending phase's done signature and marks the
// satisfied ones skipped, so a resumed run only redeploys what is missing.
// Probe errors leave the phase pending: an unreachable cluster must not be
// mistaken for an undeployed component, deploying it again will surface the
// real problem.
func DetectSatisfied(ctx *Context, plan *Plan) {
	for _, name := range plan.Names() {
		phase := plan.Get(name)
		if phase.Status != StatusPending {
			continue
		}

		satisfied, detail, err := phase.Component.Satisfied(ctx)
		if err != nil {
			ctx.Observer.Printf("could not probe %s, will deploy: %v", name, err)
			continue
		}
		if satisfied {
			phase.Status = StatusSkipped
			phase.Detail = detail
			ctx.Observer.Event(Event{
				Type:      EventComponentSkipped,
				Component: name,
				Message:   "already satisfied: " + detail,
			})
		}
	}
}

// ApplySkips marks the configured skip list before detection runs. Skipped
// components count as satisfied for their dependents; the operator asserting
// a component is handled out of band must not block the rest of the lab.
func ApplySkips(ctx *Context, plan *Plan) {
	for _, name := range ctx.Config.Skip {
		phase := plan.Get(name)
		if phase == nil || phase.Status != StatusPending {
			continue
		}
		phase.Status = StatusSkipped
		phase.Detail = "excluded by skip list"
		ctx.Observer.Event(Event{
			Type:      EventComponentSkipped,
			Component: name,
			Message:   "excluded by skip list",
		})
	}
}
