package deploy

import (
	"fmt"
	"sync"
	"time"
)

// runLayer deploys every phase in the layer, at most maxParallel at a time.
// All phases run to completion even when siblings fail; the caller decides
// what a failure means for later layers.
func runLayer(ctx *Context, layer []*Phase, maxParallel int) {
	if maxParallel < 1 {
		maxParallel = 1
	}

	sem := make(chan struct{}, maxParallel)
	var wg sync.WaitGroup

	for _, phase := range layer {
		wg.Add(1)
		go func(phase *Phase) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			// The clock starts once a worker slot is held, so queue wait
			// under a capped layer never counts as execution time.
			phase.Status = StatusRunning
			phase.StartedAt = now()
			runPhase(ctx, phase)
		}(phase)
	}
	wg.Wait()
}

// runPhase executes one component and records the outcome on its phase.
func runPhase(ctx *Context, phase *Phase) {
	name := phase.Component.Name()
	ctx.Observer.Event(Event{
		Type:      EventComponentStarted,
		Component: name,
		Message:   "deploying",
	})

	err := func() (err error) {
		// A panicking component must not take down its siblings.
		defer func() {
			if r := recover(); r != nil {
				err = Fatal(fmt.Errorf("component %s panicked: %v", name, r))
			}
		}()
		return phase.Component.Deploy(ctx)
	}()

	phase.FinishedAt = now()
	elapsed := phase.FinishedAt.Sub(phase.StartedAt).Round(time.Millisecond)

	if err != nil {
		phase.Status = StatusFailed
		phase.Err = err
		phase.Detail = err.Error()
		ctx.Observer.Event(Event{
			Type:      EventComponentFailed,
			Component: name,
			Message:   err.Error(),
			Fields:    map[string]string{"elapsed": elapsed.String()},
		})
		return
	}

	phase.Status = StatusSucceeded
	phase.Detail = fmt.Sprintf("deployed in %v", elapsed)
	ctx.Observer.Event(Event{
		Type:      EventComponentCompleted,
		Component: name,
		Message:   "deployed",
		Fields:    map[string]string{"elapsed": elapsed.String()},
	})
}
