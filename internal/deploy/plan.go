package deploy

import (
	"fmt"
	"sort"
	"time"
)

// Status is the lifecycle state of one planned component.
type Status string

const (
	// StatusPending means the component has not run yet.
	StatusPending Status = "pending"
	// StatusSkipped means the component was excluded or already satisfied.
	// Dependents treat a skipped component as satisfied.
	StatusSkipped Status = "skipped"
	// StatusRunning means the component is deploying now.
	StatusRunning Status = "running"
	// StatusSucceeded means the component deployed.
	StatusSucceeded Status = "succeeded"
	// StatusFailed means the component failed, or never ran because a
	// dependency failed.
	StatusFailed Status = "failed"
)

// Phase tracks one component through the run.
type Phase struct {
	Component  Component
	Status     Status
	Detail     string
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Plan holds the dependency-ordered set of phases for a run.
type Plan struct {
	phases map[string]*Phase
	order  []string
}

// BuildPlan validates the component graph and returns a plan with every
// component pending. Duplicate names, unknown dependencies, and cycles are
// build errors; a cyclic graph has no valid order, so these abort before
// anything executes.
func BuildPlan(components []Component) (*Plan, error) {
	plan := &Plan{phases: make(map[string]*Phase, len(components))}

	for _, component := range components {
		name := component.Name()
		if _, exists := plan.phases[name]; exists {
			return nil, Fatal(fmt.Errorf("duplicate component %q", name))
		}
		plan.phases[name] = &Phase{Component: component, Status: StatusPending}
		plan.order = append(plan.order, name)
	}

	for _, name := range plan.order {
		for _, dep := range plan.phases[name].Component.DependsOn() {
			if _, known := plan.phases[dep]; !known {
				return nil, Fatal(fmt.Errorf("component %q depends on unknown component %q", name, dep))
			}
		}
	}

	if cycle := plan.findCycle(); len(cycle) > 0 {
		return nil, Fatal(fmt.Errorf("dependency cycle: %v", cycle))
	}
	return plan, nil
}

// findCycle runs a colored DFS over the dependency edges and returns the
// first cycle found, or nil.
func (p *Plan) findCycle() []string {
	const (
		white = 0 // unvisited
		grey  = 1 // on the current path
		black = 2 // fully explored
	)
	color := make(map[string]int, len(p.phases))
	var cycle []string

	var visit func(name string, path []string) bool
	visit = func(name string, path []string) bool {
		color[name] = grey
		path = append(path, name)

		for _, dep := range p.phases[name].Component.DependsOn() {
			switch color[dep] {
			case grey:
				cycle = append(path, dep)
				return true
			case white:
				if visit(dep, path) {
					return true
				}
			}
		}
		color[name] = black
		return false
	}

	for _, name := range p.order {
		if color[name] == white && visit(name, nil) {
			return cycle
		}
	}
	return nil
}

// Get returns the phase for a component name.
func (p *Plan) Get(name string) *Phase {
	return p.phases[name]
}

// Names returns the component names in declaration order.
func (p *Plan) Names() []string {
	return append([]string(nil), p.order...)
}

// NextLayer returns every pending phase whose dependencies have all finished
// successfully (succeeded or skipped). An empty layer with pending phases
// remaining means those phases are blocked on failures.
func (p *Plan) NextLayer() []*Phase {
	var layer []*Phase
	for _, name := range p.order {
		phase := p.phases[name]
		if phase.Status != StatusPending {
			continue
		}
		ready := true
		for _, dep := range phase.Component.DependsOn() {
			s := p.phases[dep].Status
			if s != StatusSucceeded && s != StatusSkipped {
				ready = false
				break
			}
		}
		if ready {
			layer = append(layer, phase)
		}
	}
	return layer
}

// MarkBlocked fails every pending phase that can no longer run because a
// transitive dependency failed. Returns the names marked, sorted.
func (p *Plan) MarkBlocked() []string {
	var marked []string
	for {
		progressed := false
		for _, name := range p.order {
			phase := p.phases[name]
			if phase.Status != StatusPending {
				continue
			}
			for _, dep := range phase.Component.DependsOn() {
				if p.phases[dep].Status == StatusFailed {
					phase.Status = StatusFailed
					phase.Err = &DependencyError{Component: name, Dependency: dep}
					phase.Detail = phase.Err.Error()
					marked = append(marked, name)
					progressed = true
					break
				}
			}
		}
		if !progressed {
			break
		}
	}
	sort.Strings(marked)
	return marked
}

// Pending reports whether any phase has not reached a terminal state.
func (p *Plan) Pending() bool {
	for _, phase := range p.phases {
		if phase.Status == StatusPending || phase.Status == StatusRunning {
			return true
		}
	}
	return false
}

// Failed reports whether any phase failed.
func (p *Plan) Failed() bool {
	for _, phase := range p.phases {
		if phase.Status == StatusFailed {
			return true
		}
	}
	return false
}
