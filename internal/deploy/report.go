package deploy

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
)

// PhaseReport is one component's row in the final report.
type PhaseReport struct {
	Name     string
	Status   Status
	Detail   string
	Duration time.Duration
}

// Report summarizes a completed run.
type Report struct {
	RunID     string
	State     RunState
	StartedAt time.Time
	Duration  time.Duration
	Phases    []PhaseReport
}

// NewReport captures the plan's final state into a report.
func NewReport(plan *Plan, state RunState, started, finished time.Time) *Report {
	report := &Report{
		RunID:     uuid.NewString(),
		State:     state,
		StartedAt: started,
		Duration:  finished.Sub(started).Round(time.Millisecond),
	}
	for _, name := range plan.Names() {
		phase := plan.Get(name)
		row := PhaseReport{
			Name:   name,
			Status: phase.Status,
			Detail: phase.Detail,
		}
		if !phase.StartedAt.IsZero() && !phase.FinishedAt.IsZero() {
			row.Duration = phase.FinishedAt.Sub(phase.StartedAt).Round(time.Millisecond)
		}
		report.Phases = append(report.Phases, row)
	}
	return report
}

// Failed reports whether the run ended with failures.
func (r *Report) Failed() bool {
	return r.State != StateCompleted
}

// Render formats the report as an aligned table.
func (r *Report) Render() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "run %s finished %s in %v\n\n", r.RunID, r.State, r.Duration)

	w := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "COMPONENT\tSTATUS\tDURATION\tDETAIL")
	for _, phase := range r.Phases {
		duration := "-"
		if phase.Duration > 0 {
			duration = phase.Duration.String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", phase.Name, phase.Status, duration, phase.Detail)
	}
	_ = w.Flush()
	return sb.String()
}
