// Package ui holds the terminal styling for labctl's tables and reports.
package ui

import "github.com/charmbracelet/lipgloss"

var (
	colorGreen  = lipgloss.Color("#22c55e")
	colorRed    = lipgloss.Color("#ef4444")
	colorYellow = lipgloss.Color("#eab308")
	colorDim    = lipgloss.Color("#6b7280")

	deployedStyle = lipgloss.NewStyle().Foreground(colorGreen)
	failedStyle   = lipgloss.NewStyle().Foreground(colorRed)
	unknownStyle  = lipgloss.NewStyle().Foreground(colorYellow)
	dimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// State renders a component state word in its color.
func State(state string) string {
	switch state {
	case "deployed", "succeeded":
		return deployedStyle.Render(state)
	case "failed":
		return failedStyle.Render(state)
	case "unknown":
		return unknownStyle.Render(state)
	case "skipped", "missing", "pending":
		return dimStyle.Render(state)
	default:
		return state
	}
}
