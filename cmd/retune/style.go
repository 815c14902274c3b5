package main

import "github.com/charmbracelet/lipgloss"

var (
	styleOutcome = map[string]lipgloss.Style{
		"APPLIED":           lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		"ALREADY_SATISFIED": lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		"SKIPPED":           lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		"FAILED":            lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
	}
	styleSuccess = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	styleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	styleDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func renderOutcome(status string) string {
	if s, ok := styleOutcome[status]; ok {
		return s.Render("[" + status + "]")
	}
	return "[" + status + "]"
}
