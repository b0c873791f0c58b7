package output

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette. Use these instead of inline lipgloss.Color literals.
var (
	// ColorCyan is used for identifiable nouns: module identifiers and paths.
	ColorCyan = lipgloss.Color("14")

	// ColorYellow is used for modules still linking or evaluating.
	ColorYellow = lipgloss.Color("220")

	// ColorGreenCheck is used for the completion checkmark.
	ColorGreenCheck = lipgloss.Color("10")

	// ColorDimGray is used for borders and other structural chrome.
	ColorDimGray = lipgloss.Color("240")

	colorGreen   = lipgloss.Color("82")
	colorMagenta = lipgloss.Color("177")
	colorBoldRed = lipgloss.Color("204")
)

// Semantic styles.
var (
	// StyleNoun styles identifiable nouns.
	StyleNoun = lipgloss.NewStyle().Foreground(ColorCyan)

	// StyleDim styles structural chrome (prefixes, separators).
	StyleDim = lipgloss.NewStyle().Faint(true)

	// StyleSummary styles completion and summary lines.
	StyleSummary = lipgloss.NewStyle().Bold(true)
)

// Module status words, matching the loader's status strings.
const (
	StatusUnlinked   = "unlinked"
	StatusLinking    = "linking"
	StatusLinked     = "linked"
	StatusEvaluating = "evaluating"
	StatusEvaluated  = "evaluated"
	StatusErrored    = "errored"
)

// statusStyle returns the style for a module status. Unknown statuses are unstyled.
func statusStyle(status string) lipgloss.Style {
	switch status {
	case StatusEvaluated:
		return lipgloss.NewStyle().Foreground(colorGreen)
	case StatusLinking, StatusEvaluating:
		return lipgloss.NewStyle().Foreground(ColorYellow)
	case StatusUnlinked, StatusLinked:
		return lipgloss.NewStyle().Faint(true)
	case StatusErrored:
		return lipgloss.NewStyle().Bold(true).Foreground(colorBoldRed)
	default:
		return lipgloss.NewStyle()
	}
}

// formatStyle returns the style for a module format tag.
func formatStyle(format string) lipgloss.Style {
	switch format {
	case "native":
		return lipgloss.NewStyle().Foreground(ColorCyan)
	case "legacy":
		return lipgloss.NewStyle().Foreground(ColorYellow)
	case "builtin":
		return lipgloss.NewStyle().Foreground(colorMagenta)
	default:
		return lipgloss.NewStyle()
	}
}

// minIdentifierColumnWidth keeps status words aligned across lines.
const minIdentifierColumnWidth = 56

// FormatModuleLine renders a module identifier with a right-aligned status.
//
// Format: m:<identifier>  <status>
func FormatModuleLine(id, status string) string {
	padding := max(minIdentifierColumnWidth-len(id), 2)
	return StyleDim.Render("m:") + StyleNoun.Render(id) + strings.Repeat(" ", padding) + statusStyle(status).Render(status)
}

// FormatTag renders a module format in brackets.
func FormatTag(format string) string {
	return StyleDim.Render("[") + formatStyle(format).Render(format) + StyleDim.Render("]")
}

// FormatCheckmark renders a green checkmark with a message.
func FormatCheckmark(msg string) string {
	check := lipgloss.NewStyle().Foreground(ColorGreenCheck).Render("✔")
	return check + " " + msg
}

// vetCheckLabelWidth aligns the detail column of vet check lines.
const vetCheckLabelWidth = 30

// FormatVetCheck renders a passed validation check with an optional
// right-aligned detail.
func FormatVetCheck(label, detail string) string {
	line := FormatCheckmark(label)
	if detail == "" {
		return line
	}
	padding := max(vetCheckLabelWidth-len(label), 2)
	return line + strings.Repeat(" ", padding) + StyleDim.Render(detail)
}
