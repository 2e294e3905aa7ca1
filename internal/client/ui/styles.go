package ui

import "github.com/charmbracelet/lipgloss"

// Color palette - Earthy tones (lighter for dark backgrounds)
var (
	primaryColor   = lipgloss.Color("#E8C4A0") // Light warm beige
	secondaryColor = lipgloss.Color("#7EBB81") // Light forest green
	mutedColor     = lipgloss.Color("#B8A890") // Light taupe
	fgColor        = lipgloss.Color("#F5F3ED") // Warm white
	errorColor     = lipgloss.Color("#E07B7B")
)

// Styles used to render the action log
type Styles struct {
	Username  lipgloss.Style
	Timestamp lipgloss.Style
	Message   lipgloss.Style
	Notice    lipgloss.Style
	Fallback  lipgloss.Style
	Title     lipgloss.Style
}

// NewStyles builds the styles on r; nil means lipgloss's default renderer
func NewStyles(r *lipgloss.Renderer) Styles {
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	return Styles{
		Username: r.NewStyle().
			Foreground(secondaryColor).
			Bold(true),

		Timestamp: r.NewStyle().
			Foreground(mutedColor),

		Message: r.NewStyle().
			Foreground(fgColor).
			PaddingLeft(2),

		Notice: r.NewStyle().
			Foreground(mutedColor).
			Italic(true),

		Fallback: r.NewStyle().
			Foreground(errorColor).
			Bold(true),

		Title: r.NewStyle().
			Foreground(primaryColor).
			Bold(true),
	}
}
