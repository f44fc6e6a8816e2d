package theme

import (
	"charm.land/lipgloss/v2"
)

// Color palette
var (
	Primary = lipgloss.Color("#8B5CF6") // Vivid Purple
	Accent  = lipgloss.Color("#14B8A6") // Teal
	Success = lipgloss.Color("#22C55E") // Green
	Warning = lipgloss.Color("#F97316") // Orange
	Error   = lipgloss.Color("#F43F5E") // Rose
	Text    = lipgloss.Color("#F8FAFC") // White
	TextDim = lipgloss.Color("#94A3B8") // Slate
)

// Typography
var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary)

	Body = lipgloss.NewStyle().
		Foreground(Text)

	Hint = lipgloss.NewStyle().
		Foreground(TextDim).
		Italic(true)
)

// Assignment states
var (
	Classified = lipgloss.NewStyle().
			Foreground(Success).
			Bold(true)

	Unclassified = lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true)

	Failed = lipgloss.NewStyle().
		Foreground(Error).
		Bold(true)
)

// Taxonomy
var (
	Rank = lipgloss.NewStyle().
		Foreground(Accent)

	TaxonName = lipgloss.NewStyle().
			Foreground(Text).
			Italic(true)

	TaxID = lipgloss.NewStyle().
		Foreground(TextDim)

	Separator = lipgloss.NewStyle().
			Foreground(TextDim)
)
