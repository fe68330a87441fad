// Package tui implements a terminal user interface for taking a survey.
// It drives an engine session directly and renders one step at a time in
// an interactive Bubble Tea app.
package tui

import "github.com/charmbracelet/lipgloss"

// Section strip glyphs convey state without relying on color alone.
const (
	GlyphPending  = "○"
	GlyphCurrent  = "▸"
	GlyphViewed   = "✓"
	GlyphSelected = "●"
	GlyphChecked  = "☑"
	GlyphEmpty    = "☐"
)

// Palette adapts to terminal capabilities via lipgloss.
var (
	colorGreen  = lipgloss.Color("42")
	colorRed    = lipgloss.Color("196")
	colorYellow = lipgloss.Color("214")
	colorBlue   = lipgloss.Color("39")
	colorCyan   = lipgloss.Color("51")
	colorDim    = lipgloss.Color("240")
	colorWhite  = lipgloss.Color("255")
)

// --- Header styles ---

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorCyan).
	Padding(0, 1)

var (
	sectionCurrent = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorYellow)

	sectionViewed = lipgloss.NewStyle().
			Foreground(colorGreen)

	sectionPending = lipgloss.NewStyle().
			Faint(true)
)

// --- Progress ---

var (
	progressFilled = lipgloss.NewStyle().
			Foreground(colorCyan)

	progressEmpty = lipgloss.NewStyle().
			Foreground(colorDim)
)

// --- Step body ---

var (
	promptStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite)

	subtextStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	optionNormal = lipgloss.NewStyle().
			Foreground(colorWhite)

	optionCursor = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorYellow)

	optionChosen = lipgloss.NewStyle().
			Foreground(colorGreen)

	panelBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDim).
			Padding(1, 2)

	answerLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorBlue)
)

// --- Key bar styles ---

var (
	keyStyle = lipgloss.NewStyle().
			Foreground(colorCyan).
			Bold(true)

	keyDescStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	keyBarStyle = lipgloss.NewStyle().
			Padding(0, 1)
)

// --- Completion banner ---

var completeBannerStyle = lipgloss.NewStyle().
	Border(lipgloss.DoubleBorder()).
	BorderForeground(colorCyan).
	Foreground(colorCyan).
	Bold(true).
	Padding(0, 2).
	Align(lipgloss.Center)

var errorStyle = lipgloss.NewStyle().
	Foreground(colorRed).
	Bold(true)

var spinnerStyle = lipgloss.NewStyle().
	Foreground(colorYellow)
