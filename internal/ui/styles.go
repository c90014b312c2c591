package ui

import "github.com/charmbracelet/lipgloss"

// Color palette
const (
	ColorPrimary = "87"  // Cyan
	ColorSuccess = "42"  // Green
	ColorError   = "196" // Red
	ColorWarning = "214" // Orange
	ColorInfo    = "244" // Gray
	ColorDebug   = "208" // Orange
	ColorMuted   = "252" // Light Gray
	ColorAccent  = "99"  // Purple
)

// Layout constants
const (
	DefaultWidth  = 60
	BorderPadding = 1
)

// Base styles
var (
	baseBlockStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, BorderPadding)

	baseTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, BorderPadding).
			Align(lipgloss.Center)
)

// Component styles
var (
	HeaderStyle = baseTitleStyle.
			Foreground(lipgloss.Color(ColorPrimary)).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(ColorPrimary)).
			Width(DefaultWidth)

	ProgressStyle = baseBlockStyle.
			BorderForeground(lipgloss.Color(ColorAccent)).
			Width(DefaultWidth)

	ResultBlockStyle = baseBlockStyle.
				BorderForeground(lipgloss.Color(ColorAccent)).
				Width(DefaultWidth)

	DebugBlockStyle = baseBlockStyle.
			BorderForeground(lipgloss.Color(ColorDebug)).
			Width(DefaultWidth)
)

// Text styles
var (
	OpenStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorSuccess)).
			Bold(true)

	ClosedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorMuted))

	TimeoutStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorWarning))

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorError)).
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorInfo)).
			Italic(true)

	DebugTextStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorMuted))

	MetricLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color(ColorInfo)).
				Bold(true)
)

// Status icons
const (
	IconOpen    = "✓"
	IconClosed  = "·"
	IconTimeout = "?"
	IconError   = "✗"
)

// StatusIcon returns an icon for the given port status
func StatusIcon(status string) string {
	switch status {
	case "open":
		return IconOpen
	case "closed/filtered":
		return IconClosed
	case "timeout":
		return IconTimeout
	default:
		return IconError
	}
}

// StatusStyle returns a style for the given port status
func StatusStyle(status string) lipgloss.Style {
	switch status {
	case "open":
		return OpenStyle
	case "closed/filtered":
		return ClosedStyle
	case "timeout":
		return TimeoutStyle
	default:
		return ErrorStyle
	}
}
