// Package styles holds the lipgloss styles shared by the terminal views.
package styles

import "github.com/charmbracelet/lipgloss"

var (
	// Colors - all colors meet WCAG AA contrast (4.5:1) on both black and dark surfaces
	PrimaryColor   = lipgloss.Color("#A78BFA") // Purple
	SecondaryColor = lipgloss.Color("#10B981") // Green
	WarningColor   = lipgloss.Color("#F59E0B") // Amber
	ErrorColor     = lipgloss.Color("#F87171") // Red
	InfoColor      = lipgloss.Color("#60A5FA") // Blue
	MutedColor     = lipgloss.Color("#9CA3AF") // Gray
	TextColor      = lipgloss.Color("#F9FAFB") // Light text
	BorderColor    = lipgloss.Color("#6B7280") // Gray

	// Convenience styles for colors
	Primary   = lipgloss.NewStyle().Foreground(PrimaryColor)
	Secondary = lipgloss.NewStyle().Foreground(SecondaryColor)
	Warning   = lipgloss.NewStyle().Foreground(WarningColor)
	Muted     = lipgloss.NewStyle().Foreground(MutedColor)
	Text      = lipgloss.NewStyle().Foreground(TextColor)

	// Lifecycle state colors
	StateIdle     = lipgloss.Color("#9CA3AF") // Gray
	StateStarting = lipgloss.Color("#F59E0B") // Amber
	StateReady    = lipgloss.Color("#10B981") // Green
	StateRestart  = lipgloss.Color("#60A5FA") // Blue
	StateFailed   = lipgloss.Color("#F87171") // Red

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor).
		MarginBottom(1)

	Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(BorderColor).
		MarginBottom(1).
		PaddingBottom(1)

	ContentBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderColor).
			Padding(0, 1)

	Label = lipgloss.NewStyle().
		Foreground(MutedColor).
		Width(12)

	HelpBar = lipgloss.NewStyle().
		Foreground(MutedColor).
		MarginTop(1)

	HelpKey = lipgloss.NewStyle().
		Bold(true).
		Foreground(SecondaryColor)

	ErrorMsg = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	SuccessMsg = lipgloss.NewStyle().
			Foreground(SecondaryColor).
			Bold(true)
)

// StateColor returns the color for a lifecycle state name
func StateColor(state string) lipgloss.Color {
	switch state {
	case "idle":
		return StateIdle
	case "service_starting", "service_ready", "client_starting":
		return StateStarting
	case "client_ready":
		return StateReady
	case "restarting":
		return StateRestart
	case "failed":
		return StateFailed
	default:
		return MutedColor
	}
}

// StateIcon returns an icon for a lifecycle state name
func StateIcon(state string) string {
	switch state {
	case "idle":
		return "○"
	case "service_starting", "client_starting":
		return "◐"
	case "service_ready":
		return "◑"
	case "client_ready":
		return "●"
	case "restarting":
		return "↻"
	case "failed":
		return "✗"
	default:
		return "●"
	}
}

// SeverityColor returns the color for an LSP diagnostic severity (1 = error ... 4 = hint)
func SeverityColor(severity int) lipgloss.Color {
	switch severity {
	case 1:
		return ErrorColor
	case 2:
		return WarningColor
	case 3:
		return InfoColor
	default:
		return MutedColor
	}
}
