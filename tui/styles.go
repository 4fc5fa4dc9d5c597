package tui

import "github.com/charmbracelet/lipgloss"

var (
	primaryColor   = lipgloss.Color("#7C3AED")
	secondaryColor = lipgloss.Color("#06B6D4")
	successColor   = lipgloss.Color("#22C55E")
	warningColor   = lipgloss.Color("#EAB308")
	errorColor     = lipgloss.Color("#EF4444")
	mutedColor     = lipgloss.Color("#6B7280")
	textColor      = lipgloss.Color("#F9FAFB")

	muted = lipgloss.NewStyle().Foreground(mutedColor)

	tabActive   = lipgloss.NewStyle().Bold(true).Foreground(primaryColor).Padding(0, 2)
	tabInactive = lipgloss.NewStyle().Foreground(mutedColor).Padding(0, 2)

	title     = lipgloss.NewStyle().Bold(true).Foreground(primaryColor).Padding(0, 1)
	statusBar = lipgloss.NewStyle().Foreground(mutedColor).Padding(0, 1)

	cardBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)
	siteCardBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(secondaryColor).
			Padding(0, 1)
	logBox = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(mutedColor).
		Padding(0, 1)

	statValue = lipgloss.NewStyle().Bold(true).Foreground(textColor)
	statLabel = lipgloss.NewStyle().Foreground(mutedColor)

	statusSuccess = lipgloss.NewStyle().Foreground(successColor)
	statusError   = lipgloss.NewStyle().Foreground(errorColor)
	statusPending = lipgloss.NewStyle().Foreground(warningColor)

	tableHeader   = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	tableSelected = lipgloss.NewStyle().Background(primaryColor).Foreground(textColor)

	notification = lipgloss.NewStyle().Foreground(successColor).Padding(0, 1)
)

// statusStyle colours a run status.
func statusStyle(status string) lipgloss.Style {
	switch status {
	case "completed":
		return statusSuccess
	case "failed":
		return statusError
	default:
		return statusPending
	}
}
