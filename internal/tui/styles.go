package tui

import "github.com/charmbracelet/lipgloss"

var (
	doctorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EEEEEE")).
			Background(lipgloss.Color("#2E5E8C")).
			Bold(true).
			PaddingLeft(1)

	patientStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	systemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7FB77E")).
			Italic(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E5A50A"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("#3C3C3C")).
			PaddingLeft(2).
			Foreground(lipgloss.Color("#AAAAAA"))

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4FC1E9")).
			Bold(true).
			Underline(true)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4FC1E9")).
			Bold(true)

	lockedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#555555"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#2EC27E")).
			Bold(true)

	failureStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E01B24")).
			Bold(true)
)
