package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/tigawanna/pomodoro-panda/internal/completion"
	"github.com/tigawanna/pomodoro-panda/internal/timer"
)

// Color palette
var (
	colorPrimary   = lipgloss.Color("#E8505B")
	colorSecondary = lipgloss.Color("#2EC4B6")
	colorMuted     = lipgloss.Color("#666666")
	colorSuccess   = lipgloss.Color("#2ECC71")
	colorWarning   = lipgloss.Color("#F39C12")
	colorError     = lipgloss.Color("#E74C3C")
	colorFg        = lipgloss.Color("#C0CAF5")
	colorSubtle    = lipgloss.Color("#414868")
	colorHighlight = lipgloss.Color("#7AA2F7")
)

// Styles
var (
	// Tabs
	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary).
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(colorPrimary).
			Padding(0, 2)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(colorMuted).
				Padding(0, 2)

	// Panels
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorSubtle).
			Padding(1, 2)

	activePanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorPrimary).
				Padding(1, 2)

	// Text
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorFg)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	successStyle = lipgloss.NewStyle().
			Foreground(colorSuccess)

	warningStyle = lipgloss.NewStyle().
			Foreground(colorWarning)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError)

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	highlightStyle = lipgloss.NewStyle().
			Foreground(colorHighlight)

	// Header/footer
	headerStyle = lipgloss.NewStyle().
			Padding(0, 1)

	footerStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Padding(0, 1)

	// List items
	selectedItemStyle = lipgloss.NewStyle().
				Foreground(colorPrimary).
				Bold(true)

	normalItemStyle = lipgloss.NewStyle().
			Foreground(colorFg)

	categoryStyle = lipgloss.NewStyle().
			Foreground(colorSecondary)
)

func phaseColor(p timer.Phase) lipgloss.Color {
	switch p {
	case timer.PhaseBreak:
		return colorSuccess
	case timer.PhaseLongBreak:
		return colorHighlight
	default:
		return colorPrimary
	}
}

func phaseStyle(p timer.Phase) lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(phaseColor(p))
}

func noticeStyle(s completion.Severity) lipgloss.Style {
	switch s {
	case completion.SeverityError:
		return errorStyle
	case completion.SeveritySuccess:
		return successStyle
	default:
		return highlightStyle
	}
}
