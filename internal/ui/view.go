package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// View renders the entire UI
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.header.View(),
		m.chat.View(),
		m.renderStatusBar(),
	)
}

// renderStatusBar renders the status bar
func (m Model) renderStatusBar() string {
	style := lipgloss.NewStyle().
		Foreground(m.theme.StatusBarText).
		Background(m.theme.StatusBar)

	status := " " + m.statusBar
	if m.transcript.UploadMode {
		status += " | upload mode"
	}
	if padding := m.width - lipgloss.Width(status); padding > 0 {
		status += strings.Repeat(" ", padding)
	}
	return style.Render(status)
}
