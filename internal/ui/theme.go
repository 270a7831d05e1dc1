package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/bridge"
)

// Theme is the console's color scheme.
type Theme struct {
	Name string

	// glamour's standard style for assistant markdown
	MarkdownStyle string

	Border        lipgloss.Color
	StatusBar     lipgloss.Color
	StatusBarText lipgloss.Color
	UserText      lipgloss.Color
	Muted         lipgloss.Color

	Connected    lipgloss.Color
	Connecting   lipgloss.Color
	Disconnected lipgloss.Color
	Error        lipgloss.Color
}

func DarkTheme() *Theme {
	return &Theme{
		Name:          string(bridge.ThemeDark),
		MarkdownStyle: "dark",
		Border:        lipgloss.Color("240"),
		StatusBar:     lipgloss.Color("236"),
		StatusBarText: lipgloss.Color("252"),
		UserText:      lipgloss.Color("117"),
		Muted:         lipgloss.Color("245"),
		Connected:     lipgloss.Color("46"),
		Connecting:    lipgloss.Color("226"),
		Disconnected:  lipgloss.Color("240"),
		Error:         lipgloss.Color("196"),
	}
}

func LightTheme() *Theme {
	return &Theme{
		Name:          string(bridge.ThemeLight),
		MarkdownStyle: "light",
		Border:        lipgloss.Color("250"),
		StatusBar:     lipgloss.Color("254"),
		StatusBarText: lipgloss.Color("235"),
		UserText:      lipgloss.Color("25"),
		Muted:         lipgloss.Color("244"),
		Connected:     lipgloss.Color("28"),
		Connecting:    lipgloss.Color("136"),
		Disconnected:  lipgloss.Color("250"),
		Error:         lipgloss.Color("160"),
	}
}

// ThemeFor picks the scheme the host asked for, dark by default.
func ThemeFor(t bridge.Theme) *Theme {
	if t == bridge.ThemeLight {
		return LightTheme()
	}
	return DarkTheme()
}

// StateColor is the indicator color for a connection state
func (t *Theme) StateColor(s bridge.State) lipgloss.Color {
	switch s {
	case bridge.StateConnected:
		return t.Connected
	case bridge.StateConnecting:
		return t.Connecting
	case bridge.StateError:
		return t.Error
	default:
		return t.Disconnected
	}
}
