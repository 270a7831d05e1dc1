// Package ui is the widget's terminal console: connection header, the chat
// transcript and an input box, driven by bubbletea.
package ui

import (
	"context"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/bridge"
	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/chat"
)

// Connection is the slice of the bridge manager the console drives.
type Connection interface {
	State() bridge.State
	Reconnect(ctx context.Context) error
	Stop()
}

// Model represents the console state
type Model struct {
	ctx    context.Context
	conn   Connection
	widget bridge.WidgetMethods

	width  int
	height int

	header       *ChatHeader
	chat         *Chat
	theme        *Theme
	errorHandler *ErrorHandler

	state      bridge.State
	transcript chat.State
	statusBar  string
	quitting   bool
}

// NewModel builds the console. User input goes through widget, the same
// methods the host page calls, so both paths update the transcript alike.
func NewModel(ctx context.Context, conn Connection, widget bridge.WidgetMethods) *Model {
	theme := DarkTheme()
	header := NewChatHeader(theme)
	header.SetState(conn.State())
	return &Model{
		ctx:          ctx,
		conn:         conn,
		widget:       widget,
		width:        80,
		height:       24,
		header:       header,
		chat:         NewChat(theme),
		theme:        theme,
		errorHandler: NewErrorHandler(),
		state:        conn.State(),
		statusBar:    "Ctrl+R reconnect | Ctrl+L reset | Ctrl+C quit",
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(tea.WindowSize(), textarea.Blink)
}

// SetDimensions updates the model dimensions
func (m *Model) SetDimensions(width, height int) {
	m.width = width
	m.height = height
	m.updateComponentSizes()
}

func (m *Model) updateComponentSizes() {
	if m.width == 0 || m.height == 0 {
		return
	}
	headerHeight := 2 // text plus bottom border
	statusBarHeight := 1
	m.header.SetSize(m.width)
	m.chat.SetSize(m.width, m.height-headerHeight-statusBarHeight)
}

func (m *Model) setTheme(theme *Theme) {
	m.theme = theme
	m.header.SetTheme(theme)
	m.chat.SetTheme(theme)
}

// State is the connection state last reported to the console
func (m Model) State() bridge.State { return m.state }

// StatusBar returns the current status line text
func (m Model) StatusBar() string { return m.statusBar }
