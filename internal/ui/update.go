package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/bridge"
	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/chat"
	"github.com/pkg/errors"
)

// Update handles all state transitions
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			m.conn.Stop()
			return m, tea.Quit
		case "ctrl+r":
			m.statusBar = "Reconnecting..."
			m.errorHandler.Reset()
			return m, m.reconnect()
		case "ctrl+l":
			m.statusBar = "Conversation reset"
			return m, m.reset()
		case "enter":
			text := m.chat.TakeInput()
			if text == "" {
				return m, nil
			}
			return m, m.send(text)
		}
		return m, m.chat.Update(msg)

	case tea.WindowSizeMsg:
		m.SetDimensions(msg.Width, msg.Height)
		return m, nil

	case ConnectionMsg:
		m.handleConnection(msg.Event)
		return m, nil

	case ReconnectResultMsg:
		if msg.Err != nil {
			m.showError(msg.Err, "Reconnect")
		}
		return m, nil

	case TranscriptMsg:
		m.transcript = msg.State
		m.chat.SetMessages(msg.State.Messages, msg.State.IsLoading)
		m.header.SetProgress(msg.State.CurrentStep, len(msg.State.Messages))
		if msg.State.Error != "" {
			m.statusBar = "Error: " + msg.State.Error
		}
		return m, nil

	case SendResultMsg:
		if msg.Err != nil {
			m.showError(msg.Err, "Send")
		}
		return m, nil

	case AuthTokenMsg:
		m.header.SetAuthorized(!msg.Result.Loading && msg.Result.Err == nil && msg.Result.Value != "")
		if msg.Result.Err != nil {
			m.showError(msg.Result.Err, "Auth token")
		}
		return m, nil

	case ChatbotInfoMsg:
		if msg.Result.Err != nil {
			m.showError(msg.Result.Err, "Chatbot info")
			return m, nil
		}
		if !msg.Result.Loading {
			m.header.SetUser(msg.Result.Value.UserName)
			m.setTheme(ThemeFor(msg.Result.Value.Theme))
		}
		return m, nil

	case ErrorMsg:
		m.showError(msg.Err, msg.Component)
		return m, nil
	}

	return m, m.chat.Update(msg)
}

func (m *Model) handleConnection(ev bridge.StateEvent) {
	m.state = ev.New
	m.header.SetState(ev.New)

	switch ev.New {
	case bridge.StateConnected:
		m.errorHandler.Reset()
		m.statusBar = "Connected to host"
	case bridge.StateConnecting:
		m.statusBar = "Connecting to host..."
	case bridge.StateError:
		m.showError(ev.Err, "Connection")
	case bridge.StateDisconnected:
		m.header.SetAuthorized(false)
		m.statusBar = "Disconnected (Ctrl+R to reconnect)"
	}
}

func (m *Model) showError(err error, component string) {
	if display, message := m.errorHandler.HandleError(err, component); display {
		m.statusBar = message
	}
}

func (m Model) reconnect() tea.Cmd {
	ctx, conn := m.ctx, m.conn
	return func() tea.Msg {
		return ReconnectResultMsg{Err: conn.Reconnect(ctx)}
	}
}

func (m Model) send(text string) tea.Cmd {
	ctx, widget := m.ctx, m.widget
	return func() tea.Msg {
		err := widget.SendMessage(ctx, text)
		if errors.Is(err, chat.ErrEmptyMessage) {
			err = nil
		}
		return SendResultMsg{Text: text, Err: err}
	}
}

func (m Model) reset() tea.Cmd {
	ctx, widget := m.ctx, m.widget
	return func() tea.Msg {
		if err := widget.ResetChat(ctx); err != nil {
			return ErrorMsg{Err: errors.Wrap(err, "reset"), Component: "Chat"}
		}
		return nil
	}
}
