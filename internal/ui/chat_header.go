package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/bridge"
	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/chat"
)

// ChatHeader shows connection state, who is chatting and form progress.
type ChatHeader struct {
	width        int
	state        bridge.State
	userName     string
	authorized   bool
	step         int
	messageCount int
	theme        *Theme
}

func NewChatHeader(theme *Theme) *ChatHeader {
	return &ChatHeader{
		width: 80,
		state: bridge.StateConnecting,
		theme: theme,
	}
}

// View renders the chat header
func (h ChatHeader) View() string {
	headerStyle := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(h.theme.Border).
		Padding(0, 1)

	indicator := "○"
	switch h.state {
	case bridge.StateConnected:
		indicator = "●"
	case bridge.StateConnecting:
		indicator = "◐"
	case bridge.StateError:
		indicator = "✕"
	}
	connStatus := lipgloss.NewStyle().
		Foreground(h.theme.StateColor(h.state)).
		Render(fmt.Sprintf("%s %s", indicator, h.state))

	who := "guest"
	if h.userName != "" {
		who = h.userName
	}
	if h.authorized {
		who += " 🔑"
	}
	leftContent := fmt.Sprintf("%s | %s", connStatus, who)

	rightContent := fmt.Sprintf("Step %d/%d: %s | Messages: %d",
		h.step+1, len(chat.Steps), stepTitle(h.step), h.messageCount)

	leftWidth := lipgloss.Width(leftContent)
	rightWidth := lipgloss.Width(rightContent)
	padding := h.width - leftWidth - rightWidth - 4 // borders and padding
	if padding < 1 {
		padding = 1
	}

	spacer := lipgloss.NewStyle().Width(padding).Render(" ")
	return headerStyle.Width(h.width).Render(leftContent + spacer + rightContent)
}

func stepTitle(step int) string {
	if step < 0 || step >= len(chat.Steps) {
		return ""
	}
	return chat.Steps[step]
}

func (h *ChatHeader) SetSize(width int) {
	h.width = width
}

func (h *ChatHeader) SetState(s bridge.State) {
	h.state = s
}

func (h *ChatHeader) SetUser(name string) {
	h.userName = name
}

// SetAuthorized marks whether a host token is in hand.
func (h *ChatHeader) SetAuthorized(ok bool) {
	h.authorized = ok
}

func (h *ChatHeader) SetProgress(step, messages int) {
	h.step = step
	h.messageCount = messages
}

func (h *ChatHeader) SetTheme(theme *Theme) {
	h.theme = theme
}
