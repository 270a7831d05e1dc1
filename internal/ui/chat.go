package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/chat"
)

const inputHeight = 3

// Chat is the transcript viewport plus the input box.
type Chat struct {
	messages []chat.Message
	loading  bool
	viewport viewport.Model
	input    textarea.Model
	width    int
	height   int
	theme    *Theme

	renderer *glamour.TermRenderer
	rendered map[string]string // message id -> rendered markdown
}

func NewChat(theme *Theme) *Chat {
	vp := viewport.New(0, 0)

	ta := textarea.New()
	ta.Placeholder = "Type a message... (Enter to send, Alt+Enter for newline)"
	ta.ShowLineNumbers = false
	ta.SetHeight(inputHeight)
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter"))
	ta.Focus()

	c := &Chat{
		viewport: vp,
		input:    ta,
		width:    80,
		height:   24,
		theme:    theme,
		rendered: make(map[string]string),
	}
	c.SetSize(c.width, c.height)
	return c
}

// SetSize updates dimensions and rebuilds the markdown renderer for the new
// wrap width.
func (c *Chat) SetSize(width, height int) {
	c.width = width
	c.height = height
	c.viewport.Width = width
	c.viewport.Height = max(height-inputHeight-2, 1) // input plus its border
	c.input.SetWidth(width)
	c.resetRenderer()
}

func (c *Chat) SetTheme(theme *Theme) {
	if c.theme != nil && c.theme.Name == theme.Name {
		return
	}
	c.theme = theme
	c.resetRenderer()
}

func (c *Chat) resetRenderer() {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(c.theme.MarkdownStyle),
		glamour.WithWordWrap(max(c.width-4, 20)),
	)
	if err != nil {
		r = nil
	}
	c.renderer = r
	c.rendered = make(map[string]string)
	c.refresh()
}

// SetMessages replaces the transcript and scrolls to the newest message.
func (c *Chat) SetMessages(msgs []chat.Message, loading bool) {
	c.messages = msgs
	c.loading = loading
	c.refresh()
}

func (c *Chat) refresh() {
	c.viewport.SetContent(c.buildContent())
	c.viewport.GotoBottom()
}

func (c *Chat) buildContent() string {
	if len(c.messages) == 0 && !c.loading {
		return lipgloss.NewStyle().Foreground(c.theme.Muted).Render(
			"Hi! I can help you register your company. Tell me what you'd like to set up.")
	}

	userStyle := lipgloss.NewStyle().Foreground(c.theme.UserText).Bold(true)
	mutedStyle := lipgloss.NewStyle().Foreground(c.theme.Muted).Italic(true)

	var b strings.Builder
	for _, msg := range c.messages {
		switch msg.Role {
		case chat.RoleUser:
			b.WriteString(userStyle.Render("You: "))
			b.WriteString(msg.Content)
			b.WriteString("\n\n")
		case chat.RoleAssistant:
			b.WriteString(c.renderMarkdown(msg))
		default:
			b.WriteString(mutedStyle.Render(msg.Content))
			b.WriteString("\n\n")
		}
	}
	if c.loading {
		b.WriteString(mutedStyle.Render("Assistant is typing..."))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (c *Chat) renderMarkdown(msg chat.Message) string {
	if out, ok := c.rendered[msg.ID]; ok {
		return out
	}
	out := msg.Content + "\n\n"
	if c.renderer != nil {
		if styled, err := c.renderer.Render(msg.Content); err == nil {
			out = styled
		}
	}
	if msg.ID != "" {
		c.rendered[msg.ID] = out
	}
	return out
}

// TakeInput returns the trimmed input and clears the box.
func (c *Chat) TakeInput() string {
	text := strings.TrimSpace(c.input.Value())
	c.input.Reset()
	return text
}

// Update forwards keys to the input and everything else to the viewport.
func (c *Chat) Update(msg tea.Msg) tea.Cmd {
	var cmds []tea.Cmd
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if k := msg.String(); k == "pgup" || k == "pgdown" {
			c.viewport, cmd = c.viewport.Update(msg)
			return cmd
		}
		c.input, cmd = c.input.Update(msg)
		cmds = append(cmds, cmd)
	default:
		c.viewport, cmd = c.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}
	return tea.Batch(cmds...)
}

func (c *Chat) View() string {
	inputStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder(), true, false, false, false).
		BorderForeground(c.theme.Border)
	return lipgloss.JoinVertical(lipgloss.Left,
		c.viewport.View(),
		inputStyle.Render(c.input.View()),
	)
}
