package ui

import (
	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/bridge"
	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/chat"
)

// Connection messages
type ConnectionMsg struct{ Event bridge.StateEvent }
type ReconnectResultMsg struct{ Err error }

// Transcript messages
type TranscriptMsg struct{ State chat.State }
type SendResultMsg struct {
	Text string
	Err  error
}

// Host data fetched once per connection
type AuthTokenMsg struct{ Result bridge.Result[string] }
type ChatbotInfoMsg struct{ Result bridge.Result[bridge.ChatbotInfo] }

// ErrorMsg surfaces a failure from a background command.
type ErrorMsg struct {
	Err       error
	Component string
}
