package bridge

import (
	"context"
	"encoding/json"

	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/channel"
	"github.com/pkg/errors"
)

// Method names on the wire. Arguments travel as a JSON array of positional
// parameters.
const (
	MethodGetAuthToken     = "getAuthToken"
	MethodToggleChat       = "toggleChat"
	MethodGetChatbotInfo   = "getChatbotInfo"
	MethodNotifyNavigation = "notifyNavigation"
	MethodTrackEvent       = "trackEvent"

	MethodOpenChat     = "openChat"
	MethodCloseChat    = "closeChat"
	MethodSendMessage  = "sendMessage"
	MethodResetChat    = "resetChat"
	MethodGetChatState = "getChatState"
)

// Theme is the host's colour scheme hint
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ChatbotInfo is what the host knows about the signed-in user.
type ChatbotInfo struct {
	UserID    string `json:"userId"`
	UserName  string `json:"userName,omitempty"`
	UserEmail string `json:"userEmail,omitempty"`
	Locale    string `json:"locale,omitempty"`
	Theme     Theme  `json:"theme,omitempty"`
}

// ChatState is the widget's answer to getChatState.
type ChatState struct {
	IsOpen        bool   `json:"isOpen"`
	MessageCount  int    `json:"messageCount"`
	CurrentStep   int    `json:"currentStep,omitempty"`
	ApplicationID string `json:"applicationId,omitempty"`
}

// HostMethods is what the host page exposes to the widget.
type HostMethods interface {
	GetAuthToken(ctx context.Context) (string, error)
	ToggleChat(ctx context.Context) error
	GetChatbotInfo(ctx context.Context) (ChatbotInfo, error)
	NotifyNavigation(ctx context.Context, path string) error
	TrackEvent(ctx context.Context, name string, data map[string]any) error
}

// WidgetMethods is what the widget exposes to the host page. The host may
// call these at any time, including before the widget UI exists.
type WidgetMethods interface {
	OpenChat(ctx context.Context) error
	CloseChat(ctx context.Context) error
	SendMessage(ctx context.Context, text string) error
	ResetChat(ctx context.Context) error
	GetChatState(ctx context.Context) (ChatState, error)
}

// HostClient calls host methods over one live connection. It is only valid
// for the connection it was created for.
type HostClient struct {
	conn    *channel.Connection
	methods map[string]bool
}

var _ HostMethods = (*HostClient)(nil)

// NewHostClient wraps conn; methods are the names the host advertised in
// the handshake.
func NewHostClient(conn *channel.Connection, methods []string) *HostClient {
	set := make(map[string]bool, len(methods))
	for _, name := range methods {
		set[name] = true
	}
	return &HostClient{conn: conn, methods: set}
}

// Has reports whether the host advertised name
func (h *HostClient) Has(name string) bool { return h.methods[name] }

func (h *HostClient) GetAuthToken(ctx context.Context) (string, error) {
	var token string
	err := h.conn.Call(ctx, MethodGetAuthToken, []any{}, &token)
	return token, err
}

func (h *HostClient) ToggleChat(ctx context.Context) error {
	return h.conn.Call(ctx, MethodToggleChat, []any{}, nil)
}

func (h *HostClient) GetChatbotInfo(ctx context.Context) (ChatbotInfo, error) {
	var info ChatbotInfo
	err := h.conn.Call(ctx, MethodGetChatbotInfo, []any{}, &info)
	return info, err
}

func (h *HostClient) NotifyNavigation(ctx context.Context, path string) error {
	return h.conn.Call(ctx, MethodNotifyNavigation, []any{path}, nil)
}

func (h *HostClient) TrackEvent(ctx context.Context, name string, data map[string]any) error {
	args := []any{name}
	if data != nil {
		args = append(args, data)
	}
	return h.conn.Call(ctx, MethodTrackEvent, args, nil)
}

// WidgetClient is the host page's view of the widget.
type WidgetClient struct {
	conn *channel.Connection
}

var _ WidgetMethods = (*WidgetClient)(nil)

// NewWidgetClient wraps a host-side connection
func NewWidgetClient(conn *channel.Connection) *WidgetClient {
	return &WidgetClient{conn: conn}
}

func (w *WidgetClient) OpenChat(ctx context.Context) error {
	return w.conn.Call(ctx, MethodOpenChat, []any{}, nil)
}

func (w *WidgetClient) CloseChat(ctx context.Context) error {
	return w.conn.Call(ctx, MethodCloseChat, []any{}, nil)
}

func (w *WidgetClient) SendMessage(ctx context.Context, text string) error {
	return w.conn.Call(ctx, MethodSendMessage, []any{text}, nil)
}

func (w *WidgetClient) ResetChat(ctx context.Context) error {
	return w.conn.Call(ctx, MethodResetChat, []any{}, nil)
}

func (w *WidgetClient) GetChatState(ctx context.Context) (ChatState, error) {
	var state ChatState
	err := w.conn.Call(ctx, MethodGetChatState, []any{}, &state)
	return state, err
}

// WidgetHandlers exposes w as channel handlers. A nil w yields no-op
// handlers so early host calls are still answered.
func WidgetHandlers(w WidgetMethods) map[string]channel.Handler {
	if w == nil {
		w = noopWidget{}
	}
	return map[string]channel.Handler{
		MethodOpenChat: func(ctx context.Context, _ json.RawMessage) (any, error) {
			return nil, w.OpenChat(ctx)
		},
		MethodCloseChat: func(ctx context.Context, _ json.RawMessage) (any, error) {
			return nil, w.CloseChat(ctx)
		},
		MethodSendMessage: func(ctx context.Context, raw json.RawMessage) (any, error) {
			var text string
			if err := DecodeArgs(raw, &text); err != nil {
				return nil, err
			}
			return nil, w.SendMessage(ctx, text)
		},
		MethodResetChat: func(ctx context.Context, _ json.RawMessage) (any, error) {
			return nil, w.ResetChat(ctx)
		},
		MethodGetChatState: func(ctx context.Context, _ json.RawMessage) (any, error) {
			return w.GetChatState(ctx)
		},
	}
}

// HostHandlers exposes h as channel handlers for the host side.
func HostHandlers(h HostMethods) map[string]channel.Handler {
	return map[string]channel.Handler{
		MethodGetAuthToken: func(ctx context.Context, _ json.RawMessage) (any, error) {
			return h.GetAuthToken(ctx)
		},
		MethodToggleChat: func(ctx context.Context, _ json.RawMessage) (any, error) {
			return nil, h.ToggleChat(ctx)
		},
		MethodGetChatbotInfo: func(ctx context.Context, _ json.RawMessage) (any, error) {
			return h.GetChatbotInfo(ctx)
		},
		MethodNotifyNavigation: func(ctx context.Context, raw json.RawMessage) (any, error) {
			var path string
			if err := DecodeArgs(raw, &path); err != nil {
				return nil, err
			}
			return nil, h.NotifyNavigation(ctx, path)
		},
		MethodTrackEvent: func(ctx context.Context, raw json.RawMessage) (any, error) {
			var name string
			var data map[string]any
			if err := DecodeArgs(raw, &name, &data); err != nil {
				return nil, err
			}
			return nil, h.TrackEvent(ctx, name, data)
		},
	}
}

// DecodeArgs unpacks a positional argument array into dst. Missing trailing
// arguments leave their destinations untouched.
func DecodeArgs(raw json.RawMessage, dst ...any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var args []json.RawMessage
	if err := json.Unmarshal(raw, &args); err != nil {
		return errors.Wrap(err, "arguments must be a JSON array")
	}
	for i, d := range dst {
		if i >= len(args) {
			break
		}
		if err := json.Unmarshal(args[i], d); err != nil {
			return errors.Wrapf(err, "decoding argument %d", i)
		}
	}
	return nil
}

type noopWidget struct{}

func (noopWidget) OpenChat(context.Context) error                  { return nil }
func (noopWidget) CloseChat(context.Context) error                 { return nil }
func (noopWidget) SendMessage(context.Context, string) error       { return nil }
func (noopWidget) ResetChat(context.Context) error                 { return nil }
func (noopWidget) GetChatState(context.Context) (ChatState, error) { return ChatState{}, nil }
