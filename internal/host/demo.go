package host

import (
	"context"
	"sync"

	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/bridge"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ErrNoToken is returned by a DemoHost that has no auth token configured.
var ErrNoToken = errors.New("no auth token configured")

// TrackedEvent is one analytics event reported by the widget.
type TrackedEvent struct {
	Name string
	Data map[string]any
}

// DemoHost is a host page with fixed answers. It records navigation and
// analytics so a demo (or a test) can show what the widget reported.
type DemoHost struct {
	logger zerolog.Logger

	mu          sync.Mutex
	token       string
	info        bridge.ChatbotInfo
	open        bool
	navigations []string
	events      []TrackedEvent
}

var _ bridge.HostMethods = (*DemoHost)(nil)

func NewDemoHost(token string, info bridge.ChatbotInfo, logger zerolog.Logger) *DemoHost {
	return &DemoHost{
		token:  token,
		info:   info,
		logger: logger.With().Str("component", "demo-host").Logger(),
	}
}

// SetToken swaps the token handed to widgets, e.g. after a refresh.
func (d *DemoHost) SetToken(token string) {
	d.mu.Lock()
	d.token = token
	d.mu.Unlock()
}

func (d *DemoHost) GetAuthToken(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.token == "" {
		return "", ErrNoToken
	}
	return d.token, nil
}

func (d *DemoHost) ToggleChat(ctx context.Context) error {
	d.mu.Lock()
	d.open = !d.open
	open := d.open
	d.mu.Unlock()
	d.logger.Info().Bool("open", open).Msg("chat toggled")
	return nil
}

func (d *DemoHost) GetChatbotInfo(ctx context.Context) (bridge.ChatbotInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.info, nil
}

func (d *DemoHost) NotifyNavigation(ctx context.Context, path string) error {
	d.mu.Lock()
	d.navigations = append(d.navigations, path)
	d.mu.Unlock()
	d.logger.Info().Str("path", path).Msg("widget navigated")
	return nil
}

func (d *DemoHost) TrackEvent(ctx context.Context, name string, data map[string]any) error {
	d.mu.Lock()
	d.events = append(d.events, TrackedEvent{Name: name, Data: data})
	d.mu.Unlock()
	d.logger.Info().Str("event", name).Interface("data", data).Msg("widget event")
	return nil
}

// ChatOpen reports the toggle state as the host sees it
func (d *DemoHost) ChatOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

func (d *DemoHost) Navigations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.navigations...)
}

func (d *DemoHost) Events() []TrackedEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]TrackedEvent(nil), d.events...)
}
