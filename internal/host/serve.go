// Package host is the page side of the widget bridge: it answers the
// widget's handshake, serves host methods and can call back into the widget.
package host

import (
	"context"
	"time"

	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/bridge"
	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/channel"
	"github.com/rs/zerolog"
)

// Client is one handshaken widget as seen from the host page. The embedded
// WidgetClient calls widget methods.
type Client struct {
	*bridge.WidgetClient

	conn    *channel.Connection
	methods []string
}

// ServeOption tunes Serve
type ServeOption func(*serveConfig)

type serveConfig struct {
	timeout time.Duration
	debug   bool
	logger  zerolog.Logger
}

func WithTimeout(d time.Duration) ServeOption {
	return func(c *serveConfig) { c.timeout = d }
}

func WithDebug(enabled bool) ServeOption {
	return func(c *serveConfig) { c.debug = enabled }
}

func WithLogger(logger zerolog.Logger) ServeOption {
	return func(c *serveConfig) { c.logger = logger }
}

// Serve opens the host side of a channel over t, serving h, and blocks until
// the widget's handshake completes. On failure the channel is destroyed.
func Serve(ctx context.Context, t channel.Transport, h bridge.HostMethods, opts ...ServeOption) (*Client, error) {
	cfg := serveConfig{timeout: channel.DefaultTimeout, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	conn := channel.Open(t, channel.Config{
		Role:    channel.RoleParent,
		Methods: bridge.HostHandlers(h),
		Timeout: cfg.timeout,
		Debug:   cfg.debug,
		Logger:  &cfg.logger,
	})
	methods, err := conn.Wait(ctx)
	if err != nil {
		conn.Destroy()
		return nil, err
	}
	return &Client{
		WidgetClient: bridge.NewWidgetClient(conn),
		conn:         conn,
		methods:      methods,
	}, nil
}

// ID is the channel id shared with the widget
func (c *Client) ID() string { return c.conn.ID() }

// Methods lists what the widget advertised.
func (c *Client) Methods() []string {
	return append([]string(nil), c.methods...)
}

// Done is closed when the widget goes away.
func (c *Client) Done() <-chan struct{} { return c.conn.Done() }

// Err explains why Done closed
func (c *Client) Err() error { return c.conn.Err() }

// Close drops the connection to the widget.
func (c *Client) Close() { c.conn.Destroy() }
