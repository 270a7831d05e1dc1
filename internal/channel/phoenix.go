package channel

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"

	"github.com/nshafer/phx"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// phoenixEvent is the channel event both sides push frames under. The host
// backend relays it between the widget's and the page's subscriptions.
const phoenixEvent = "widget:frame"

// phoenixTransport carries frames over a joined Phoenix channel.
type phoenixTransport struct {
	socket  *phx.Socket
	channel *phx.Channel
	logger  zerolog.Logger

	inbox  chan Message
	once   sync.Once
	closed chan struct{}

	mu  sync.Mutex
	err error
}

// PhoenixConfig holds what is needed to reach the relay channel
type PhoenixConfig struct {
	URL    string
	Topic  string
	APIKey string
	Params map[string]string
}

// DialPhoenix connects the socket, joins the topic and waits for the join
// reply (or ctx).
func DialPhoenix(ctx context.Context, cfg PhoenixConfig, logger zerolog.Logger) (Transport, error) {
	endPoint, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing phoenix url %q", cfg.URL)
	}
	if cfg.APIKey != "" {
		q := endPoint.Query()
		q.Set("api_key", cfg.APIKey)
		endPoint.RawQuery = q.Encode()
	}

	t := &phoenixTransport{
		logger: logger.With().Str("component", "phoenix").Str("topic", cfg.Topic).Logger(),
		inbox:  make(chan Message, 64),
		closed: make(chan struct{}),
	}

	socket := phx.NewSocket(endPoint)
	socket.Logger = NewPhxLogger(t.logger)
	socket.OnError(func(err error) {
		t.fail(errors.Wrap(err, "phoenix socket error"))
	})
	socket.OnClose(func() {
		t.fail(errors.New("phoenix socket closed"))
	})
	if err := socket.Connect(); err != nil {
		return nil, errors.Wrap(err, "connecting phoenix socket")
	}
	t.socket = socket

	channel := socket.Channel(cfg.Topic, cfg.Params)
	t.channel = channel
	channel.On(phoenixEvent, t.deliver)

	joined := make(chan error, 1)
	join, err := channel.Join()
	if err != nil {
		_ = t.Close()
		return nil, errors.Wrapf(err, "joining %s", cfg.Topic)
	}
	join.Receive("ok", func(response any) {
		joined <- nil
	})
	join.Receive("error", func(response any) {
		joined <- errors.Errorf("failed to join channel: %v", response)
	})
	join.Receive("timeout", func(response any) {
		joined <- errors.New("timeout joining channel")
	})

	select {
	case err := <-joined:
		if err != nil {
			_ = t.Close()
			return nil, err
		}
	case <-ctx.Done():
		_ = t.Close()
		return nil, ctx.Err()
	}
	return t, nil
}

func (t *phoenixTransport) deliver(payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		t.logger.Warn().Err(err).Msg("dropping unencodable payload")
		return
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.logger.Warn().Err(err).Msg("dropping malformed frame")
		return
	}
	select {
	case t.inbox <- msg:
	case <-t.closed:
	}
}

func (t *phoenixTransport) fail(err error) {
	t.mu.Lock()
	if t.err == nil {
		t.err = err
	}
	t.mu.Unlock()
	t.once.Do(func() { close(t.closed) })
}

func (t *phoenixTransport) Send(ctx context.Context, msg Message) error {
	select {
	case <-t.closed:
		return t.closedErr()
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if _, err := t.channel.Push(phoenixEvent, msg); err != nil {
		return errors.Wrap(err, "phoenix push")
	}
	return nil
}

func (t *phoenixTransport) Receive(ctx context.Context) (Message, error) {
	select {
	case msg := <-t.inbox:
		return msg, nil
	case <-t.closed:
		return Message{}, t.closedErr()
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

func (t *phoenixTransport) Close() error {
	t.fail(ErrClosed)
	if t.channel != nil {
		_, _ = t.channel.Leave()
	}
	if t.socket != nil {
		return t.socket.Disconnect()
	}
	return nil
}

func (t *phoenixTransport) closedErr() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return t.err
	}
	return ErrClosed
}
