// Package channel implements the bidirectional RPC channel between the
// embedded widget and its host page: a two-frame handshake that exchanges
// method tables, then calls and replies in both directions.
package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// DefaultTimeout bounds the handshake when Config.Timeout is unset.
const DefaultTimeout = 10 * time.Second

// ErrNotReady rejects calls issued before the handshake completed.
var ErrNotReady = errors.New("connection not established")

// Handler serves one inbound method call.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// Role decides which side opens the handshake.
type Role int

const (
	// RoleChild is the embedded widget: it sends syn and waits for ack.
	RoleChild Role = iota
	// RoleParent is the host page: it waits for syn and answers with ack.
	RoleParent
)

// Config describes one connection attempt.
type Config struct {
	Role    Role
	Methods map[string]Handler
	Timeout time.Duration
	Debug   bool
	Logger  *zerolog.Logger
}

// Connection is a live channel over a Transport. It is created by Open and
// lives until Destroy, a handshake timeout, or a transport failure.
type Connection struct {
	id        string
	role      Role
	transport Transport
	methods   map[string]Handler
	debug     bool
	logger    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	pending   map[string]chan Message
	remote    []string
	remoteID  string
	readied   bool
	readyErr  error
	ready     chan struct{}
	destroyed bool
	err       error
	done      chan struct{}
	timer     *time.Timer
}

// Open starts the handshake over t and returns immediately. The connection
// owns t from now on and closes it when it dies.
func Open(t Transport, cfg Config) *Connection {
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	methods := cfg.Methods
	if methods == nil {
		methods = map[string]Handler{}
	}

	c := &Connection{
		id:        uuid.NewString(),
		role:      cfg.Role,
		transport: t,
		methods:   methods,
		debug:     cfg.Debug,
		pending:   make(map[string]chan Message),
		ready:     make(chan struct{}),
		done:      make(chan struct{}),
	}
	c.logger = logger.With().Str("component", "channel").Str("channel_id", c.id).Logger()
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.mu.Lock()
	c.timer = time.AfterFunc(timeout, c.handshakeTimedOut)
	c.mu.Unlock()

	go c.readLoop()
	if c.role == RoleChild {
		go func() {
			if err := c.send(c.ctx, Message{Type: MessageSyn, Methods: c.methodNames()}); err != nil {
				c.close(NewTransportError(errors.Wrap(err, "sending syn")))
			}
		}()
	}
	return c
}

// ID identifies this connection on the wire
func (c *Connection) ID() string { return c.id }

// Wait blocks until the handshake completes and returns the method names the
// other side exposes. It fails with ErrTimeout, a *TransportError,
// ErrDestroyed, or ctx's error.
func (c *Connection) Wait(ctx context.Context) ([]string, error) {
	select {
	case <-c.ready:
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.readyErr != nil {
			return nil, c.readyErr
		}
		return append([]string(nil), c.remote...), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done is closed when the connection dies for any reason
func (c *Connection) Done() <-chan struct{} { return c.done }

// Err reports why the connection died, or nil while it is alive.
func (c *Connection) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Destroy tears the connection down. Pending calls reject with ErrDestroyed
// and nothing is sent or accepted afterwards. Safe to call repeatedly.
func (c *Connection) Destroy() {
	c.close(ErrDestroyed)
}

// Call invokes method on the other side and decodes the result into out
// (which may be nil).
func (c *Connection) Call(ctx context.Context, method string, args any, out any) error {
	var raw json.RawMessage
	if args != nil {
		b, err := json.Marshal(args)
		if err != nil {
			return errors.Wrapf(err, "encoding args for %s", method)
		}
		raw = b
	}

	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return c.deadErr()
	}
	if !c.readied {
		c.mu.Unlock()
		return ErrNotReady
	}
	id := uuid.NewString()
	ch := make(chan Message, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.send(ctx, Message{Type: MessageCall, ID: id, Method: method, Args: raw}); err != nil {
		c.forget(id)
		if c.isDestroyed() {
			return c.deadErr()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return NewTransportError(errors.Wrapf(err, "sending %s", method))
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return &RemoteCallError{Method: method, Code: resp.Error.Code, Message: resp.Error.Message}
		}
		if out != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, out); err != nil {
				return errors.Wrapf(err, "decoding result of %s", method)
			}
		}
		return nil
	case <-c.done:
		return c.deadErr()
	case <-ctx.Done():
		c.forget(id)
		return ctx.Err()
	}
}

func (c *Connection) readLoop() {
	for {
		msg, err := c.transport.Receive(c.ctx)
		if err != nil {
			c.close(NewTransportError(err))
			return
		}
		if c.isDestroyed() {
			return
		}
		c.handle(msg)
	}
}

func (c *Connection) handle(msg Message) {
	if c.debug {
		c.logger.Debug().Str("type", string(msg.Type)).Str("method", msg.Method).Str("id", msg.ID).Msg("frame received")
	}

	switch msg.Type {
	case MessageSyn:
		if c.role != RoleParent {
			return
		}
		if err := c.send(c.ctx, Message{Type: MessageAck, Methods: c.methodNames()}); err != nil {
			c.close(NewTransportError(errors.Wrap(err, "sending ack")))
			return
		}
		c.resolve(msg)
	case MessageAck:
		if c.role != RoleChild {
			return
		}
		if msg.Error != nil {
			c.close(NewTransportError(errors.Errorf("handshake refused: %s", msg.Error.Message)))
			return
		}
		c.resolve(msg)
	case MessageCall:
		if c.foreign(msg) {
			return
		}
		go c.dispatch(msg)
	case MessageReply:
		if c.foreign(msg) {
			return
		}
		c.mu.Lock()
		ch, ok := c.pending[msg.ID]
		delete(c.pending, msg.ID)
		c.mu.Unlock()
		if ok {
			ch <- msg
		}
	default:
		c.logger.Debug().Str("type", string(msg.Type)).Msg("ignoring unknown frame")
	}
}

// foreign reports frames stamped by a different peer channel, e.g. leftovers
// from a previous connection sharing the same transport.
func (c *Connection) foreign(msg Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remoteID != "" && msg.ChannelID != "" && msg.ChannelID != c.remoteID
}

func (c *Connection) resolve(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readied || c.destroyed {
		return
	}
	c.readied = true
	c.remote = append([]string(nil), msg.Methods...)
	c.remoteID = msg.ChannelID
	c.timer.Stop()
	close(c.ready)
	c.logger.Debug().Strs("remote_methods", c.remote).Msg("handshake complete")
}

func (c *Connection) handshakeTimedOut() {
	c.mu.Lock()
	readied := c.readied
	c.mu.Unlock()
	if readied {
		return
	}
	c.close(ErrTimeout)
}

func (c *Connection) dispatch(msg Message) {
	reply := Message{Type: MessageReply, ID: msg.ID}

	handler, ok := c.methods[msg.Method]
	if !ok {
		reply.Error = &ErrorPayload{Code: codeMethodNotFound, Message: fmt.Sprintf("method not found: %s", msg.Method)}
	} else {
		result, err := c.invoke(handler, msg)
		if err == nil && result != nil {
			reply.Result, err = json.Marshal(result)
		}
		if err != nil {
			reply.Error = &ErrorPayload{Code: codeHandlerFailed, Message: err.Error()}
		}
	}

	if err := c.send(c.ctx, reply); err != nil && !c.isDestroyed() {
		c.logger.Warn().Err(err).Str("method", msg.Method).Msg("failed to send reply")
	}
}

func (c *Connection) invoke(h Handler, msg Message) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("%s panicked: %v", msg.Method, r)
		}
	}()
	return h(c.ctx, msg.Args)
}

func (c *Connection) send(ctx context.Context, msg Message) error {
	if c.isDestroyed() {
		return ErrDestroyed
	}
	msg.ChannelID = c.id
	if c.debug {
		c.logger.Debug().Str("type", string(msg.Type)).Str("method", msg.Method).Str("id", msg.ID).Msg("frame sent")
	}
	return c.transport.Send(ctx, msg)
}

func (c *Connection) close(reason error) {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.destroyed = true
	c.err = reason
	if !c.readied {
		c.readyErr = reason
		close(c.ready)
	}
	c.pending = map[string]chan Message{}
	c.timer.Stop()
	close(c.done)
	c.mu.Unlock()

	c.cancel()
	if err := c.transport.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("closing transport")
	}
	if errors.Is(reason, ErrDestroyed) {
		c.logger.Debug().Msg("connection destroyed")
	} else {
		c.logger.Warn().Err(reason).Msg("connection closed")
	}
}

// deadErr is what calls on a dead connection reject with
func (c *Connection) deadErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var te *TransportError
	if errors.As(c.err, &te) {
		return c.err
	}
	return ErrDestroyed
}

func (c *Connection) isDestroyed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed
}

func (c *Connection) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Connection) methodNames() []string {
	names := make([]string, 0, len(c.methods))
	for name := range c.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
