// Package bridge owns the widget's connection to its host page: it decides
// whether to connect at all, drives the handshake, retries transient
// failures and tears the channel down on request.
package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/channel"
	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/frame"
	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/origin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ReconnectDelay is how long the manager waits before retrying a timed out
// or failed connection.
const ReconnectDelay = 5 * time.Second

// Dialer opens the transport to the parent page at parentOrigin.
type Dialer interface {
	Dial(ctx context.Context, parentOrigin string) (channel.Transport, error)
}

// DialerFunc adapts a function to Dialer
type DialerFunc func(ctx context.Context, parentOrigin string) (channel.Transport, error)

func (f DialerFunc) Dial(ctx context.Context, parentOrigin string) (channel.Transport, error) {
	return f(ctx, parentOrigin)
}

// Scheduler runs f once after d. The returned function cancels it and
// reports whether it was still pending.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

type clock struct{}

func (clock) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// Option configures a Manager
type Option func(*Manager)

// WithConnectionTimeout bounds each attempt, dial and handshake together
// (default channel.DefaultTimeout).
func WithConnectionTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithAutoReconnect toggles the scheduled retry after transient failures (default on).
func WithAutoReconnect(enabled bool) Option {
	return func(m *Manager) { m.autoReconnect = enabled }
}

// WithDebug logs every channel frame
func WithDebug(enabled bool) Option {
	return func(m *Manager) { m.debug = enabled }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithScheduler replaces the wall clock used for retries.
func WithScheduler(s Scheduler) Option {
	return func(m *Manager) {
		if s != nil {
			m.scheduler = s
		}
	}
}

// Manager is the single owner of the widget's connection to its host. At
// most one channel is alive at any time; every new attempt destroys the
// previous channel before dialing.
type Manager struct {
	frame         *frame.Context
	policy        *origin.Policy
	dialer        Dialer
	widget        WidgetMethods
	timeout       time.Duration
	autoReconnect bool
	debug         bool
	logger        zerolog.Logger
	channelLogger zerolog.Logger
	scheduler     Scheduler

	// openMu is held while a channel is destroyed or created.
	openMu sync.Mutex

	mu            sync.Mutex
	state         State
	err           error
	host          *HostClient
	conn          *channel.Connection
	gen           uint64
	cancelAttempt context.CancelFunc
	retryCtx      context.Context
	retryStop     func() bool
	retryToken    uint64
	subs          map[int]func(StateEvent)
	nextSub       int
	queue         []StateEvent
	flushing      bool
}

// New builds a manager in the connecting state. widget may be nil, in which
// case host calls are answered with no-ops.
func New(fc *frame.Context, policy *origin.Policy, dialer Dialer, widget WidgetMethods, opts ...Option) *Manager {
	m := &Manager{
		frame:         fc,
		policy:        policy,
		dialer:        dialer,
		widget:        widget,
		timeout:       channel.DefaultTimeout,
		autoReconnect: true,
		logger:        zerolog.Nop(),
		scheduler:     clock{},
		state:         StateConnecting,
		subs:          make(map[int]func(StateEvent)),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.channelLogger = m.logger
	m.logger = m.logger.With().Str("component", "bridge").Logger()
	return m
}

// State returns the current connection state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Err returns the error behind StateError, nil otherwise.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Host returns the host client while connected, nil otherwise.
func (m *Manager) Host() *HostClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.host
}

func (m *Manager) snapshot() StateEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return StateEvent{Old: m.state, New: m.state, Err: m.err, Host: m.host, Generation: m.gen}
}

// Subscribe registers fn for state transitions. Events arrive in order and
// never concurrently. fn may call back into the manager.
func (m *Manager) Subscribe(fn func(StateEvent)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Start runs one connection attempt and blocks until it settles. It cancels
// any pending retry first. The returned error is also reflected in State
// and Err; nil means connected or deliberately disconnected (not embedded).
// If ctx ends before the handshake completes the attempt is abandoned and
// the manager goes to disconnected without a retry.
func (m *Manager) Start(ctx context.Context) error {
	return m.attempt(ctx, nil)
}

// Reconnect destroys the current channel, cancels any pending retry and
// starts over.
func (m *Manager) Reconnect(ctx context.Context) error {
	m.logger.Info().Msg("reconnect requested")
	return m.attempt(ctx, nil)
}

// Stop destroys the current channel, cancels any pending retry and moves
// to disconnected. Safe to call at any time.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.gen++
	gen := m.gen
	m.abortLocked()
	m.mu.Unlock()

	m.openMu.Lock()
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		m.openMu.Unlock()
		return
	}
	conn := m.takeConnLocked()
	m.setStateLocked(StateDisconnected, nil, nil)
	m.mu.Unlock()
	if conn != nil {
		conn.Destroy()
	}
	m.openMu.Unlock()

	m.logger.Debug().Msg("stopped")
	m.flush()
}

// Activate starts the manager and stops it again once ctx is done or the
// host page unloads.
func (m *Manager) Activate(ctx context.Context) error {
	err := m.Start(ctx)
	go func() {
		select {
		case <-ctx.Done():
		case <-m.frame.Unloading():
			m.logger.Debug().Msg("host page unloading")
		}
		m.Stop()
	}()
	return err
}

// attempt runs one connection attempt. A non-nil guard is checked with mu
// held before the attempt claims a generation; false means it was
// superseded and nothing happens.
func (m *Manager) attempt(ctx context.Context, guard func() bool) error {
	m.mu.Lock()
	if guard != nil && !guard() {
		m.mu.Unlock()
		return nil
	}
	m.gen++
	gen := m.gen
	m.abortLocked()
	actx, cancel := context.WithCancel(ctx)
	m.cancelAttempt = cancel
	m.retryCtx = context.WithoutCancel(ctx)
	m.setStateLocked(StateConnecting, nil, nil)
	m.mu.Unlock()
	m.flush()

	// the previous channel is gone before anything else happens
	m.openMu.Lock()
	m.dropConn()
	m.openMu.Unlock()

	if !m.frame.IsEmbedded() {
		m.logger.Info().Msg("not embedded in a frame, staying disconnected")
		m.settle(gen, StateDisconnected, nil)
		return nil
	}

	parent, ok := m.frame.ParentOrigin()
	if !ok {
		err := &ConfigurationError{Reason: "parent origin could not be determined"}
		m.logger.Error().Err(err).Msg("refusing to connect")
		m.settle(gen, StateError, err)
		return err
	}
	if !m.policy.IsAllowed(parent) {
		err := &ConfigurationError{Origin: parent, Reason: "parent origin is not allowed"}
		m.logger.Error().Err(err).Msg("refusing to connect")
		m.settle(gen, StateError, err)
		return err
	}

	// one ceiling covers dialing and the handshake
	hctx, hcancel := context.WithTimeout(actx, m.timeout)
	defer hcancel()

	conn, err := m.open(hctx, gen, parent)
	if err != nil {
		return m.fail(ctx, gen, m.timedOut(actx, hctx, err))
	}
	if conn == nil {
		return nil
	}

	names, err := conn.Wait(hctx)
	if err != nil {
		return m.fail(ctx, gen, m.timedOut(actx, hctx, err))
	}

	m.mu.Lock()
	if m.gen != gen || m.conn != conn {
		m.mu.Unlock()
		return nil
	}
	host := NewHostClient(conn, names)
	m.setStateLocked(StateConnected, nil, host)
	m.mu.Unlock()

	m.logger.Info().Str("origin", parent).Str("channel_id", conn.ID()).Strs("host_methods", names).Msg("connected to host")
	m.flush()

	go m.watch(gen, conn)
	return nil
}

// open dials and opens a channel for generation gen. It returns nil, nil
// when gen was superseded meanwhile.
func (m *Manager) open(ctx context.Context, gen uint64, parent string) (*channel.Connection, error) {
	m.openMu.Lock()
	defer m.openMu.Unlock()

	if !m.current(gen) {
		return nil, nil
	}
	m.dropConn()

	t, err := m.dialer.Dial(ctx, parent)
	if err != nil {
		return nil, channel.NewTransportError(errors.Wrap(err, "dialing host"))
	}

	timeout := m.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = max(time.Until(deadline), time.Millisecond)
	}
	conn := channel.Open(t, channel.Config{
		Role:    channel.RoleChild,
		Methods: WidgetHandlers(m.widget),
		Timeout: timeout,
		Debug:   m.debug,
		Logger:  &m.channelLogger,
	})

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		conn.Destroy()
		return nil, nil
	}
	m.conn = conn
	m.mu.Unlock()
	return conn, nil
}

// timedOut reports err as a handshake timeout when the attempt's ceiling
// expired while the attempt itself was still live.
func (m *Manager) timedOut(actx, hctx context.Context, err error) error {
	if errors.Is(err, channel.ErrTimeout) || actx.Err() != nil {
		return err
	}
	if errors.Is(hctx.Err(), context.DeadlineExceeded) {
		return errors.Wrapf(channel.ErrTimeout, "no answer from host within %s", m.timeout)
	}
	return err
}

// fail settles generation gen after a dial or handshake failure.
func (m *Manager) fail(ctx context.Context, gen uint64, err error) error {
	m.openMu.Lock()
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		m.openMu.Unlock()
		return nil
	}
	conn := m.takeConnLocked()
	if m.cancelAttempt != nil {
		m.cancelAttempt()
		m.cancelAttempt = nil
	}
	if ctx.Err() != nil {
		m.setStateLocked(StateDisconnected, nil, nil)
		err = ctx.Err()
	} else {
		m.setStateLocked(StateError, err, nil)
		if m.autoReconnect && Retryable(err) {
			m.scheduleRetryLocked()
		}
	}
	m.mu.Unlock()
	if conn != nil {
		conn.Destroy()
	}
	m.openMu.Unlock()

	m.logger.Warn().Err(err).Str("kind", Classify(err).String()).Msg("connection attempt failed")
	m.flush()
	return err
}

// watch turns a post-handshake channel death into an error and a retry.
func (m *Manager) watch(gen uint64, conn *channel.Connection) {
	<-conn.Done()

	m.mu.Lock()
	if m.gen != gen || m.conn != conn {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	err := conn.Err()
	if err == nil || errors.Is(err, channel.ErrDestroyed) {
		err = channel.NewTransportError(errors.New("channel closed"))
	}
	m.setStateLocked(StateError, err, nil)
	if m.autoReconnect && Retryable(err) {
		m.scheduleRetryLocked()
	}
	m.mu.Unlock()

	m.logger.Warn().Err(err).Msg("connection to host lost")
	m.flush()
}

func (m *Manager) settle(gen uint64, state State, err error) {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	if m.cancelAttempt != nil {
		m.cancelAttempt()
		m.cancelAttempt = nil
	}
	m.setStateLocked(state, err, nil)
	m.mu.Unlock()
	m.flush()
}

func (m *Manager) scheduleRetryLocked() {
	m.cancelRetryLocked()
	token := m.retryToken
	ctx := m.retryCtx
	if ctx == nil {
		ctx = context.Background()
	}
	m.retryStop = m.scheduler.AfterFunc(ReconnectDelay, func() {
		_ = m.attempt(ctx, func() bool {
			if m.retryToken != token || m.retryStop == nil {
				return false
			}
			m.logger.Info().Msg("retrying connection")
			return true
		})
	})
	m.logger.Debug().Dur("delay", ReconnectDelay).Msg("retry scheduled")
}

func (m *Manager) cancelRetryLocked() {
	m.retryToken++
	if m.retryStop != nil {
		m.retryStop()
		m.retryStop = nil
	}
}

// abortLocked cancels the pending retry and the in-flight attempt.
func (m *Manager) abortLocked() {
	m.cancelRetryLocked()
	if m.cancelAttempt != nil {
		m.cancelAttempt()
		m.cancelAttempt = nil
	}
}

func (m *Manager) current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen == gen
}

// dropConn empties the connection slot and destroys what was in it. The
// caller holds openMu.
func (m *Manager) dropConn() {
	m.mu.Lock()
	conn := m.takeConnLocked()
	m.mu.Unlock()
	if conn != nil {
		conn.Destroy()
	}
}

func (m *Manager) takeConnLocked() *channel.Connection {
	conn := m.conn
	m.conn = nil
	m.host = nil
	return conn
}

// setStateLocked records a transition and queues its event. Repeating the
// current state is silent, except that every connected generation is
// announced.
func (m *Manager) setStateLocked(state State, err error, host *HostClient) {
	old := m.state
	m.state = state
	m.err = err
	m.host = host
	if old == state && state != StateConnected {
		return
	}
	m.queue = append(m.queue, StateEvent{Old: old, New: state, Err: err, Host: host, Generation: m.gen})
}

// flush delivers queued events. Only one goroutine delivers at a time; the
// others leave their events to it, which keeps delivery ordered.
func (m *Manager) flush() {
	m.mu.Lock()
	if m.flushing {
		m.mu.Unlock()
		return
	}
	m.flushing = true
	for len(m.queue) > 0 {
		ev := m.queue[0]
		m.queue = m.queue[1:]
		subs := make([]func(StateEvent), 0, len(m.subs))
		for _, fn := range m.subs {
			subs = append(subs, fn)
		}
		m.mu.Unlock()

		if ev.New == StateError {
			m.logger.Debug().Stringer("from", ev.Old).Stringer("to", ev.New).Err(ev.Err).Msg("state changed")
		} else {
			m.logger.Debug().Stringer("from", ev.Old).Stringer("to", ev.New).Msg("state changed")
		}
		for _, fn := range subs {
			fn(ev)
		}

		m.mu.Lock()
	}
	m.flushing = false
	m.mu.Unlock()
}
