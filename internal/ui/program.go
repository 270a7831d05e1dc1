package ui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/bridge"
	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/chat"
	"github.com/pkg/errors"
)

// Sender is satisfied by *tea.Program.
type Sender interface {
	Send(msg tea.Msg)
}

// Forwarder queues messages for a program without ever blocking the caller,
// so manager and store callbacks cannot stall on a busy event loop.
// Messages are delivered in the order they were queued; anything queued
// before Attach waits for the target.
type Forwarder struct {
	target Sender

	mu     sync.Mutex
	queue  []tea.Msg
	wake   chan struct{}
	done   chan struct{}
	closed bool
}

func NewForwarder() *Forwarder {
	return &Forwarder{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Attach starts delivering to target. Call it once.
func (f *Forwarder) Attach(target Sender) {
	f.target = target
	go f.run()
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

// Send queues msg. It is dropped once the forwarder is closed.
func (f *Forwarder) Send(msg tea.Msg) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.queue = append(f.queue, msg)
	f.mu.Unlock()

	select {
	case f.wake <- struct{}{}:
	default:
	}
}

func (f *Forwarder) run() {
	for {
		select {
		case <-f.wake:
		case <-f.done:
			return
		}
		for {
			f.mu.Lock()
			if len(f.queue) == 0 || f.closed {
				f.mu.Unlock()
				break
			}
			msg := f.queue[0]
			f.queue = f.queue[1:]
			f.mu.Unlock()
			f.target.Send(msg)
		}
	}
}

// Close stops delivery; queued messages are discarded.
func (f *Forwarder) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	f.queue = nil
	close(f.done)
}

// Bind forwards manager transitions and transcript changes to f and
// primes it with the current state of both.
func Bind(f *Forwarder, m *bridge.Manager, store *chat.Store) (unbind func()) {
	unsubState := m.Subscribe(func(ev bridge.StateEvent) {
		f.Send(ConnectionMsg{Event: ev})
	})
	unsubStore := store.Subscribe(func(st chat.State) {
		f.Send(TranscriptMsg{State: st})
	})
	f.Send(ConnectionMsg{Event: bridge.StateEvent{Old: m.State(), New: m.State(), Err: m.Err()}})
	f.Send(TranscriptMsg{State: store.Snapshot()})
	return func() {
		unsubState()
		unsubStore()
	}
}

// Run shows the console until the user quits or ctx ends. The manager is
// stopped by the model on Ctrl+C; the caller owns it otherwise.
func Run(ctx context.Context, model *Model, f *Forwarder, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(model, opts...)
	f.Attach(p)

	_, err := p.Run()
	f.Close()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return errors.Wrap(err, "running console")
}
