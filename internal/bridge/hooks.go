package bridge

import (
	"context"
	"sync"
)

// Result is a point-in-time view of a Resource.
type Result[T any] struct {
	Value   T
	Loading bool
	Err     error
}

// Resource fetches one value from the host each time the manager reaches a
// fresh connected generation. Failures are stored, not retried; a later
// reconnect fetches again.
type Resource[T any] struct {
	fetch func(context.Context, *HostClient) (T, error)

	mu       sync.Mutex
	result   Result[T]
	gen      uint64
	fetched  bool
	cancel   context.CancelFunc
	closed   bool
	onChange func(Result[T])

	unsubscribe func()
}

// UseAuthToken tracks the host's auth token.
func UseAuthToken(m *Manager) *Resource[string] {
	return newResource(m, func(ctx context.Context, h *HostClient) (string, error) {
		return h.GetAuthToken(ctx)
	})
}

// UseChatbotInfo tracks the host's chatbot info.
func UseChatbotInfo(m *Manager) *Resource[ChatbotInfo] {
	return newResource(m, func(ctx context.Context, h *HostClient) (ChatbotInfo, error) {
		return h.GetChatbotInfo(ctx)
	})
}

func newResource[T any](m *Manager, fetch func(context.Context, *HostClient) (T, error)) *Resource[T] {
	r := &Resource[T]{
		fetch:  fetch,
		result: Result[T]{Loading: true},
	}
	r.unsubscribe = m.Subscribe(r.observe)
	if now := m.snapshot(); now.New == StateConnected {
		r.observe(now)
	}
	return r
}

// Snapshot returns the current value, loading flag and error
func (r *Resource[T]) Snapshot() Result[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result
}

// OnChange registers fn to run after every change of the snapshot. It
// replaces any earlier callback.
func (r *Resource[T]) OnChange(fn func(Result[T])) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// Close stops tracking the manager and abandons an in-flight fetch.
func (r *Resource[T]) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()
	r.unsubscribe()
}

func (r *Resource[T]) observe(ev StateEvent) {
	if ev.New != StateConnected || ev.Host == nil {
		return
	}

	r.mu.Lock()
	if r.closed || (r.fetched && r.gen == ev.Generation) {
		r.mu.Unlock()
		return
	}
	if r.cancel != nil {
		r.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.gen = ev.Generation
	r.fetched = true
	r.cancel = cancel
	r.result.Loading = true
	r.result.Err = nil
	snap, fn := r.result, r.onChange
	r.mu.Unlock()

	if fn != nil {
		fn(snap)
	}
	go r.run(ctx, ev.Generation, ev.Host)
}

func (r *Resource[T]) run(ctx context.Context, gen uint64, host *HostClient) {
	value, err := r.fetch(ctx, host)

	r.mu.Lock()
	if r.closed || r.gen != gen {
		r.mu.Unlock()
		return
	}
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.result.Loading = false
	if err != nil {
		r.result.Err = err
	} else {
		r.result.Value = value
	}
	snap, fn := r.result, r.onChange
	r.mu.Unlock()

	if fn != nil {
		fn(snap)
	}
}
