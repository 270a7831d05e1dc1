package bridge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/channel"
	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/frame"
	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/origin"
	"github.com/pkg/errors"
)

const allowedParent = "https://portal.example.com"

// fakeScheduler records retries instead of running them on a clock.
type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	delay   time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) func() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{delay: d, f: f}
	s.timers = append(s.timers, t)
	return func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		if t.stopped || t.fired {
			return false
		}
		t.stopped = true
		return true
	}
}

// pending returns timers that were neither stopped nor fired
func (s *fakeScheduler) pending() []*fakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*fakeTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

func (s *fakeScheduler) scheduled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// fire runs every pending timer on the calling goroutine
func (s *fakeScheduler) fire() int {
	timers := s.pending()
	s.mu.Lock()
	for _, t := range timers {
		t.fired = true
	}
	s.mu.Unlock()
	for _, t := range timers {
		t.f()
	}
	return len(timers)
}

// fakeHost answers host methods; getAuthToken can be held open.
type fakeHost struct {
	mu        sync.Mutex
	token     string
	tokenErr  error
	hold      chan struct{}
	info      ChatbotInfo
	calls     map[string]int
	navigated []string
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		token: "tok-1",
		info:  ChatbotInfo{UserID: "u-1", UserName: "Ada", Theme: ThemeDark},
		calls: map[string]int{},
	}
}

func (h *fakeHost) count(name string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls[name]
}

func (h *fakeHost) record(name string) {
	h.mu.Lock()
	h.calls[name]++
	h.mu.Unlock()
}

func (h *fakeHost) GetAuthToken(ctx context.Context) (string, error) {
	h.record(MethodGetAuthToken)
	h.mu.Lock()
	hold, token, err := h.hold, h.token, h.tokenErr
	h.mu.Unlock()
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return token, err
}

func (h *fakeHost) ToggleChat(ctx context.Context) error {
	h.record(MethodToggleChat)
	return nil
}

func (h *fakeHost) GetChatbotInfo(ctx context.Context) (ChatbotInfo, error) {
	h.record(MethodGetChatbotInfo)
	return h.info, nil
}

func (h *fakeHost) NotifyNavigation(ctx context.Context, path string) error {
	h.record(MethodNotifyNavigation)
	h.mu.Lock()
	h.navigated = append(h.navigated, path)
	h.mu.Unlock()
	return nil
}

func (h *fakeHost) TrackEvent(ctx context.Context, name string, data map[string]any) error {
	h.record(MethodTrackEvent)
	if name == "" {
		return errors.New("event name required")
	}
	return nil
}

// spyDialer hands out in-memory pipes and serves the host side on them.
type spyDialer struct {
	host *fakeHost

	mu      sync.Mutex
	silent  bool
	dials   int
	live    int
	maxLive int
	origins []string
	parents []*channel.Connection
}

func newSpyDialer(host *fakeHost) *spyDialer {
	return &spyDialer{host: host}
}

func (d *spyDialer) setSilent(silent bool) {
	d.mu.Lock()
	d.silent = silent
	d.mu.Unlock()
}

func (d *spyDialer) Dial(ctx context.Context, parentOrigin string) (channel.Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	widgetEnd, hostEnd := channel.NewPipe()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	d.live++
	if d.live > d.maxLive {
		d.maxLive = d.live
	}
	d.origins = append(d.origins, parentOrigin)
	if !d.silent {
		d.parents = append(d.parents, channel.Open(hostEnd, channel.Config{
			Role:    channel.RoleParent,
			Methods: HostHandlers(d.host),
		}))
	}
	return &spyTransport{Transport: widgetEnd, dialer: d}, nil
}

func (d *spyDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *spyDialer) liveCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live
}

func (d *spyDialer) maxLiveCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxLive
}

func (d *spyDialer) lastParent() *channel.Connection {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.parents) == 0 {
		return nil
	}
	return d.parents[len(d.parents)-1]
}

type spyTransport struct {
	channel.Transport
	dialer *spyDialer
	once   sync.Once
}

func (t *spyTransport) Close() error {
	t.once.Do(func() {
		t.dialer.mu.Lock()
		t.dialer.live--
		t.dialer.mu.Unlock()
	})
	return t.Transport.Close()
}

// recorder collects the state sequence starting with the initial state.
type recorder struct {
	mu     sync.Mutex
	states []State
	events []StateEvent
}

func record(m *Manager) *recorder {
	r := &recorder{states: []State{m.State()}}
	m.Subscribe(func(ev StateEvent) {
		r.mu.Lock()
		r.states = append(r.states, ev.New)
		r.events = append(r.events, ev)
		r.mu.Unlock()
	})
	return r
}

func (r *recorder) sequence() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func (r *recorder) last() StateEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return StateEvent{}
	}
	return r.events[len(r.events)-1]
}

type fixture struct {
	manager   *Manager
	dialer    *spyDialer
	host      *fakeHost
	scheduler *fakeScheduler
	window    *frame.Static
}

func newFixture(t *testing.T, referrer string, allowed []string, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		host:      newFakeHost(),
		scheduler: &fakeScheduler{},
		window:    frame.NewStatic(referrer),
	}
	f.dialer = newSpyDialer(f.host)
	opts = append([]Option{WithScheduler(f.scheduler), WithConnectionTimeout(200 * time.Millisecond)}, opts...)
	f.manager = New(frame.New(f.window), origin.NewPolicy(allowed, false), f.dialer, nil, opts...)
	t.Cleanup(f.manager.Stop)
	return f
}
