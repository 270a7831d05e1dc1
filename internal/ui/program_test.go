package ui

import (
	"context"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/bridge"
	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/channel"
	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/chat"
	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/frame"
	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/origin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu   sync.Mutex
	msgs []tea.Msg
	gate chan struct{}
}

func (r *recordingSender) Send(msg tea.Msg) {
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
}

func (r *recordingSender) received() []tea.Msg {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]tea.Msg(nil), r.msgs...)
}

func TestForwarderKeepsOrderAndNeverBlocks(t *testing.T) {
	target := &recordingSender{gate: make(chan struct{})}
	f := NewForwarder()
	defer f.Close()

	f.Send(ErrorMsg{Component: "early"})
	f.Attach(target)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			f.Send(SendResultMsg{Text: string(rune('a' + i%26))})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Send blocked on a stalled program")
	}

	close(target.gate)
	require.Eventually(t, func() bool { return len(target.received()) == 51 }, 2*time.Second, 5*time.Millisecond)
	msgs := target.received()
	assert.Equal(t, ErrorMsg{Component: "early"}, msgs[0])
	for i := 0; i < 50; i++ {
		assert.Equal(t, SendResultMsg{Text: string(rune('a' + i%26))}, msgs[i+1])
	}
}

func TestForwarderDropsAfterClose(t *testing.T) {
	target := &recordingSender{}
	f := NewForwarder()
	f.Attach(target)
	f.Close()
	f.Close()
	f.Send(ErrorMsg{Component: "late"})
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, target.received())
}

func TestBindForwardsManagerAndStore(t *testing.T) {
	dialer := bridge.DialerFunc(func(context.Context, string) (channel.Transport, error) {
		return nil, errors.New("no host in this test")
	})
	// Top-level: the manager settles in disconnected without dialing.
	m := bridge.New(frame.New(frame.NewStatic("")), origin.NewPolicy(nil, false), dialer, nil)
	store := chat.NewStore()

	target := &recordingSender{}
	f := NewForwarder()
	f.Attach(target)
	defer f.Close()

	unbind := Bind(f, m, store)
	defer unbind()

	require.NoError(t, m.Start(context.Background()))
	_, err := store.Send("hi", nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		var sawDisconnected, sawMessage bool
		for _, msg := range target.received() {
			switch msg := msg.(type) {
			case ConnectionMsg:
				sawDisconnected = sawDisconnected || msg.Event.New == bridge.StateDisconnected
			case TranscriptMsg:
				sawMessage = sawMessage || len(msg.State.Messages) == 1
			}
		}
		return sawDisconnected && sawMessage
	}, 2*time.Second, 5*time.Millisecond)

	first := target.received()[0]
	require.IsType(t, ConnectionMsg{}, first)
	assert.Equal(t, bridge.StateConnecting, first.(ConnectionMsg).Event.New, "primed with the current state")
}
