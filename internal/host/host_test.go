package host

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/bridge"
	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/channel"
	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/origin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const widgetOrigin = "https://widget.example.com"

// recordingWidget is a widget that only remembers what the host asked.
type recordingWidget struct {
	mu   sync.Mutex
	open bool
	sent []string
}

func (w *recordingWidget) OpenChat(context.Context) error {
	w.mu.Lock()
	w.open = true
	w.mu.Unlock()
	return nil
}

func (w *recordingWidget) CloseChat(context.Context) error {
	w.mu.Lock()
	w.open = false
	w.mu.Unlock()
	return nil
}

func (w *recordingWidget) SendMessage(_ context.Context, text string) error {
	w.mu.Lock()
	w.sent = append(w.sent, text)
	w.mu.Unlock()
	return nil
}

func (w *recordingWidget) ResetChat(context.Context) error {
	w.mu.Lock()
	w.sent = nil
	w.mu.Unlock()
	return nil
}

func (w *recordingWidget) GetChatState(context.Context) (bridge.ChatState, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return bridge.ChatState{IsOpen: w.open, MessageCount: len(w.sent)}, nil
}

func demoInfo() bridge.ChatbotInfo {
	return bridge.ChatbotInfo{UserID: "u-1", UserName: "Ada", Locale: "en", Theme: bridge.ThemeDark}
}

func openWidget(t *testing.T, tr channel.Transport, w bridge.WidgetMethods) (*channel.Connection, *bridge.HostClient) {
	t.Helper()
	conn := channel.Open(tr, channel.Config{Role: channel.RoleChild, Methods: bridge.WidgetHandlers(w)})
	t.Cleanup(conn.Destroy)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	names, err := conn.Wait(ctx)
	require.NoError(t, err)
	return conn, bridge.NewHostClient(conn, names)
}

func TestServeOverPipe(t *testing.T) {
	hostEnd, widgetEnd := channel.NewPipe()
	demo := NewDemoHost("tok-1", demoInfo(), zerolog.Nop())
	widget := &recordingWidget{}

	served := make(chan *Client, 1)
	go func() {
		c, err := Serve(context.Background(), hostEnd, demo)
		assert.NoError(t, err)
		served <- c
	}()

	_, hc := openWidget(t, widgetEnd, widget)
	client := <-served
	require.NotNil(t, client)
	defer client.Close()

	ctx := context.Background()
	assert.ElementsMatch(t, []string{
		bridge.MethodOpenChat, bridge.MethodCloseChat, bridge.MethodSendMessage,
		bridge.MethodResetChat, bridge.MethodGetChatState,
	}, client.Methods())
	assert.True(t, hc.Has(bridge.MethodGetAuthToken))

	token, err := hc.GetAuthToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)

	info, err := hc.GetChatbotInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, demoInfo(), info)

	require.NoError(t, hc.NotifyNavigation(ctx, "/applications/new"))
	require.NoError(t, hc.TrackEvent(ctx, "step_completed", map[string]any{"step": float64(2)}))
	require.NoError(t, hc.ToggleChat(ctx))
	assert.Equal(t, []string{"/applications/new"}, demo.Navigations())
	assert.Equal(t, []TrackedEvent{{Name: "step_completed", Data: map[string]any{"step": float64(2)}}}, demo.Events())
	assert.True(t, demo.ChatOpen())

	require.NoError(t, client.OpenChat(ctx))
	require.NoError(t, client.SendMessage(ctx, "hello"))
	state, err := client.GetChatState(ctx)
	require.NoError(t, err)
	assert.Equal(t, bridge.ChatState{IsOpen: true, MessageCount: 1}, state)
}

func TestServeMissingTokenIsRemoteError(t *testing.T) {
	hostEnd, widgetEnd := channel.NewPipe()
	demo := NewDemoHost("", demoInfo(), zerolog.Nop())
	go func() { _, _ = Serve(context.Background(), hostEnd, demo) }()

	_, hc := openWidget(t, widgetEnd, nil)
	_, err := hc.GetAuthToken(context.Background())
	var remote *channel.RemoteCallError
	require.ErrorAs(t, err, &remote)
	assert.Contains(t, remote.Message, ErrNoToken.Error())
}

func TestServeGivesUpWhenContextEnds(t *testing.T) {
	hostEnd, _ := channel.NewPipe()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := Serve(ctx, hostEnd, NewDemoHost("tok", demoInfo(), zerolog.Nop()))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func newServer(t *testing.T, policy *origin.Policy) (*Handler, string) {
	t.Helper()
	h := NewHandler(policy, NewDemoHost("tok-ws", demoInfo(), zerolog.Nop()), zerolog.Nop())
	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		h.Close()
		srv.Close()
	})
	return h, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestHandlerRejectsDisallowedOrigin(t *testing.T) {
	h, endpoint := newServer(t, origin.NewPolicy([]string{widgetOrigin}, false))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err := channel.DialWebsocket(ctx, endpoint, "https://evil.example.net")
	require.Error(t, err)
	assert.Empty(t, h.Clients())
}

func TestHandlerServesAllowedWidget(t *testing.T) {
	h, endpoint := newServer(t, origin.NewPolicy([]string{"*.example.com"}, false))
	connected := make(chan *Client, 1)
	h.OnConnect(func(c *Client) { connected <- c })

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	tr, err := channel.DialWebsocket(ctx, endpoint, widgetOrigin)
	require.NoError(t, err)

	widget := &recordingWidget{}
	conn, hc := openWidget(t, tr, widget)
	assert.NotEmpty(t, conn.ID())

	token, err := hc.GetAuthToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-ws", token)

	client := <-connected
	assert.NotEqual(t, conn.ID(), client.ID(), "each side stamps its own channel id")
	require.NoError(t, client.SendMessage(ctx, "from host"))
	widget.mu.Lock()
	assert.Equal(t, []string{"from host"}, widget.sent)
	widget.mu.Unlock()
	assert.Len(t, h.Clients(), 1)

	h.Close()
	select {
	case <-conn.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("widget connection outlived handler close")
	}
	require.Eventually(t, func() bool { return len(h.Clients()) == 0 }, 3*time.Second, 10*time.Millisecond)
}

func TestHandlerRejectsNonWebsocketRequest(t *testing.T) {
	h := NewHandler(origin.NewPolicy(nil, true), NewDemoHost("", demoInfo(), zerolog.Nop()), zerolog.Nop())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/widget", nil)
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
