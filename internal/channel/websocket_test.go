package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebsocketTransportHandshake(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	origins := make(chan string, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origins <- r.Header.Get("Origin")
		tr, err := AcceptWebsocket(w, r, upgrader)
		if err != nil {
			return
		}
		host := Open(tr, Config{Role: RoleParent, Methods: map[string]Handler{
			"getAuthToken": func(context.Context, json.RawMessage) (any, error) { return "secret", nil },
		}})
		<-host.Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	endpoint := "ws" + strings.TrimPrefix(srv.URL, "http")
	tr, err := DialWebsocket(ctx, endpoint, "https://app.example.com")
	require.NoError(t, err)

	child := Open(tr, Config{Role: RoleChild})
	defer child.Destroy()

	methods, err := child.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"getAuthToken"}, methods)
	assert.Equal(t, "https://app.example.com", <-origins)

	var token string
	require.NoError(t, child.Call(ctx, "getAuthToken", nil, &token))
	assert.Equal(t, "secret", token)
}

func TestWebsocketSendAfterClose(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tr, err := AcceptWebsocket(w, r, upgrader)
		if err != nil {
			return
		}
		_, _ = tr.Receive(context.Background())
		_ = tr.Close()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	tr, err := DialWebsocket(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), "")
	require.NoError(t, err)

	require.NoError(t, tr.Close())
	assert.ErrorIs(t, tr.Send(ctx, Message{Type: MessageSyn}), ErrClosed)
	_, err = tr.Receive(ctx)
	assert.Error(t, err)
}

func TestDialWebsocketHonoursContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := DialWebsocket(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), "")
	require.Error(t, err)
	assert.Less(t, time.Since(start), DefaultTimeout/2, "the upgrade waited past ctx's deadline")
}
