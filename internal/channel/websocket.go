package channel

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

const (
	wsWriteWait    = 10 * time.Second
	wsMaxFrameSize = 1 << 20
)

// wsTransport carries frames as JSON text messages over a websocket.
type wsTransport struct {
	conn *websocket.Conn

	writeMu sync.Mutex
	once    sync.Once
	closed  chan struct{}
}

// DialWebsocket connects to a host endpoint. origin is sent as the Origin
// header so the host can check who is connecting. ctx's deadline bounds the
// upgrade; without one DefaultTimeout applies.
func DialWebsocket(ctx context.Context, endpoint string, origin string) (Transport, error) {
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}
	dialer := websocket.Dialer{}
	conn, resp, err := dialer.DialContext(ctx, endpoint, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, errors.Wrapf(err, "dialing %s", endpoint)
	}
	return NewWebsocketTransport(conn), nil
}

// AcceptWebsocket upgrades an HTTP request into a transport (host side).
func AcceptWebsocket(w http.ResponseWriter, r *http.Request, upgrader websocket.Upgrader) (Transport, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, errors.Wrap(err, "upgrading to websocket")
	}
	return NewWebsocketTransport(conn), nil
}

// NewWebsocketTransport wraps an established websocket connection
func NewWebsocketTransport(conn *websocket.Conn) Transport {
	conn.SetReadLimit(wsMaxFrameSize)
	return &wsTransport{conn: conn, closed: make(chan struct{})}
}

func (t *wsTransport) Send(ctx context.Context, msg Message) error {
	select {
	case <-t.closed:
		return ErrClosed
	default:
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	deadline := time.Now().Add(wsWriteWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = t.conn.SetWriteDeadline(deadline)
	if err := t.conn.WriteJSON(msg); err != nil {
		return errors.Wrap(err, "websocket write")
	}
	return nil
}

// Receive blocks until a frame arrives or the socket closes; ctx is only
// checked up front because gorilla reads cannot be interrupted except by Close.
func (t *wsTransport) Receive(ctx context.Context) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}
	var msg Message
	if err := t.conn.ReadJSON(&msg); err != nil {
		select {
		case <-t.closed:
			return Message{}, ErrClosed
		default:
		}
		return Message{}, errors.Wrap(err, "websocket read")
	}
	return msg, nil
}

func (t *wsTransport) Close() error {
	var err error
	t.once.Do(func() {
		close(t.closed)
		_ = t.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		err = t.conn.Close()
	})
	return err
}
