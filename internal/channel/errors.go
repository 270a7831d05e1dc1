package channel

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrTimeout is returned by Wait when the handshake did not complete in time.
	ErrTimeout = errors.New("connection handshake timed out")

	// ErrDestroyed rejects waits and calls on a destroyed connection.
	ErrDestroyed = errors.New("connection destroyed")

	// ErrClosed is returned by transports after Close.
	ErrClosed = errors.New("transport closed")
)

// TransportError wraps a failure of the underlying message transport.
type TransportError struct {
	Err error
}

// NewTransportError wraps err, or returns nil for a nil err
func NewTransportError(err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Err: err}
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Cause keeps errors.Cause from github.com/pkg/errors working through the wrapper.
func (e *TransportError) Cause() error { return e.Err }

// RemoteCallError is an error reply to an individual call.
type RemoteCallError struct {
	Method  string
	Code    string
	Message string
}

func (e *RemoteCallError) Error() string {
	return fmt.Sprintf("remote call %s failed: %s", e.Method, e.Message)
}
