package bridge

import (
	"context"
	"fmt"

	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/channel"
	"github.com/pkg/errors"
)

// ConfigurationError means the widget cannot talk to its parent without an
// operator fixing something (missing or disallowed origin). It is never
// retried automatically.
type ConfigurationError struct {
	Origin string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Origin == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("configuration error: %s (origin %q)", e.Reason, e.Origin)
}

// ErrorKind is the category of a bridge error
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindConfiguration
	KindTimeout
	KindTransport
	KindRemoteCall
	KindDestroyed
	KindCanceled
	KindUnknown
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindConfiguration:
		return "configuration"
	case KindTimeout:
		return "timeout"
	case KindTransport:
		return "transport"
	case KindRemoteCall:
		return "remote_call"
	case KindDestroyed:
		return "destroyed"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Classify maps any error produced by this package or the channel below it
// onto an ErrorKind.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var cfg *ConfigurationError
	var remote *channel.RemoteCallError
	var transport *channel.TransportError
	switch {
	case errors.As(err, &cfg):
		return KindConfiguration
	case errors.As(err, &remote):
		return KindRemoteCall
	case errors.Is(err, channel.ErrTimeout):
		return KindTimeout
	case errors.As(err, &transport):
		return KindTransport
	case errors.Is(err, channel.ErrDestroyed), errors.Is(err, channel.ErrNotReady):
		return KindDestroyed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindUnknown
	}
}

// Retryable reports whether an automatic reconnect may fix err
func Retryable(err error) bool {
	switch Classify(err) {
	case KindTimeout, KindTransport:
		return true
	default:
		return false
	}
}
