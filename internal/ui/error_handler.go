package ui

import (
	"fmt"
	"sync"
	"time"

	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/bridge"
)

// ErrorHandler rate-limits repeated errors so a host that keeps refusing
// the handshake does not flood the status bar every retry.
type ErrorHandler struct {
	mu              sync.Mutex
	now             func() time.Time
	lastError       string
	lastErrorTime   time.Time
	errorCount      int
	suppressUntil   time.Time
	backoffDuration time.Duration
}

func NewErrorHandler() *ErrorHandler {
	return &ErrorHandler{
		now:             time.Now,
		backoffDuration: time.Second,
	}
}

// HandleError reports whether err should be shown and how.
func (e *ErrorHandler) HandleError(err error, component string) (display bool, message string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err == nil {
		return false, ""
	}

	now := e.now()
	errorKey := fmt.Sprintf("%s:%v", component, err)

	if now.Before(e.suppressUntil) {
		return false, ""
	}

	// Same error within the retry window
	if errorKey == e.lastError && now.Sub(e.lastErrorTime) < 2*bridge.ReconnectDelay {
		e.errorCount++
		e.lastErrorTime = now

		if e.errorCount >= 3 {
			e.suppressUntil = now.Add(e.backoffDuration)
			e.backoffDuration *= 2
			if e.backoffDuration > 30*time.Second {
				e.backoffDuration = 30 * time.Second
			}
			return true, fmt.Sprintf("%s: still failing, further errors suppressed", component)
		}
		if e.errorCount == 2 {
			return true, formatErrorMessage(err, component)
		}
		return false, ""
	}

	e.lastError = errorKey
	e.lastErrorTime = now
	e.errorCount = 1
	e.backoffDuration = time.Second
	return true, formatErrorMessage(err, component)
}

// Reset forgets past errors, e.g. once connected again.
func (e *ErrorHandler) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastError = ""
	e.errorCount = 0
	e.suppressUntil = time.Time{}
	e.backoffDuration = time.Second
}

// formatErrorMessage turns a bridge error into a short human message.
func formatErrorMessage(err error, component string) string {
	switch bridge.Classify(err) {
	case bridge.KindConfiguration:
		return fmt.Sprintf("%s: not allowed here (%v)", component, err)
	case bridge.KindTimeout:
		return fmt.Sprintf("%s: host did not answer in time", component)
	case bridge.KindTransport:
		return fmt.Sprintf("%s: connection lost, retrying", component)
	case bridge.KindRemoteCall:
		return fmt.Sprintf("%s: host rejected the call (%v)", component, err)
	case bridge.KindDestroyed, bridge.KindCanceled:
		return fmt.Sprintf("%s: connection closed", component)
	default:
		return fmt.Sprintf("%s: %v", component, err)
	}
}
