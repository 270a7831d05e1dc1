package channel

import (
	"fmt"

	"github.com/nshafer/phx"
	"github.com/rs/zerolog"
)

// PhxLogger implements phx.Logger by forwarding to zerolog, so the Phoenix
// library's chatter follows the widget's log level instead of stdout.
type PhxLogger struct {
	logger zerolog.Logger
}

// NewPhxLogger wraps logger for use as socket.Logger
func NewPhxLogger(logger zerolog.Logger) phx.Logger {
	return &PhxLogger{logger: logger}
}

// Print implements phx.Logger
func (l *PhxLogger) Print(level phx.LoggerLevel, kind string, v ...any) {
	l.event(level).Str("kind", kind).Msg(fmt.Sprint(v...))
}

// Println implements phx.Logger
func (l *PhxLogger) Println(level phx.LoggerLevel, kind string, v ...any) {
	l.event(level).Str("kind", kind).Msg(fmt.Sprint(v...))
}

// Printf implements phx.Logger
func (l *PhxLogger) Printf(level phx.LoggerLevel, kind string, format string, v ...any) {
	l.event(level).Str("kind", kind).Msgf(format, v...)
}

func (l *PhxLogger) event(level phx.LoggerLevel) *zerolog.Event {
	switch {
	case level >= phx.LogError:
		return l.logger.Error()
	case level >= phx.LogWarning:
		return l.logger.Warn()
	case level >= phx.LogInfo:
		return l.logger.Debug()
	default:
		return l.logger.Trace()
	}
}
