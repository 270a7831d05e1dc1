package chat

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultReplyDelay is how long the canned assistant "thinks".
	DefaultReplyDelay = 500 * time.Millisecond

	uploadTrigger = "file upload component"

	UploadReply  = "File upload component is now active. You can upload files, URLs, or images."
	DefaultReply = `I received your message. Type "File Upload Component" to activate file upload functionality.`
)

// Assistant answers user messages with canned replies after a fixed delay.
// There is no model behind it.
type Assistant struct {
	store  *Store
	delay  time.Duration
	logger zerolog.Logger
}

func NewAssistant(store *Store, logger zerolog.Logger) *Assistant {
	return &Assistant{
		store:  store,
		delay:  DefaultReplyDelay,
		logger: logger.With().Str("component", "assistant").Logger(),
	}
}

// SetReplyDelay configures the simulated thinking time
func (a *Assistant) SetReplyDelay(d time.Duration) {
	a.delay = d
}

// Respond waits out the reply delay and appends the canned answer to text.
// The phrase "file upload component" switches the widget into upload mode.
func (a *Assistant) Respond(ctx context.Context, text string) (Message, error) {
	a.store.SetLoading(true)

	timer := time.NewTimer(a.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		a.store.SetLoading(false)
		return Message{}, ctx.Err()
	}

	reply := DefaultReply
	if strings.EqualFold(strings.TrimSpace(text), uploadTrigger) {
		a.store.SetUploadMode(true)
		reply = UploadReply
	}
	msg := a.store.AddMessage(Message{Role: RoleAssistant, Content: reply})
	a.store.SetLoading(false)

	a.logger.Debug().Str("message_id", msg.ID).Msg("assistant replied")
	return msg, nil
}
