package chat

import (
	"context"
	"sync"

	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/bridge"
	"github.com/rs/zerolog"
)

// Widget serves the host page's calls against the transcript store. Every
// method is safe before any UI exists.
type Widget struct {
	store     *Store
	assistant *Assistant
	logger    zerolog.Logger

	wg sync.WaitGroup
}

var _ bridge.WidgetMethods = (*Widget)(nil)

// NewWidget wires store and assistant; assistant may be nil, in which case
// messages are recorded without a reply.
func NewWidget(store *Store, assistant *Assistant, logger zerolog.Logger) *Widget {
	return &Widget{
		store:     store,
		assistant: assistant,
		logger:    logger.With().Str("component", "widget").Logger(),
	}
}

func (w *Widget) OpenChat(ctx context.Context) error {
	w.logger.Debug().Msg("chat opened")
	w.store.SetOpen(true)
	return nil
}

func (w *Widget) CloseChat(ctx context.Context) error {
	w.logger.Debug().Msg("chat closed")
	w.store.SetOpen(false)
	return nil
}

// SendMessage records text as a user message and lets the assistant answer
// in the background.
func (w *Widget) SendMessage(ctx context.Context, text string) error {
	if _, err := w.store.Send(text, nil); err != nil {
		return err
	}
	if w.assistant == nil {
		return nil
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if _, err := w.assistant.Respond(context.Background(), text); err != nil {
			w.logger.Warn().Err(err).Msg("assistant did not reply")
		}
	}()
	return nil
}

func (w *Widget) ResetChat(ctx context.Context) error {
	w.logger.Debug().Msg("chat reset")
	w.store.Clear()
	return nil
}

func (w *Widget) GetChatState(ctx context.Context) (bridge.ChatState, error) {
	st := w.store.Snapshot()
	return bridge.ChatState{
		IsOpen:        st.IsOpen,
		MessageCount:  len(st.Messages),
		CurrentStep:   st.CurrentStep,
		ApplicationID: st.ApplicationID,
	}, nil
}

// Wait blocks until pending assistant replies are in
func (w *Widget) Wait() {
	w.wg.Wait()
}
