package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/api"
	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/bridge"
	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/channel"
	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/chat"
	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/config"
	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/frame"
	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/ui"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the widget console and connect to the host page",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			logger, closeLog, err := newLogger(cmd, filepath.Join(filepath.Dir(cfg.SessionDB), "widget.log"))
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWidget(ctx, cfg, logger)
		},
	}
}

func runWidget(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	sessions, err := chat.NewSQLiteSessionStore(cfg.SessionDB)
	if err != nil {
		return err
	}
	defer sessions.Close()

	store := chat.NewStore(chat.WithSessionStore(sessions), chat.WithStoreLogger(logger))
	if err := store.Load(ctx); err != nil {
		logger.Warn().Err(err).Msg("starting with an empty transcript")
	}
	widget := chat.NewWidget(store, chat.NewAssistant(store, logger), logger)
	defer widget.Wait()

	tokens := api.NewPersistentTokenStore(ctx, sessions, logger)
	backend := api.NewClient(cfg.APIBaseURL, tokens, api.WithLogger(logger))

	page := frame.NewStatic(cfg.ParentURL)
	defer page.Unload()
	manager := bridge.New(frame.New(page), cfg.Policy(), newDialer(cfg, logger), widget,
		append(cfg.ManagerOptions(), bridge.WithLogger(logger))...)
	defer manager.Stop()

	forwarder := ui.NewForwarder()
	unbind := ui.Bind(forwarder, manager, store)
	defer unbind()

	authToken := bridge.UseAuthToken(manager)
	defer authToken.Close()
	authToken.OnChange(func(r bridge.Result[string]) {
		if !r.Loading && r.Err == nil && r.Value != "" {
			tokens.SetAccessToken(r.Value)
			go func() {
				if err := store.SyncApplication(ctx, backend); err != nil {
					logger.Warn().Err(err).Msg("could not restore application")
				}
			}()
		}
		forwarder.Send(ui.AuthTokenMsg{Result: r})
	})

	chatbotInfo := bridge.UseChatbotInfo(manager)
	defer chatbotInfo.Close()
	chatbotInfo.OnChange(func(r bridge.Result[bridge.ChatbotInfo]) {
		forwarder.Send(ui.ChatbotInfoMsg{Result: r})
	})

	go func() {
		if err := manager.Activate(ctx); err != nil {
			logger.Warn().Err(err).Str("kind", bridge.Classify(err).String()).Msg("initial connection failed")
		}
	}()

	return ui.Run(ctx, ui.NewModel(ctx, manager, widget), forwarder)
}

// newDialer picks the transport the widget reaches its host over.
func newDialer(cfg config.Config, logger zerolog.Logger) bridge.Dialer {
	switch cfg.Transport {
	case config.TransportPhoenix:
		return bridge.DialerFunc(func(ctx context.Context, parentOrigin string) (channel.Transport, error) {
			return channel.DialPhoenix(ctx, channel.PhoenixConfig{
				URL:    cfg.HostURL,
				Topic:  cfg.PhoenixTopic,
				APIKey: cfg.APIKey,
				Params: map[string]string{"parent_origin": parentOrigin, "widget_origin": cfg.WidgetOrigin},
			}, logger)
		})
	default:
		return bridge.DialerFunc(func(ctx context.Context, parentOrigin string) (channel.Transport, error) {
			t, err := channel.DialWebsocket(ctx, cfg.HostURL, cfg.WidgetOrigin)
			if err != nil {
				return nil, errors.Wrapf(err, "reaching host for %s", parentOrigin)
			}
			return t, nil
		})
	}
}
