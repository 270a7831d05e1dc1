package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/bridge"
	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/config"
	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/host"
	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/origin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func newHostCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "host",
		Short: "Serve a demo host page that widgets connect to",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			logger, closeLog, err := newLogger(cmd, "")
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runHost(ctx, cfg, logger)
		},
	}
}

func runHost(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	demo := host.NewDemoHost(cfg.HostToken, bridge.ChatbotInfo{
		UserID:   "demo-user",
		UserName: "Demo User",
		Locale:   "en",
		Theme:    bridge.ThemeDark,
	}, logger)

	policy := origin.NewPolicy([]string{cfg.WidgetOrigin}, origin.IsDevelopment(cfg.Env))
	handler := host.NewHandler(policy, demo, logger,
		host.WithTimeout(cfg.ConnectionTimeout),
		host.WithDebug(cfg.Debug),
	)
	handler.OnConnect(func(c *host.Client) {
		callCtx, cancel := context.WithTimeout(ctx, cfg.ConnectionTimeout)
		defer cancel()
		if err := c.OpenChat(callCtx); err != nil {
			logger.Warn().Err(err).Str("connection_id", c.ID()).Msg("could not open widget chat")
		}
	})

	mux := http.NewServeMux()
	mux.Handle("/widget", handler)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		<-egCtx.Done()
		logger.Info().Msg("shutting down host")
		handler.Close()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return errors.Wrap(srv.Shutdown(shutdownCtx), "shutting down host server")
	})
	eg.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Str("widget_origin", cfg.WidgetOrigin).Msg("host listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "host server")
		}
		return nil
	})
	return eg.Wait()
}
