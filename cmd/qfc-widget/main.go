package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/config"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "qfc-widget",
		Short:        "Embeddable registration assistant and its host bridge",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("log-level", "info", "trace, debug, info, warn or error")
	root.PersistentFlags().String("log-file", "", "write logs here instead of stderr")
	config.BindFlags(root.PersistentFlags())

	root.AddCommand(newRunCommand(), newHostCommand(), newConfigCommand())
	return root
}

// newLogger builds the process logger. The console widget owns the terminal,
// so it logs to a file; the host logs to stderr.
func newLogger(cmd *cobra.Command, defaultFile string) (zerolog.Logger, func() error, error) {
	level, _ := cmd.Flags().GetString("log-level")
	path, _ := cmd.Flags().GetString("log-file")
	if path == "" {
		path = defaultFile
	}

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}
	closer := func() error { return nil }
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return zerolog.Nop(), nil, errors.Wrap(err, "creating log directory")
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), nil, errors.Wrapf(err, "opening log file %s", path)
		}
		out, closer = f, f.Close
	}

	logger := zerolog.New(out).Level(parseLevel(level)).With().Timestamp().Logger()
	return logger, closer, nil
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
