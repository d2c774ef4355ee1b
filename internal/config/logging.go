package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// parseLevel maps an empty level to info and rejects unknown names.
func parseLevel(level string) (zerolog.Level, error) {
	if level == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.InfoLevel, fmt.Errorf("%w: %q", ErrInvalidLogLevel, level)
	}
	return lvl, nil
}

// NewLogger builds the logger described by lc. Console format writes
// human-readable lines to w; JSON format writes raw events. When lc.File is
// set, events are also appended to that file and the returned close func
// releases it.
func NewLogger(lc LoggingConfig, w io.Writer) (zerolog.Logger, func() error, error) {
	noop := func() error { return nil }

	lvl, err := parseLevel(lc.Level)
	if err != nil {
		return zerolog.Nop(), noop, err
	}

	var out io.Writer = w
	if lc.Format != FormatJSON {
		out = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
	}

	writers := []io.Writer{out}
	closeFn := noop

	if lc.File != "" {
		if mkErr := os.MkdirAll(filepath.Dir(lc.File), 0o700); mkErr != nil {
			return zerolog.Nop(), noop, fmt.Errorf("failed to create log directory: %w", mkErr)
		}
		logFile, openErr := os.OpenFile(lc.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if openErr != nil {
			return zerolog.Nop(), noop, fmt.Errorf("opening log file: %w", openErr)
		}
		writers = append(writers, logFile)
		closeFn = logFile.Close
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(lvl).
		With().
		Timestamp().
		Logger()

	return logger, closeFn, nil
}
