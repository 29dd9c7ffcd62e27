// Package logging configures the process wide slog logger. Records go to a
// rotating file so they never interfere with the terminal UI.
package logging

import (
	"io"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxSizeMB  = 5
	maxBackups = 3
	maxAgeDays = 28
)

// Options configures Setup.
type Options struct {
	Path  string
	Level slog.Level
}

// Setup installs a JSON logger writing to a rotated file at opts.Path as the
// default slog logger. The returned closer flushes and closes the file.
func Setup(opts Options) io.Closer {
	w := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
	}

	slog.SetDefault(New(w, opts.Level))

	return w
}

// New returns a JSON logger that writes to w.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
