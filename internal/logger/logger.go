// Package logger provides a thin wrapper around zerolog.Logger used by the
// sync engine, the filesystem device and the CLI.
//
// The Logger type embeds zerolog.Logger so all standard zerolog methods
// (Debug, Info, Warn, Error, etc.) are available directly on *Logger.
// Library code receives *Logger through constructor options and falls back
// to Nop when none is supplied.
package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is a thin wrapper around zerolog.Logger.
type Logger struct {
	zerolog.Logger
}

// Options configures New.
type Options struct {
	// Level is a zerolog level name ("debug", "info", ...). Empty means info.
	Level string
	// File, when set, sends JSON output to a size-rotated log file instead of
	// the console writer.
	File string
	// Console is the writer used for human-readable output. Defaults to os.Stderr.
	Console io.Writer
}

// New constructs a *Logger for the given role label (e.g. "cli", "device").
//
// Console output uses zerolog's ConsoleWriter without colors so status lines
// stay readable when piped. When Options.File is set, entries are written as
// JSON through lumberjack with rotation.
func New(role string, opts Options) (*Logger, error) {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(opts.Level)
		if err != nil {
			return nil, err
		}
		level = parsed
	}

	var out io.Writer
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return nil, err
		}
		out = &lumberjack.Logger{
			Filename:   filepath.ToSlash(opts.File),
			MaxSize:    5, // MB
			MaxBackups: 10,
			MaxAge:     30, // days
			Compress:   true,
		}
	} else {
		console := opts.Console
		if console == nil {
			console = os.Stderr
		}
		out = zerolog.ConsoleWriter{Out: console, NoColor: true, TimeFormat: "15:04:05"}
	}

	l := zerolog.New(out).Level(level).With().
		Str("role", role).
		Timestamp().
		Logger()

	return &Logger{l}, nil
}

// NewWriter returns a debug-level JSON *Logger writing to w. Tests use it to
// assert on emitted lines.
func NewWriter(w io.Writer) *Logger {
	return &Logger{zerolog.New(w).Level(zerolog.DebugLevel)}
}

// Nop returns a *Logger that discards all log output.
func Nop() *Logger {
	return &Logger{zerolog.Nop()}
}

// WithComponent returns a child logger tagged with a "component" field.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{l.Logger.With().Str("component", name).Logger()}
}
