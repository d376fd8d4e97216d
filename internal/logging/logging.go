// Package logging builds the process logger: zerolog to stderr, optionally
// teed into a size-rotated file.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation defaults for the log file.
const (
	DefaultMaxSizeMB  = 100
	DefaultMaxBackups = 5
	DefaultMaxAgeDays = 30
)

// Options configures New. Zero values use defaults.
type Options struct {
	Level string
	// Console renders human-readable output instead of JSON on stderr.
	Console bool
	// File, when set, also receives JSON lines with rotation.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	// Stderr overrides os.Stderr, for tests.
	Stderr io.Writer
}

// New returns the logger and a closer for the rotated file (a no-op when no
// file is configured).
func New(opts Options) (zerolog.Logger, io.Closer) {
	var out io.Writer = opts.Stderr
	if out == nil {
		out = os.Stderr
	}
	if opts.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		fw := NewFileWriter(opts)
		out = zerolog.MultiLevelWriter(out, fw)
		closer = fw
	}
	return zerolog.New(out).Level(ParseLevel(opts.Level)).With().Timestamp().Logger(), closer
}

// NewFileWriter returns a lumberjack writer for opts.File.
func NewFileWriter(opts Options) *lumberjack.Logger {
	fw := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}
	if fw.MaxSize <= 0 {
		fw.MaxSize = DefaultMaxSizeMB
	}
	if fw.MaxBackups <= 0 {
		fw.MaxBackups = DefaultMaxBackups
	}
	if fw.MaxAge <= 0 {
		fw.MaxAge = DefaultMaxAgeDays
	}
	return fw
}

// ParseLevel maps a level name to zerolog; unknown names mean info and
// "off" disables logging.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "disabled":
		return zerolog.Disabled
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

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
