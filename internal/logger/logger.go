// Package logger provides a configured zerolog logger.
package logger

import (
	"io"
	"os"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	zpkgerrors "github.com/rs/zerolog/pkgerrors"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the level and an optional rotating file sink.
type Options struct {
	Level string
	// File, when set, receives a copy of every log line and is rotated by size.
	File string
}

// New returns a new zerolog.Logger configured for the application.
// Call sites should use .Stack() on error events to include stacks.
func New(serviceName string) zerolog.Logger {
	return NewWithOptions(serviceName, Options{})
}

// NewWithOptions is New with a level and an optional file sink.
func NewWithOptions(serviceName string, opts Options) zerolog.Logger {
	// Configure zerolog to work with github.com/pkg/errors:
	// - Automatically marshal pkg/errors stack traces when present
	// - Ensure a stack is present even for std errors when .Stack() is used
	zerolog.ErrorStackMarshaler = func(err error) interface{} {
		type stackTracer interface{ StackTrace() pkgerrors.StackTrace }
		if _, ok := err.(stackTracer); !ok {
			err = pkgerrors.WithStack(err)
		}
		return zpkgerrors.MarshalStack(err)
	}
	zerolog.ErrorMarshalFunc = func(err error) interface{} {
		// If the error already carries a pkg/errors stack, keep it.
		type stackTracer interface{ StackTrace() pkgerrors.StackTrace }
		if _, ok := err.(stackTracer); ok {
			return err
		}
		// Otherwise, attach a stack so downstream logging can render it.
		return pkgerrors.WithStack(err)
	}

	var out io.Writer = os.Stdout
	if opts.File != "" {
		out = zerolog.MultiLevelWriter(os.Stdout, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		})
	}

	return zerolog.New(out).
		Level(ParseLevel(opts.Level)).
		With().
		Str("service", serviceName).
		Timestamp().
		Logger()
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	if s == "" {
		return zerolog.InfoLevel
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
