// Package logging provides structured logging utilities for the stream
// writer.
//
// Design principles:
//   - Logging is dependency-injected, never global
//   - Each component owns its own scoped logger
//   - Logger scoping happens once at construction time
//   - slog.With() is used to attach default attributes
//   - If no logger is provided, a discard logger is used
//
// The one piece of process-wide state is the log level (see level.go),
// which external callers may set and query independently of any stream
// instance. Output format and destination still belong in main().
//
// Logging is intentionally sparse: stream open/close and write failures
// are the intended log points. No logging inside the append or codec
// hot paths.
package logging

import (
	"context"
	"io"
	"log/slog"
)

// discardHandler is a handler that discards all log records.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// Discard returns a logger that discards all output.
// Use this as a default when no logger is provided.
func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}

// Default returns the provided logger if non-nil, otherwise returns a
// discard logger. This is the standard pattern for optional logger
// parameters:
//
//	func New(cfg Config) *Stream {
//	    logger := logging.Default(cfg.Logger).With("component", "stream")
//	    ...
//	}
func Default(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return Discard()
}

// NewLogger returns a text-format logger writing to w that honors the
// process-wide level (SetLevel/GetLevel). Intended for main().
func NewLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: &levelVar}))
}
