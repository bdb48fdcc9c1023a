// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package logging provides structured logging for the memory decision core.
//
// The package is built on Go's standard library slog package with support
// for multi-destination output:
//
//   - Default: stderr output (text for humans, JSON when requested)
//   - Optional: file logging with automatic directory creation
//   - Extensible: additional sinks via the Sink interface
//
// Components of the decision core receive a *Logger at construction time.
// There is no package-level global; ownership and lifecycle belong to the
// caller that wires the core together.
//
// # Basic Usage
//
//	logger := logging.New(logging.Config{Level: logging.LevelInfo, Service: "memory"})
//	defer logger.Close()
//	logger.Info("edge_strengthened", "edge_id", id, "new_weight", w)
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level controls which messages are emitted.
//
// Levels follow the slog convention and are ordered by severity:
// Debug < Info < Warn < Error.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the level name in lowercase.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// ParseLevel converts a level name to a Level. Unknown names map to Info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// toSlogLevel bridges our Level type to the standard library.
func (l Level) toSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Sink receives every log record in addition to the configured handlers.
//
// Implementations must be safe for concurrent use. A slow Sink slows
// logging; buffer internally if delivery is expensive.
type Sink interface {
	// Write receives a single structured record.
	Write(ctx context.Context, record slog.Record) error

	// Close flushes and releases resources held by the sink.
	Close() error
}

// Config configures a Logger.
type Config struct {
	// Level is the minimum level to emit.
	Level Level

	// Service is attached to every record as the "service" attribute.
	Service string

	// JSON selects JSON output on stderr instead of text.
	JSON bool

	// Quiet disables stderr output entirely.
	Quiet bool

	// LogDir enables file logging when non-empty. Files are named
	// {service}_{date}.log and always written as JSON.
	LogDir string

	// Sink is an optional additional destination.
	Sink Sink
}

// Logger provides structured logging with multi-destination output.
//
// Thread Safety: Safe for concurrent use. Mutable state is protected by a
// mutex and the underlying slog.Logger is itself concurrency-safe.
type Logger struct {
	slog   *slog.Logger
	config Config
	file   *os.File
	sink   Sink
	mu     sync.Mutex
}

// New creates a Logger from the given configuration.
//
// The returned Logger must be closed with Close() when file logging or a
// Sink is configured.
func New(config Config) *Logger {
	opts := &slog.HandlerOptions{Level: config.Level.toSlogLevel()}

	var handlers []slog.Handler
	if !config.Quiet {
		if config.JSON {
			handlers = append(handlers, slog.NewJSONHandler(os.Stderr, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(os.Stderr, opts))
		}
	}

	logger := &Logger{config: config, sink: config.Sink}

	if config.LogDir != "" {
		if err := os.MkdirAll(config.LogDir, 0o750); err == nil {
			service := config.Service
			if service == "" {
				service = "memory"
			}
			name := fmt.Sprintf("%s_%s.log", service, time.Now().Format("2006-01-02"))
			file, err := os.OpenFile(filepath.Join(config.LogDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
			if err == nil {
				logger.file = file
				handlers = append(handlers, slog.NewJSONHandler(file, opts))
			}
		}
	}

	if logger.sink != nil {
		handlers = append(handlers, &sinkHandler{sink: logger.sink, level: opts.Level})
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		handler = slog.NewTextHandler(os.Stderr, opts)
	case 1:
		handler = handlers[0]
	default:
		handler = &multiHandler{handlers: handlers}
	}

	if config.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("service", config.Service)})
	}

	logger.slog = slog.New(handler)
	return logger
}

// Default returns a logger with Info level, text output on stderr, and
// service name "memory".
func Default() *Logger {
	return New(Config{Level: LevelInfo, Service: "memory"})
}

// Discard returns a logger that drops every record. Useful in tests.
func Discard() *Logger {
	return &Logger{
		config: Config{Quiet: true},
		slog:   slog.New(discardHandler{}),
	}
}

// Debug logs a message at Debug level with key-value attributes.
func (l *Logger) Debug(msg string, args ...any) { l.slog.Debug(msg, args...) }

// Info logs a message at Info level with key-value attributes.
func (l *Logger) Info(msg string, args ...any) { l.slog.Info(msg, args...) }

// Warn logs a message at Warn level with key-value attributes.
func (l *Logger) Warn(msg string, args ...any) { l.slog.Warn(msg, args...) }

// Error logs a message at Error level with key-value attributes.
func (l *Logger) Error(msg string, args ...any) { l.slog.Error(msg, args...) }

// With returns a child Logger carrying additional attributes. The parent is
// not modified; file handle and sink are shared.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		slog:   l.slog.With(args...),
		config: l.config,
		file:   l.file,
		sink:   l.sink,
	}
}

// Slog exposes the underlying slog.Logger for features this wrapper does
// not surface.
func (l *Logger) Slog() *slog.Logger { return l.slog }

// Close flushes and closes the file and sink, if configured.
//
// Returns the first error encountered; cleanup continues past failures.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var first error
	if l.sink != nil {
		if err := l.sink.Close(); err != nil && first == nil {
			first = fmt.Errorf("close sink: %w", err)
		}
		l.sink = nil
	}
	if l.file != nil {
		if err := l.file.Sync(); err != nil && first == nil {
			first = fmt.Errorf("sync log file: %w", err)
		}
		if err := l.file.Close(); err != nil && first == nil {
			first = fmt.Errorf("close log file: %w", err)
		}
		l.file = nil
	}
	return first
}

// multiHandler fans a record out to every underlying handler.
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, record slog.Record) error {
	var first error
	for _, h := range m.handlers {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: next}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: next}
}

// sinkHandler adapts a Sink to the slog.Handler interface.
type sinkHandler struct {
	sink  Sink
	level slog.Leveler
}

func (s *sinkHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= s.level.Level()
}

func (s *sinkHandler) Handle(ctx context.Context, record slog.Record) error {
	return s.sink.Write(ctx, record)
}

func (s *sinkHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	// Sinks receive raw records; accumulated attrs travel with the record.
	return s
}

func (s *sinkHandler) WithGroup(string) slog.Handler { return s }

// discardHandler drops everything.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return discardHandler{} }
func (discardHandler) WithGroup(string) slog.Handler             { return discardHandler{} }
