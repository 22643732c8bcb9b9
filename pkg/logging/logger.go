// Copyright (C) 2025 Swiss Labs (dev@swissjs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging provides structured logging for swite components.
//
// The package is a thin layer over the standard library slog package:
//
//   - Default: stderr output in text format (Unix CLI convention)
//   - Optional: a log file alongside stderr, for tooling that tails
//     the dev server; it is written in the stderr format, or in JSON
//     when stderr output is disabled
//
// # Basic Usage
//
//	logger := logging.Default()
//	logger.Info("serving", "url", url, "path", path)
//	logger.Error("compile failed", "path", path, "error", err)
//
// # File Logging
//
//	logger, err := logging.New(logging.Config{
//	    Level:   logging.LevelDebug,
//	    LogDir:  ".swite/logs",
//	    Service: "devserver",
//	})
//	if err != nil { ... }
//	defer logger.Close()
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Level represents log severity, ordered Debug < Info < Warn < Error.
// LevelInfo is the zero value.
type Level int

const (
	LevelDebug Level = iota - 1
	LevelInfo
	LevelWarn
	LevelError
)

// String returns "DEBUG", "INFO", "WARN" or "ERROR".
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a config string to a Level. Unknown strings mean Info.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

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

// Config configures the Logger. The zero value writes Info+ text to stderr.
type Config struct {
	// Level is the minimum level; messages below it are discarded.
	Level Level

	// LogDir, when set, also writes logs to
	// {LogDir}/{Service}_{YYYY-MM-DD}.log. The directory is created if
	// missing. A leading ~/ expands to the home directory. The file
	// shares the stderr format; with Quiet set it is always JSON.
	LogDir string

	// Service is attached to every entry as the "service" attribute.
	Service string

	// JSON switches output to JSON, for stderr and the log file alike.
	JSON bool

	// Quiet disables stderr output entirely.
	Quiet bool
}

// Logger wraps slog.Logger with multi-destination output and cleanup.
// Safe for concurrent use.
type Logger struct {
	*slog.Logger

	mu   sync.Mutex
	file *os.File
}

// New creates a Logger from the given Config.
func New(cfg Config) (*Logger, error) {
	var writers []io.Writer
	lg := &Logger{}

	if !cfg.Quiet {
		writers = append(writers, os.Stderr)
	}

	if cfg.LogDir != "" {
		dir, err := expandHome(cfg.LogDir)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		name := fmt.Sprintf("%s_%s.log", cfg.Service, time.Now().Format("2006-01-02"))
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		lg.file = f
		writers = append(writers, f)
	}

	var out io.Writer = io.Discard
	if len(writers) == 1 {
		out = writers[0]
	} else if len(writers) > 1 {
		out = io.MultiWriter(writers...)
	}

	opts := &slog.HandlerOptions{Level: cfg.Level.toSlogLevel()}
	var handler slog.Handler
	if cfg.JSON || (cfg.Quiet && cfg.LogDir != "") {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	sl := slog.New(handler)
	if cfg.Service != "" {
		sl = sl.With("service", cfg.Service)
	}
	lg.Logger = sl
	return lg, nil
}

// Default returns a stderr-only Info-level logger. It never fails.
func Default() *Logger {
	lg, _ := New(Config{})
	return lg
}

// Close flushes and closes the log file, if any. Safe to call twice.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func expandHome(dir string) (string, error) {
	if len(dir) < 2 || dir[0] != '~' || dir[1] != '/' {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand %q: %w", dir, err)
	}
	return filepath.Join(home, dir[2:]), nil
}
