// Copyright (C) 2025 Swiss Labs (dev@swissjs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config reads dev-server configuration from the environment.
//
// All knobs have working defaults; a bare `swite` invocation in an
// application directory needs no environment at all.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/swissjs/swite/services/devserver/datatypes"
)

// Defaults for the dev server.
const (
	DefaultPort          = 3000
	DefaultCacheCapacity = 1000
	DefaultDebounceMS    = 100
)

// Config is the resolved dev-server configuration.
type Config struct {
	// Port is the preferred HTTP port. If busy, the server probes the OS
	// for a free ephemeral port and reports the one it actually bound.
	Port int

	// AppRoot is the application directory being served. Defaults to the
	// process working directory.
	AppRoot string

	// WorkspaceRoot optionally pins the workspace root instead of walking
	// up from AppRoot.
	WorkspaceRoot string

	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string

	// CacheCapacity bounds the compilation cache (entries).
	CacheCapacity int

	// DebounceMS is the watcher write-stable debounce window.
	DebounceMS int

	// OTLPEndpoint enables OpenTelemetry trace export when non-empty.
	OTLPEndpoint string
}

// FromEnv builds a Config from SWITE_* environment variables.
func FromEnv() (Config, error) {
	cfg := Config{
		Port:          DefaultPort,
		LogLevel:      "info",
		CacheCapacity: DefaultCacheCapacity,
		DebounceMS:    DefaultDebounceMS,
		OTLPEndpoint:  strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
	}

	if v := os.Getenv("SWITE_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p < 1 || p > 65535 {
			return cfg, &datatypes.ConfigError{Key: "SWITE_PORT", Err: fmt.Errorf("invalid port %q", v)}
		}
		cfg.Port = p
	}

	if v := os.Getenv("SWITE_CACHE_CAPACITY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return cfg, &datatypes.ConfigError{Key: "SWITE_CACHE_CAPACITY", Err: fmt.Errorf("invalid capacity %q", v)}
		}
		cfg.CacheCapacity = n
	}

	if v := os.Getenv("SWITE_DEBOUNCE_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return cfg, &datatypes.ConfigError{Key: "SWITE_DEBOUNCE_MS", Err: fmt.Errorf("invalid debounce %q", v)}
		}
		cfg.DebounceMS = n
	}

	if v := os.Getenv("SWITE_LOG_LEVEL"); v != "" {
		switch strings.ToLower(v) {
		case "debug", "info", "warn", "error":
			cfg.LogLevel = strings.ToLower(v)
		default:
			return cfg, &datatypes.ConfigError{Key: "SWITE_LOG_LEVEL", Err: fmt.Errorf("unknown level %q", v)}
		}
	}

	appRoot := os.Getenv("SWITE_APP_ROOT")
	if appRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			return cfg, &datatypes.ConfigError{Key: "SWITE_APP_ROOT", Err: err}
		}
		appRoot = wd
	}
	abs, err := filepath.Abs(appRoot)
	if err != nil {
		return cfg, &datatypes.ConfigError{Key: "SWITE_APP_ROOT", Err: err}
	}
	cfg.AppRoot = abs

	if v := os.Getenv("SWITE_WORKSPACE_ROOT"); v != "" {
		abs, err := filepath.Abs(v)
		if err != nil {
			return cfg, &datatypes.ConfigError{Key: "SWITE_WORKSPACE_ROOT", Err: err}
		}
		cfg.WorkspaceRoot = abs
	}

	return cfg, nil
}

// ImportMapPath is where the generator writes and the pipeline reads the
// pre-computed import map.
func (c Config) ImportMapPath() string {
	return filepath.Join(c.AppRoot, ".swite", "import-map.json")
}

// ScratchDir is the server's own work directory inside the app root. The
// registry scan skips it.
func (c Config) ScratchDir() string {
	return filepath.Join(c.AppRoot, ".swite")
}
