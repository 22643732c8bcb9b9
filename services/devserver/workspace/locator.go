// Copyright (C) 2025 Swiss Labs (dev@swissjs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package workspace

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FrameworkDirName is the on-disk directory name of the framework
// monorepo. It must never appear in a browser-visible URL; see the urls
// package for the public prefix.
const FrameworkDirName = "swiss-lib"

// PackageDirs are the recognized package-holding directories that
// qualify a directory as a workspace root.
var PackageDirs = []string{"lib", "packages", "libraries", "modules"}

// Walk-up bounds.
const (
	maxRootAscent      = 10
	maxMonorepoAscent  = 20
	maxRegistryDescent = 15
)

// Locator finds workspace and framework roots by walking up from a
// start directory. Results are memoized for the life of the process;
// the locator never modifies the filesystem.
type Locator struct {
	log *slog.Logger

	rootOnce sync.Once
	root     string
	rootOK   bool

	monoOnce sync.Once
	mono     string
	monoOK   bool
}

// NewLocator creates a Locator. A nil logger means slog.Default().
func NewLocator(log *slog.Logger) *Locator {
	if log == nil {
		log = slog.Default()
	}
	return &Locator{log: log}
}

// FindWorkspaceRoot walks up from start (bounded at ten levels) and
// returns the nearest ancestor that carries a workspace marker and at
// least one recognized package directory. The boolean is false when no
// ancestor qualifies. The first call's result is cached.
func (l *Locator) FindWorkspaceRoot(start string) (string, bool) {
	l.rootOnce.Do(func() {
		l.root, l.rootOK = findWorkspaceRoot(start)
		if l.rootOK {
			l.log.Debug("workspace root located", "root", l.root)
		} else {
			l.log.Debug("no workspace root above start", "start", start)
		}
	})
	return l.root, l.rootOK
}

// FindFrameworkMonorepo walks up from start looking for the framework
// monorepo: a directory named after the framework that contains a
// packages subdirectory. The boolean is false when absent. Cached after
// the first call.
func (l *Locator) FindFrameworkMonorepo(start string) (string, bool) {
	l.monoOnce.Do(func() {
		l.mono, l.monoOK = findFrameworkMonorepo(start)
		if l.monoOK {
			l.log.Debug("framework monorepo located", "dir", l.mono)
		}
	})
	return l.mono, l.monoOK
}

func findWorkspaceRoot(start string) (string, bool) {
	dir := filepath.Clean(start)
	for i := 0; i <= maxRootAscent; i++ {
		if hasWorkspaceMarker(dir) && hasPackageDir(dir) {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false
}

func findFrameworkMonorepo(start string) (string, bool) {
	dir := filepath.Clean(start)
	for i := 0; i <= maxMonorepoAscent; i++ {
		// The monorepo may be the current ancestor itself or sit next
		// to it.
		if strings.EqualFold(filepath.Base(dir), FrameworkDirName) && isDir(filepath.Join(dir, "packages")) {
			return dir, true
		}
		sibling := filepath.Join(dir, FrameworkDirName)
		if isDir(filepath.Join(sibling, "packages")) {
			return sibling, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false
}

func hasWorkspaceMarker(dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, WorkspaceMarker)); err == nil {
		return true
	}
	m, ok, err := ReadManifest(dir)
	if err != nil || !ok {
		return false
	}
	return len(m.Workspaces) > 0
}

func hasPackageDir(dir string) bool {
	for _, d := range PackageDirs {
		if isDir(filepath.Join(dir, d)) {
			return true
		}
	}
	return false
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
