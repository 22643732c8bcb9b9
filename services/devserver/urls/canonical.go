// Copyright (C) 2025 Swiss Labs (dev@swissjs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package urls maps absolute filesystem paths to browser-visible URLs
// and back.
//
// Three rules govern the mapping:
//
//  1. Source over built tree: a path under dist/ whose src/ twin exists
//     (with the built extension remapped to its source extension) is
//     emitted as the src/ URL.
//  2. The internal framework prefix (/swiss-lib/) never reaches a
//     browser; every return point substitutes the public prefix
//     (/swiss-packages/). The substitution is applied at several layers
//     on purpose; collapsing it to one pass has regressed before.
//  3. Paths through node_modules preserve the exact on-disk case of
//     every segment.
package urls

import (
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// The two spellings of the framework package collection. InternalPrefix
// is the on-disk directory, PublicPrefix is what browsers see.
const (
	InternalPrefix = "/swiss-lib/"
	PublicPrefix   = "/swiss-packages/"
)

// internalPrefixRe matches the internal prefix case-insensitively. The
// optional packages/ segment collapses, because the public prefix
// already addresses the monorepo's packages directory.
var internalPrefixRe = regexp.MustCompile(`(?i)/swiss-lib/(?:packages/)?`)

// ScrubInternalPrefix rewrites every occurrence of the internal
// framework prefix to the public one, case-insensitively.
func ScrubInternalPrefix(s string) string {
	if !strings.Contains(strings.ToLower(s), InternalPrefix) {
		return s
	}
	return internalPrefixRe.ReplaceAllString(s, PublicPrefix)
}

// builtToSource maps built-tree extensions to the source extensions
// tried when looking for a src/ twin, in preference order.
var builtToSource = map[string][]string{
	".js":  {".ts", ".tsx", ".ui", ".uix", ".js"},
	".mjs": {".ts", ".mts", ".mjs"},
	".jsx": {".tsx", ".jsx"},
}

// Context carries the roots every mapping decision consults.
type Context struct {
	// AppRoot is the application directory being served.
	AppRoot string

	// WorkspaceRoot is the enclosing workspace root; empty when the app
	// is not inside a workspace.
	WorkspaceRoot string

	// FrameworkRoot is the framework monorepo directory (the on-disk
	// swiss-lib checkout); empty when not present.
	FrameworkRoot string

	Log *slog.Logger
}

func (c *Context) logger() *slog.Logger {
	if c.Log != nil {
		return c.Log
	}
	return slog.Default()
}

// ToURL returns the canonical browser URL for an absolute path (or for
// a string that is already a URL, in which case only the prefix scrub
// applies).
func (c *Context) ToURL(path string) string {
	if isAlreadyURL(path) {
		return ScrubInternalPrefix(path)
	}

	path = filepath.ToSlash(filepath.Clean(path))

	if c.FrameworkRoot != "" {
		pkgs := filepath.ToSlash(filepath.Join(c.FrameworkRoot, "packages"))
		if rel, ok := pathUnder(path, pkgs); ok {
			return ScrubInternalPrefix(PublicPrefix + PreferSource(c.FrameworkRoot, rel))
		}
	}

	if idx := strings.LastIndex(path, "/node_modules/"); idx >= 0 {
		// Segments after node_modules keep their on-disk case verbatim.
		return ScrubInternalPrefix("/node_modules/" + path[idx+len("/node_modules/"):])
	}

	appRoot := filepath.ToSlash(c.AppRoot)
	if rel, ok := pathUnder(path, appRoot); ok {
		return ScrubInternalPrefix("/" + rel)
	}

	if c.WorkspaceRoot != "" {
		wsRoot := filepath.ToSlash(c.WorkspaceRoot)
		if rel, ok := pathUnder(path, wsRoot); ok {
			if strings.HasPrefix(rel, "packages/") && !fileExists(path) {
				rel = PreferSource(c.WorkspaceRoot, rel)
			}
			return ScrubInternalPrefix("/" + rel)
		}
		if rel, err := filepath.Rel(c.WorkspaceRoot, path); err == nil {
			c.logger().Warn("path outside every root, emitting workspace-relative URL", "path", path)
			return ScrubInternalPrefix("/" + filepath.ToSlash(rel))
		}
	}

	c.logger().Warn("path outside every root", "path", path)
	return ScrubInternalPrefix(path)
}

// ResolveFilePath is the inverse of ToURL: it maps a request URL to the
// absolute file path the server should read. The boolean reports
// whether the file exists; the path is returned either way so callers
// can run their own extension fallbacks, except for public framework
// URLs when no framework root is known, which yield an empty path.
func (c *Context) ResolveFilePath(url string) (string, bool) {
	url = ScrubInternalPrefix(url)
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	if !strings.HasPrefix(url, "/") {
		url = "/" + url
	}

	switch {
	case strings.HasPrefix(url, "/src/"), strings.HasPrefix(url, "/public/"), strings.HasPrefix(url, "/assets/"):
		p := filepath.Join(c.AppRoot, filepath.FromSlash(url))
		return p, fileExists(p)

	case strings.HasPrefix(url, "/node_modules/"):
		p := filepath.Join(c.AppRoot, filepath.FromSlash(url))
		if fileExists(p) {
			return p, true
		}
		if c.WorkspaceRoot != "" {
			wp := filepath.Join(c.WorkspaceRoot, filepath.FromSlash(url))
			if fileExists(wp) {
				return wp, true
			}
		}
		return p, false

	case strings.HasPrefix(url, PublicPrefix):
		if c.FrameworkRoot == "" {
			return "", false
		}
		rest := strings.TrimPrefix(url, PublicPrefix)
		p := filepath.Join(c.FrameworkRoot, "packages", filepath.FromSlash(rest))
		return p, fileExists(p)

	case strings.HasPrefix(url, "/lib/"), strings.HasPrefix(url, "/libraries/"),
		strings.HasPrefix(url, "/packages/"), strings.HasPrefix(url, "/modules/"):
		root := c.WorkspaceRoot
		if root == "" {
			root = c.AppRoot
		}
		p := filepath.Join(root, filepath.FromSlash(url))
		return p, fileExists(p)

	default:
		if c.WorkspaceRoot != "" {
			p := filepath.Join(c.WorkspaceRoot, filepath.FromSlash(url))
			if fileExists(p) {
				return p, true
			}
		}
		p := filepath.Join(c.AppRoot, filepath.FromSlash(url))
		return p, fileExists(p)
	}
}

// PreferSource applies the source-over-built rule to a slash-separated
// path relative to root (or absolute under root): when the path runs
// through dist/ and a src/ twin with a source extension exists on disk,
// the twin's relative path is returned. Otherwise rel comes back
// unchanged.
func PreferSource(root, rel string) string {
	if !strings.Contains("/"+rel+"/", "/dist/") {
		return rel
	}
	idx := strings.LastIndex(rel, "dist/")
	srcRel := rel[:idx] + "src/" + rel[idx+len("dist/"):]

	ext := filepath.Ext(srcRel)
	candidates, ok := builtToSource[ext]
	if !ok {
		candidates = []string{ext}
	}
	base := strings.TrimSuffix(srcRel, ext)
	for _, alt := range candidates {
		candidate := base + alt
		if fileExists(filepath.Join(root, "packages", filepath.FromSlash(candidate))) ||
			fileExists(filepath.Join(root, filepath.FromSlash(candidate))) {
			return candidate
		}
	}
	return rel
}

// PreferSourceAbs is PreferSource for absolute paths.
func PreferSourceAbs(abs string) string {
	slashed := filepath.ToSlash(abs)
	idx := strings.LastIndex(slashed, "/dist/")
	if idx < 0 {
		return abs
	}
	srcPath := slashed[:idx] + "/src/" + slashed[idx+len("/dist/"):]
	ext := filepath.Ext(srcPath)
	candidates, ok := builtToSource[ext]
	if !ok {
		candidates = []string{ext}
	}
	base := strings.TrimSuffix(srcPath, ext)
	for _, alt := range candidates {
		if fileExists(filepath.FromSlash(base + alt)) {
			return filepath.FromSlash(base + alt)
		}
	}
	return abs
}

// FindCaseInsensitive scans dir for an entry matching base regardless
// of case and returns the on-disk name.
func FindCaseInsensitive(dir, base string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if strings.EqualFold(e.Name(), base) {
			return e.Name(), true
		}
	}
	return "", false
}

func isAlreadyURL(s string) bool {
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return true
	}
	lower := strings.ToLower(s)
	for _, p := range []string{PublicPrefix, InternalPrefix, "/node_modules/", "/src/", "/public/", "/assets/"} {
		if strings.HasPrefix(lower, p) && !fileExists(s) {
			return true
		}
	}
	return false
}

// pathUnder returns path relative to root when path sits inside root.
// Both arguments must be slash-separated.
func pathUnder(path, root string) (string, bool) {
	root = strings.TrimSuffix(root, "/")
	if root == "" {
		return "", false
	}
	if !strings.HasPrefix(path, root+"/") {
		return "", false
	}
	return path[len(root)+1:], true
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
