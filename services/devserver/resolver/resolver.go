// Copyright (C) 2025 Swiss Labs (dev@swissjs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package resolver

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/swissjs/swite/services/devserver/importmap"
	"github.com/swissjs/swite/services/devserver/urls"
	"github.com/swissjs/swite/services/devserver/workspace"
)

// Resolver resolves bare, scoped, relative, absolute, and
// framework-prefixed specifiers to browser URLs.
//
// Resolution never fails hard: specifiers nothing local can satisfy
// come back as CDN URLs, and strings that are not specifiers at all
// come back unchanged.
type Resolver struct {
	ctx      *urls.Context
	registry *workspace.Registry
	imap     *importmap.Map
	log      *slog.Logger
}

// New creates a Resolver. imap may be nil when no import map was
// generated.
func New(ctx *urls.Context, registry *workspace.Registry, imap *importmap.Map, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	if imap == nil {
		imap = importmap.Empty()
	}
	return &Resolver{ctx: ctx, registry: registry, imap: imap, log: log}
}

// Resolve maps a specifier found in importer to a URL the browser can
// fetch. importer is the absolute path of the file whose imports are
// being rewritten.
func (r *Resolver) Resolve(specifier, importer string) string {
	kind := Classify(specifier)

	// Fast path: the pre-computed import map settles bare and scoped
	// specifiers without touching the filesystem.
	if kind == KindBare || kind == KindScoped {
		if url, ok := r.imap.Lookup(specifier); ok {
			return url
		}
	}

	switch kind {
	case KindInvalid:
		return specifier
	case KindFramework:
		return urls.ScrubInternalPrefix(specifier)
	case KindAbsolute:
		return urls.ScrubInternalPrefix(specifier)
	case KindRelative:
		return r.resolveRelative(specifier, importer)
	default:
		return r.resolveBare(specifier)
	}
}

// resolveRelative joins the specifier against the importer's directory
// and probes the source-extension ladder.
func (r *Resolver) resolveRelative(spec, importer string) string {
	joined := filepath.Join(filepath.Dir(importer), filepath.FromSlash(spec))

	if fileExists(joined) {
		return r.ctx.ToURL(joined)
	}
	for _, ext := range SourceExtensions {
		if fileExists(joined + ext) {
			return r.ctx.ToURL(joined + ext)
		}
	}
	for _, ext := range SourceExtensions {
		index := filepath.Join(joined, "index"+ext)
		if fileExists(index) {
			return r.ctx.ToURL(index)
		}
	}
	// Give up: emit the joined path's URL and let the browser report it.
	return r.ctx.ToURL(joined)
}

// resolveBare performs the node_modules / workspace probe chain for a
// bare or scoped specifier. A registry miss triggers a single rescan
// and retry before the CDN fallback.
func (r *Resolver) resolveBare(spec string) string {
	name, subpath := SplitPackage(spec)

	if url, ok := r.tryLocations(name, subpath); ok {
		return url
	}

	if r.registry != nil {
		if _, ok := r.registry.Find(name); !ok {
			if err := r.registry.Rescan(); err != nil {
				r.log.Warn("registry rescan failed", "error", err)
			} else if url, ok := r.tryLocations(name, subpath); ok {
				return url
			}
		}
	}

	r.log.Warn("specifier unresolved, substituting CDN", "specifier", spec)
	return CDNURL(spec)
}

// tryLocations probes each candidate location for the package in order:
// app node_modules, workspace node_modules, framework node_modules, the
// framework packages tree, and finally the registry index.
func (r *Resolver) tryLocations(name, subpath string) (string, bool) {
	for _, root := range []string{r.ctx.AppRoot, r.ctx.WorkspaceRoot, r.ctx.FrameworkRoot} {
		if root == "" {
			continue
		}
		dir := filepath.Join(root, "node_modules", filepath.FromSlash(name))
		if isDir(dir) {
			if r.isWorkspaceLink(dir) {
				if url, ok := r.resolveInWorkspacePackage(realPath(dir), subpath); ok {
					return url, true
				}
			}
			if url, ok := r.resolveInPackage(dir, subpath); ok {
				return url, true
			}
		}
	}

	if r.ctx.FrameworkRoot != "" {
		base := strings.TrimPrefix(name, "@swissjs/")
		dir := filepath.Join(r.ctx.FrameworkRoot, "packages", base)
		if isDir(dir) {
			if url, ok := r.resolveInPackage(dir, subpath); ok {
				return url, true
			}
		}
	}

	if r.registry != nil {
		if dir, ok := r.registry.Find(name); ok {
			if url, ok := r.resolveInWorkspacePackage(dir, subpath); ok {
				return url, true
			}
		}
	}
	return "", false
}

// resolveInPackage resolves subpath inside an installed package
// directory using the manifest's exports, with extension and
// case-insensitive fallbacks.
func (r *Resolver) resolveInPackage(dir, subpath string) (string, bool) {
	target := r.exportTarget(dir, subpath)
	if target == "" {
		return "", false
	}

	abs := filepath.Join(dir, filepath.FromSlash(target))
	abs = urls.PreferSourceAbs(abs)

	if p, ok := probeFile(abs); ok {
		return r.ctx.ToURL(p), true
	}
	// Last resort: the manifest may disagree with the on-disk case.
	if name, ok := urls.FindCaseInsensitive(filepath.Dir(abs), filepath.Base(abs)); ok {
		return r.ctx.ToURL(filepath.Join(filepath.Dir(abs), name)), true
	}
	return "", false
}

// resolveInWorkspacePackage is the workspace branch: same exports
// logic, plus the rule that built paths under dist/ are rewritten to
// their src/ twin when the twin exists.
func (r *Resolver) resolveInWorkspacePackage(dir, subpath string) (string, bool) {
	target := r.exportTarget(dir, subpath)
	if target == "" {
		return "", false
	}

	abs := urls.PreferSourceAbs(filepath.Join(dir, filepath.FromSlash(target)))
	if p, ok := probeFile(abs); ok {
		return r.ctx.ToURL(p), true
	}

	// Workspace packages in development often have only the source
	// tree; map dist/ to src/ even when the built file never existed.
	slashed := filepath.ToSlash(abs)
	if idx := strings.LastIndex(slashed, "/dist/"); idx >= 0 {
		srcTwin := filepath.FromSlash(slashed[:idx] + "/src/" + slashed[idx+len("/dist/"):])
		if p, ok := probeFile(srcTwin); ok {
			return r.ctx.ToURL(p), true
		}
	}
	return "", false
}

// exportTarget picks the relative file for subpath from the manifest in
// dir: exact export key, then trailing-directory match, then
// first-segment match, then main/module fields.
func (r *Resolver) exportTarget(dir, subpath string) string {
	m, ok, err := workspace.ReadManifest(dir)
	if err != nil {
		r.log.Warn("unreadable manifest during resolution", "dir", dir, "error", err)
		return ""
	}
	if !ok {
		if subpath != "" {
			return subpath
		}
		return "index.js"
	}

	if !m.Exports.IsZero() {
		if t := exportLookup(m.Exports, subpath); t != "" {
			return t
		}
	}

	if subpath != "" {
		return subpath
	}
	if m.Module != "" {
		return m.Module
	}
	if m.Main != "" {
		return m.Main
	}
	return "index.js"
}

// exportLookup applies the three-step export map search.
func exportLookup(em workspace.ExportMap, subpath string) string {
	if em.Single != "" {
		if subpath == "" {
			return em.Single
		}
		return ""
	}

	key := "."
	if subpath != "" {
		key = "./" + subpath
	}

	// Exact key.
	if t, ok := em.Subpaths[key]; ok {
		if f := t.Resolve(); f != "" {
			return f
		}
	}
	if subpath == "" {
		return ""
	}

	// Trailing-directory match: "./sub/*" or "./sub/" keys whose prefix
	// covers the requested subpath.
	for k, t := range em.Subpaths {
		prefix, isPattern := patternPrefix(k)
		if !isPattern || !strings.HasPrefix("./"+subpath, prefix) {
			continue
		}
		f := t.Resolve()
		if f == "" {
			continue
		}
		rest := strings.TrimPrefix("./"+subpath, prefix)
		return strings.Replace(f, "*", rest, 1)
	}

	// First-segment match: an export for the subpath's first segment.
	first, _, cut := strings.Cut(subpath, "/")
	if cut {
		if t, ok := em.Subpaths["./"+first]; ok {
			if f := t.Resolve(); f != "" {
				return f
			}
		}
	}
	return ""
}

// patternPrefix extracts the literal prefix of a pattern export key.
func patternPrefix(key string) (string, bool) {
	if strings.HasSuffix(key, "/*") {
		return key[:len(key)-1], true
	}
	if strings.HasSuffix(key, "/") {
		return key, true
	}
	return "", false
}

// isWorkspaceLink reports whether dir is a symbolic link whose real
// target lies under the workspace root and outside any node_modules
// (the layout pnpm creates for workspace dependencies).
func (r *Resolver) isWorkspaceLink(dir string) bool {
	info, err := os.Lstat(dir)
	if err != nil || info.Mode()&os.ModeSymlink == 0 {
		return false
	}
	real := realPath(dir)
	if strings.Contains(filepath.ToSlash(real), "/node_modules/") {
		return false
	}
	if r.ctx.WorkspaceRoot != "" && strings.HasPrefix(real, r.ctx.WorkspaceRoot+string(filepath.Separator)) {
		return true
	}
	return false
}

// probeFile tries path verbatim, then the source-extension ladder on
// top of it (with any built extension stripped first).
func probeFile(path string) (string, bool) {
	if fileExists(path) {
		return path, true
	}
	trimmed := path
	if ext := filepath.Ext(path); ext != "" && isScriptExt(ext) {
		trimmed = strings.TrimSuffix(path, ext)
	}
	for _, ext := range SourceExtensions {
		if fileExists(trimmed + ext) {
			return trimmed + ext, true
		}
	}
	for _, ext := range SourceExtensions {
		index := filepath.Join(path, "index"+ext)
		if fileExists(index) {
			return index, true
		}
	}
	return "", false
}

func isScriptExt(ext string) bool {
	for _, e := range SourceExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

func realPath(path string) string {
	real, err := filepath.EvalSymlinks(path)
	if err != nil {
		return path
	}
	return real
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
