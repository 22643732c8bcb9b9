// Copyright (C) 2025 Swiss Labs (dev@swissjs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rewrite

import (
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/swissjs/swite/services/devserver/resolver"
	"github.com/swissjs/swite/services/devserver/urls"
)

// Rewriter replaces every static module specifier in a script with an
// absolute or CDN URL.
//
// After a rewrite: no bare specifier remains, no internal framework
// prefix remains, and dynamic imports whose argument is not a string
// literal are byte-identical to the input. Rewriting is idempotent.
type Rewriter struct {
	res *resolver.Resolver
	ctx *urls.Context
	log *slog.Logger
}

// New creates a Rewriter on top of the given resolver.
func New(res *resolver.Resolver, ctx *urls.Context, log *slog.Logger) *Rewriter {
	if log == nil {
		log = slog.Default()
	}
	return &Rewriter{res: res, ctx: ctx, log: log}
}

// relativeJSRe finds quoted relative specifiers ending in .js for the
// backstop pass.
var relativeJSRe = regexp.MustCompile(`(['"])(\.{1,2}/[^'"]+\.js)(['"])`)

// bareScopedRe finds quoted scoped specifiers that survived the main
// pass, in import positions.
var bareScopedRe = regexp.MustCompile(`(from\s*|import\s*\(?\s*)(['"])(@[\w.-]+/[^'"]+)(['"])`)

// Rewrite substitutes every resolvable specifier in src. importer is
// the absolute path of the source the script was compiled from.
func (rw *Rewriter) Rewrite(src, importer string) string {
	refs := ScanImports(src)

	// Substitute back to front so earlier offsets stay valid.
	for i := len(refs) - 1; i >= 0; i-- {
		ref := refs[i]
		start, end := ref.Start, ref.End
		if start < 0 || end > len(src) || start > end {
			continue
		}
		// The scanner reports quote-excluded bounds; if the adjacent
		// byte disagrees, re-find the literal with a narrow regex and
		// adopt its bounds.
		if start == 0 || end >= len(src) || src[start-1] != ref.Quote || src[end] != ref.Quote {
			if s, e, ok := relocate(src, ref); ok {
				start, end = s, e
			} else {
				continue
			}
		}
		spec := src[start:end]
		replacement, changed := rw.rewriteSpecifier(spec, importer)
		if !changed {
			continue
		}
		src = src[:start] + replacement + src[end:]
	}

	src = rw.repairBackstop(src, importer)
	src = urls.ScrubInternalPrefix(src)
	src = rw.cdnBackstop(src)
	return src
}

// rewriteSpecifier decides the replacement for a single specifier. The
// boolean is false when the text must stay untouched.
func (rw *Rewriter) rewriteSpecifier(spec, importer string) (string, bool) {
	if strings.Contains(spec, ".css") {
		return "", false // stylesheet imports are stripped upstream
	}

	scrubbed := urls.ScrubInternalPrefix(spec)

	switch resolver.Classify(scrubbed) {
	case resolver.KindInvalid:
		return "", false
	case resolver.KindRelative:
		if repaired, ok := rw.repairRelative(scrubbed, importer); ok {
			return repaired, true
		}
		return scrubbed, scrubbed != spec
	case resolver.KindAbsolute, resolver.KindFramework:
		normalized := rw.normalizeAbsolute(scrubbed)
		return normalized, normalized != spec
	default:
		return rw.res.Resolve(scrubbed, importer), true
	}
}

// normalizeAbsolute applies the source-over-built preference to an
// absolute specifier under the public framework prefix. A built path
// whose src/ twin exists comes back as the twin's URL.
func (rw *Rewriter) normalizeAbsolute(url string) string {
	if rw.ctx == nil || !strings.HasPrefix(url, urls.PublicPrefix) {
		return url
	}
	path, ok := rw.ctx.ResolveFilePath(url)
	if path == "" {
		return url
	}
	if ok {
		return rw.ctx.ToURL(path)
	}
	if src := urls.PreferSourceAbs(path); src != path {
		return rw.ctx.ToURL(src)
	}
	return url
}

// repairRelative undoes the compiler's habit of emitting .js for
// relative imports of source files: when the .js target does not exist,
// an alternative extension is chosen from the importer's location.
func (rw *Rewriter) repairRelative(spec, importer string) (string, bool) {
	if !strings.HasSuffix(spec, ".js") {
		return "", false
	}
	target := filepath.Join(filepath.Dir(importer), filepath.FromSlash(spec))
	if fileExists(target) {
		return "", false
	}

	base := strings.TrimSuffix(spec, ".js")
	absBase := strings.TrimSuffix(target, ".js")
	chosen := rw.chooseRepairExt(importer, absBase)
	if chosen == "" {
		return "", false
	}
	return base + chosen, true
}

// chooseRepairExt implements the repair decision table, with the
// importer path as discriminator.
func (rw *Rewriter) chooseRepairExt(importer, absBase string) string {
	importerSlash := filepath.ToSlash(importer)

	preferred := ".ts"
	switch {
	case rw.ctx != nil && rw.ctx.FrameworkRoot != "" &&
		strings.HasPrefix(importerSlash, filepath.ToSlash(rw.ctx.FrameworkRoot)+"/packages/"):
		preferred = ".ts"
	case rw.ctx != nil && rw.ctx.WorkspaceRoot != "" &&
		strings.HasPrefix(importerSlash, filepath.ToSlash(rw.ctx.WorkspaceRoot)+"/lib/"):
		preferred = ".ts"
	case strings.HasSuffix(importer, ".ui"):
		preferred = ".ui"
	case strings.HasSuffix(importer, ".uix"):
		preferred = ".uix"
	}

	if fileExists(absBase + preferred) {
		return preferred
	}
	// When the preferred extension is absent fall down the ladder; a
	// .uix importer with both component flavors on disk keeps its own.
	for _, ext := range resolver.SourceExtensions {
		if ext == preferred {
			continue
		}
		if fileExists(absBase + ext) {
			return ext
		}
	}
	return preferred
}

// repairBackstop is the regex pass that catches relative .js specifiers
// the lexer-driven pass missed.
func (rw *Rewriter) repairBackstop(src, importer string) string {
	return relativeJSRe.ReplaceAllStringFunc(src, func(match string) string {
		groups := relativeJSRe.FindStringSubmatch(match)
		spec := groups[2]
		if repaired, ok := rw.repairRelative(spec, importer); ok {
			return groups[1] + repaired + groups[3]
		}
		return match
	})
}

// cdnBackstop force-substitutes any bare scoped specifier that survived
// every other pass. Absolute URLs start with "/" so they never match.
func (rw *Rewriter) cdnBackstop(src string) string {
	return bareScopedRe.ReplaceAllStringFunc(src, func(match string) string {
		groups := bareScopedRe.FindStringSubmatch(match)
		spec := groups[3]
		if strings.Contains(spec, ".css") {
			return match
		}
		rw.log.Warn("bare specifier survived rewrite, forcing CDN", "specifier", spec)
		return groups[1] + groups[2] + resolver.CDNURL(spec) + groups[4]
	})
}

// relocate re-finds a reported specifier with a narrow search when the
// scanner's bounds do not line up with quotes.
func relocate(src string, ref ImportRef) (int, int, bool) {
	lo := ref.Start - 2
	if lo < 0 {
		lo = 0
	}
	hi := ref.End + 2
	if hi > len(src) {
		hi = len(src)
	}
	window := src[lo:hi]
	for _, q := range []byte{'\'', '"'} {
		open := strings.IndexByte(window, q)
		if open < 0 {
			continue
		}
		closing := strings.IndexByte(window[open+1:], q)
		if closing < 0 {
			continue
		}
		return lo + open + 1, lo + open + 1 + closing, true
	}
	return 0, 0, false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
