// Copyright (C) 2025 Swiss Labs (dev@swissjs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package resolver turns module specifiers into URLs a browser can
// fetch.
package resolver

import (
	"regexp"
	"strings"

	"github.com/swissjs/swite/services/devserver/urls"
)

// Kind classifies a module specifier.
type Kind int

const (
	// KindInvalid covers anything that is not a resolvable specifier,
	// including property-access syntax like def.componentUrl. Invalid
	// specifiers are left untouched.
	KindInvalid Kind = iota

	// KindRelative begins with ".".
	KindRelative

	// KindAbsolute begins with "/".
	KindAbsolute

	// KindBare begins with a letter ("lit", "react/jsx-runtime").
	KindBare

	// KindScoped begins with "@" ("@swissjs/core").
	KindScoped

	// KindFramework begins with the internal framework prefix and must
	// be rewritten to the public URL prefix.
	KindFramework
)

// SourceExtensions is the probe order for extensionless specifiers.
// Earlier entries win ties when several files share a basename.
var SourceExtensions = []string{".ui", ".uix", ".ts", ".tsx", ".js", ".jsx", ".mjs"}

// barePackageRe is the grammar for a bare (unscoped) specifier: a
// package identifier and an optional subpath. Subpath segments may
// contain dots, so any file extension is accepted.
var barePackageRe = regexp.MustCompile(`^[A-Za-z][\w.-]*(/[\w.-]+)*$`)

// scopedPackageRe is the grammar for a scoped specifier.
var scopedPackageRe = regexp.MustCompile(`^@[\w.-]+/[\w.-]+(/[\w.-]+)*$`)

// Classify determines how a specifier should be dispatched.
//
// The variable-reference heuristic: a string that begins with a letter
// and contains a dot before any slash ("def.componentUrl") is property
// access in source text, not a module specifier. Scoped specifiers are
// exempt, so dotted subpaths like @scope/pkg/a.b/c still resolve.
func Classify(spec string) Kind {
	switch {
	case spec == "":
		return KindInvalid
	case strings.HasPrefix(strings.ToLower(spec), urls.InternalPrefix):
		return KindFramework
	case strings.HasPrefix(spec, "."):
		return KindRelative
	case strings.HasPrefix(spec, "/"):
		return KindAbsolute
	case strings.HasPrefix(spec, "@"):
		if !scopedPackageRe.MatchString(spec) {
			return KindInvalid
		}
		return KindScoped
	case isLetter(spec[0]):
		head, _, _ := strings.Cut(spec, "/")
		if strings.Contains(head, ".") {
			return KindInvalid
		}
		if !barePackageRe.MatchString(spec) {
			return KindInvalid
		}
		return KindBare
	default:
		return KindInvalid
	}
}

// SplitPackage separates a bare or scoped specifier into package name
// and subpath. "@swissjs/core/reactive" → ("@swissjs/core", "reactive").
func SplitPackage(spec string) (name, subpath string) {
	parts := strings.Split(spec, "/")
	if strings.HasPrefix(spec, "@") {
		if len(parts) < 2 {
			return spec, ""
		}
		return strings.Join(parts[:2], "/"), strings.Join(parts[2:], "/")
	}
	return parts[0], strings.Join(parts[1:], "/")
}

// CDNBase is the fallback registry for specifiers nothing local can
// satisfy.
const CDNBase = "https://cdn.jsdelivr.net/npm/"

// CDNURL returns the public CDN URL for a specifier.
func CDNURL(spec string) string {
	return CDNBase + spec + "/+esm"
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
