// Copyright (C) 2025 Swiss Labs (dev@swissjs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rewrite

import "regexp"

// Stylesheet imports never survive compilation to browser script: the
// pipeline strips them before rewriting, and the rewriter itself
// refuses any specifier containing ".css". Four passes are applied
// because the compiler has been observed to emit stylesheet imports in
// several shapes.
var (
	// Line-anchored: the whole line is a stylesheet import.
	cssLineRe = regexp.MustCompile(`(?m)^\s*import\s+['"][^'"]*\.css['"]\s*;?\s*$[\r\n]*`)

	// Word-boundary: an inline side-effect stylesheet import.
	cssInlineRe = regexp.MustCompile(`\bimport\s+['"][^'"]*\.css['"]\s*;?`)

	// Dynamic: import("x.css") calls, with or without await.
	cssDynamicRe = regexp.MustCompile(`(?:await\s+)?\bimport\s*\(\s*['"][^'"]*\.css['"]\s*\)\s*;?`)

	// Generic: default-binding imports of a .css specifier
	// (import styles from "x.css"), the form the compiler emits for CSS
	// modules. Named and namespace bindings are not matched.
	cssGenericRe = regexp.MustCompile(`\bimport\s+[\w$]+\s+from\s+['"][^'"]*\.css['"]\s*;?`)
)

// StripStyleImports removes every stylesheet import from script text.
func StripStyleImports(src string) string {
	src = cssLineRe.ReplaceAllString(src, "")
	src = cssGenericRe.ReplaceAllString(src, "")
	src = cssDynamicRe.ReplaceAllString(src, "")
	src = cssInlineRe.ReplaceAllString(src, "")
	return src
}
