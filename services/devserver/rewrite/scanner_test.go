// Copyright (C) 2025 Swiss Labs (dev@swissjs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func specifiers(src string) []string {
	var out []string
	for _, ref := range ScanImports(src) {
		out = append(out, ref.Specifier(src))
	}
	return out
}

func TestScanStaticImports(t *testing.T) {
	src := `import { SwissApp } from '@swissjs/core';
import Default from "./App.uix";
import * as utils from '../lib/utils.ts';
import './side-effect.js';
`
	assert.Equal(t, []string{
		"@swissjs/core", "./App.uix", "../lib/utils.ts", "./side-effect.js",
	}, specifiers(src))
}

func TestScanExportFrom(t *testing.T) {
	src := `export { a, b } from './reexport.js';
export * from "@swissjs/router";
export const local = 1;
`
	assert.Equal(t, []string{"./reexport.js", "@swissjs/router"}, specifiers(src))
}

func TestScanDynamicImportLiteral(t *testing.T) {
	src := `const mod = await import('./lazy.js');`
	refs := ScanImports(src)
	require.Len(t, refs, 1)
	assert.True(t, refs[0].Dynamic)
	assert.Equal(t, "./lazy.js", refs[0].Specifier(src))
}

func TestScanDynamicImportVariableIgnored(t *testing.T) {
	src := `const mod = await import(def.componentUrl);`
	assert.Empty(t, ScanImports(src))
}

func TestScanImportMetaIgnored(t *testing.T) {
	src := `const u = import.meta.url;`
	assert.Empty(t, ScanImports(src))
}

func TestScanIgnoresCommentsAndStrings(t *testing.T) {
	src := `// import fake from './commented.js'
/* import alsoFake from './block.js' */
const s = "import notReal from './string.js'";
const tpl = ` + "`import nope from './tpl.js'`" + `;
import real from './real.js';
`
	assert.Equal(t, []string{"./real.js"}, specifiers(src))
}

func TestScanIdentifierPrefixNotConfused(t *testing.T) {
	src := `const reimport = 1; myimport('./x.js'); exporter('./y.js');`
	assert.Empty(t, ScanImports(src))
}

func TestScanQuoteKindReported(t *testing.T) {
	src := `import a from './a.js'; import b from "./b.js";`
	refs := ScanImports(src)
	require.Len(t, refs, 2)
	assert.Equal(t, byte('\''), refs[0].Quote)
	assert.Equal(t, byte('"'), refs[1].Quote)
}
