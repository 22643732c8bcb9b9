// Copyright (C) 2025 Swiss Labs (dev@swissjs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package urls

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// fixture builds an app root, a workspace root, and a framework
// monorepo under one temp dir.
func fixture(t *testing.T) *Context {
	t.Helper()
	base := t.TempDir()
	app := filepath.Join(base, "workspace", "apps", "demo")
	ws := filepath.Join(base, "workspace")
	fw := filepath.Join(base, "swiss-lib")
	require.NoError(t, os.MkdirAll(app, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(fw, "packages"), 0o755))
	return &Context{AppRoot: app, WorkspaceRoot: ws, FrameworkRoot: fw}
}

func TestScrubInternalPrefix(t *testing.T) {
	assert.Equal(t, "/swiss-packages/core/src/index.ts",
		ScrubInternalPrefix("/swiss-lib/core/src/index.ts"))
	assert.Equal(t, "/swiss-packages/core/a.js",
		ScrubInternalPrefix("/SWISS-LIB/core/a.js"))
	assert.Equal(t, "no prefix here", ScrubInternalPrefix("no prefix here"))
	// Every occurrence is replaced, not only the first.
	scrubbed := ScrubInternalPrefix(`import "/swiss-lib/a.js"; import "/swiss-lib/b.js";`)
	assert.NotContains(t, strings.ToLower(scrubbed), "/swiss-lib/")
}

func TestToURLFrameworkPackage(t *testing.T) {
	ctx := fixture(t)
	file := filepath.Join(ctx.FrameworkRoot, "packages", "core", "src", "index.ts")
	writeFile(t, file, "export {}")

	url := ctx.ToURL(file)
	assert.Equal(t, "/swiss-packages/core/src/index.ts", url)
	assert.NotContains(t, strings.ToLower(url), "/swiss-lib/")
}

func TestToURLPrefersSourceOverBuilt(t *testing.T) {
	ctx := fixture(t)
	built := filepath.Join(ctx.FrameworkRoot, "packages", "core", "dist", "index.js")
	writeFile(t, built, "// built")
	writeFile(t, filepath.Join(ctx.FrameworkRoot, "packages", "core", "src", "index.ts"), "export {}")

	assert.Equal(t, "/swiss-packages/core/src/index.ts", ctx.ToURL(built))
}

func TestToURLKeepsBuiltWhenNoSourceTwin(t *testing.T) {
	ctx := fixture(t)
	built := filepath.Join(ctx.FrameworkRoot, "packages", "core", "dist", "only.js")
	writeFile(t, built, "// built")

	assert.Equal(t, "/swiss-packages/core/dist/only.js", ctx.ToURL(built))
}

func TestToURLNodeModulesPreservesCase(t *testing.T) {
	ctx := fixture(t)
	file := filepath.Join(ctx.AppRoot, "node_modules", "reflect-metadata", "Reflect.js")
	writeFile(t, file, "//")

	assert.Equal(t, "/node_modules/reflect-metadata/Reflect.js", ctx.ToURL(file))
}

func TestToURLAppAndWorkspaceFiles(t *testing.T) {
	ctx := fixture(t)
	appFile := filepath.Join(ctx.AppRoot, "src", "App.uix")
	writeFile(t, appFile, "//")
	assert.Equal(t, "/src/App.uix", ctx.ToURL(appFile))

	wsFile := filepath.Join(ctx.WorkspaceRoot, "lib", "shared", "util.ts")
	writeFile(t, wsFile, "//")
	assert.Equal(t, "/lib/shared/util.ts", ctx.ToURL(wsFile))
}

func TestToURLAlreadyURLOnlyScrubs(t *testing.T) {
	ctx := fixture(t)
	assert.Equal(t, "/swiss-packages/core/src/index.ts", ctx.ToURL("/swiss-lib/core/src/index.ts"))
	assert.Equal(t, "https://cdn.jsdelivr.net/npm/lit/+esm", ctx.ToURL("https://cdn.jsdelivr.net/npm/lit/+esm"))
}

func TestResolveFilePathAppTrees(t *testing.T) {
	ctx := fixture(t)
	writeFile(t, filepath.Join(ctx.AppRoot, "src", "index.ui"), "//")

	p, ok := ctx.ResolveFilePath("/src/index.ui")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(ctx.AppRoot, "src", "index.ui"), p)

	_, ok = ctx.ResolveFilePath("/src/missing.ui")
	assert.False(t, ok)
}

func TestResolveFilePathStripsQuery(t *testing.T) {
	ctx := fixture(t)
	writeFile(t, filepath.Join(ctx.AppRoot, "src", "index.ui"), "//")

	p, ok := ctx.ResolveFilePath("/src/index.ui?t=123456")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(ctx.AppRoot, "src", "index.ui"), p)
}

func TestResolveFilePathNodeModulesFallsBackToWorkspace(t *testing.T) {
	ctx := fixture(t)
	wsDep := filepath.Join(ctx.WorkspaceRoot, "node_modules", "lit", "index.js")
	writeFile(t, wsDep, "//")

	p, ok := ctx.ResolveFilePath("/node_modules/lit/index.js")
	require.True(t, ok)
	assert.Equal(t, wsDep, p)
}

func TestResolveFilePathFrameworkPrefix(t *testing.T) {
	ctx := fixture(t)
	file := filepath.Join(ctx.FrameworkRoot, "packages", "core", "src", "index.ts")
	writeFile(t, file, "//")

	p, ok := ctx.ResolveFilePath("/swiss-packages/core/src/index.ts")
	require.True(t, ok)
	assert.Equal(t, file, p)

	// The internal spelling resolves identically and never errors.
	p, ok = ctx.ResolveFilePath("/swiss-lib/core/src/index.ts")
	require.True(t, ok)
	assert.Equal(t, file, p)
}

func TestResolveFilePathWorkspacePrefixes(t *testing.T) {
	ctx := fixture(t)
	file := filepath.Join(ctx.WorkspaceRoot, "packages", "ui", "src", "button.tsx")
	writeFile(t, file, "//")

	p, ok := ctx.ResolveFilePath("/packages/ui/src/button.tsx")
	require.True(t, ok)
	assert.Equal(t, file, p)
}

func TestPreferSourceAbs(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "pkg", "src", "index.ts"), "//")
	built := filepath.Join(base, "pkg", "dist", "index.js")

	assert.Equal(t, filepath.Join(base, "pkg", "src", "index.ts"), PreferSourceAbs(built))
	// Without a twin the path is unchanged.
	other := filepath.Join(base, "pkg", "dist", "other.js")
	assert.Equal(t, other, PreferSourceAbs(other))
}

func TestFindCaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Reflect.js"), "//")

	name, ok := FindCaseInsensitive(dir, "reflect.js")
	require.True(t, ok)
	assert.Equal(t, "Reflect.js", name)

	_, ok = FindCaseInsensitive(dir, "nothing.js")
	assert.False(t, ok)
}
