// Copyright (C) 2025 Swiss Labs (dev@swissjs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestFindWorkspaceRootWithPnpmMarker(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "pnpm-workspace.yaml"), "packages:\n  - packages/*\n")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "packages"), 0o755))
	start := filepath.Join(root, "apps", "web", "src")
	require.NoError(t, os.MkdirAll(start, 0o755))

	got, ok := NewLocator(nil).FindWorkspaceRoot(start)
	require.True(t, ok)
	assert.Equal(t, root, got)
}

func TestFindWorkspaceRootWithManifestWorkspaces(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "package.json"), `{"name":"mono","workspaces":["lib/*"]}`)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "lib"), 0o755))
	start := filepath.Join(root, "lib", "deep")
	require.NoError(t, os.MkdirAll(start, 0o755))

	got, ok := NewLocator(nil).FindWorkspaceRoot(start)
	require.True(t, ok)
	assert.Equal(t, root, got)
}

func TestFindWorkspaceRootRequiresPackageDir(t *testing.T) {
	root := t.TempDir()
	// Marker present but no lib/packages/libraries/modules directory.
	writeFile(t, filepath.Join(root, "pnpm-workspace.yaml"), "packages: []\n")

	_, ok := NewLocator(nil).FindWorkspaceRoot(root)
	assert.False(t, ok)
}

func TestFindWorkspaceRootAbsentIsNotAnError(t *testing.T) {
	start := t.TempDir()
	got, ok := NewLocator(nil).FindWorkspaceRoot(start)
	assert.False(t, ok)
	assert.Empty(t, got)
}

func TestFindWorkspaceRootIsMemoized(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "pnpm-workspace.yaml"), "packages: []\n")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "packages"), 0o755))

	loc := NewLocator(nil)
	first, ok := loc.FindWorkspaceRoot(root)
	require.True(t, ok)

	// A different start must not change the memoized answer.
	second, ok := loc.FindWorkspaceRoot(t.TempDir())
	require.True(t, ok)
	assert.Equal(t, first, second)
}

func TestFindFrameworkMonorepo(t *testing.T) {
	base := t.TempDir()
	mono := filepath.Join(base, "swiss-lib")
	require.NoError(t, os.MkdirAll(filepath.Join(mono, "packages", "core"), 0o755))
	start := filepath.Join(base, "apps", "demo")
	require.NoError(t, os.MkdirAll(start, 0o755))

	got, ok := NewLocator(nil).FindFrameworkMonorepo(start)
	require.True(t, ok)
	assert.Equal(t, mono, got)
}

func TestFindFrameworkMonorepoFromInside(t *testing.T) {
	base := t.TempDir()
	mono := filepath.Join(base, "swiss-lib")
	start := filepath.Join(mono, "packages", "core", "src")
	require.NoError(t, os.MkdirAll(start, 0o755))

	got, ok := NewLocator(nil).FindFrameworkMonorepo(start)
	require.True(t, ok)
	assert.Equal(t, mono, got)
}

func TestFindFrameworkMonorepoRequiresPackagesDir(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "swiss-lib", "src"), 0o755))

	_, ok := NewLocator(nil).FindFrameworkMonorepo(base)
	assert.False(t, ok)
}
