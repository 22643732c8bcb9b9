// Copyright (C) 2025 Swiss Labs (dev@swissjs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package hmr watches the workspace and pushes classified change
// events to connected browsers.
package hmr

import (
	"path/filepath"
	"strings"

	"github.com/swissjs/swite/services/devserver/datatypes"
)

var styleExts = map[string]bool{
	".css":  true,
	".scss": true,
	".sass": true,
}

var scriptExts = map[string]bool{
	".js":  true,
	".ts":  true,
	".jsx": true,
	".tsx": true,
	".ui":  true,
	".uix": true,
}

// Classify decides how browsers should react to a change at path:
// stylesheets swap in place, component and page modules hot-reload,
// everything else forces a full reload.
func Classify(path string) datatypes.UpdateType {
	ext := strings.ToLower(filepath.Ext(path))
	if styleExts[ext] {
		return datatypes.UpdateStyle
	}
	slashed := filepath.ToSlash(path)
	if scriptExts[ext] && (strings.Contains(slashed, "/components/") || strings.Contains(slashed, "/pages/")) {
		return datatypes.UpdateHot
	}
	return datatypes.UpdateReload
}
