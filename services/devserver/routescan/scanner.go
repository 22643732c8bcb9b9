// Copyright (C) 2025 Swiss Labs (dev@swissjs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package routescan enumerates route-file definitions by filesystem
// convention: every component under src/pages maps to a route path.
//
// The production router owns route semantics; the dev server only needs
// the (path, file) pairs for the /__swite_routes table.
package routescan

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/swissjs/swite/services/devserver/datatypes"
)

var routeExts = map[string]bool{
	".ui":  true,
	".uix": true,
	".ts":  true,
	".tsx": true,
}

// Scan walks appRoot/src/pages and derives route paths:
// index files map to their directory, [param] segments become :param.
func Scan(appRoot string) ([]datatypes.Route, error) {
	pagesDir := filepath.Join(appRoot, "src", "pages")
	var routes []datatypes.Route

	err := filepath.WalkDir(pagesDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != pagesDir {
				return filepath.SkipDir
			}
			return nil
		}
		ext := filepath.Ext(d.Name())
		if !routeExts[ext] {
			return nil
		}
		rel, err := filepath.Rel(pagesDir, path)
		if err != nil {
			return nil
		}
		routes = append(routes, datatypes.Route{
			Path: routePath(rel),
			File: path,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(routes, func(i, j int) bool { return routes[i].Path < routes[j].Path })
	return routes, nil
}

// routePath converts a pages-relative file into its URL path.
func routePath(rel string) string {
	p := filepath.ToSlash(rel)
	p = strings.TrimSuffix(p, filepath.Ext(p))
	if p == "index" {
		return "/"
	}
	p = strings.TrimSuffix(p, "/index")

	segs := strings.Split(p, "/")
	for i, seg := range segs {
		if strings.HasPrefix(seg, "[") && strings.HasSuffix(seg, "]") {
			segs[i] = ":" + seg[1:len(seg)-1]
		}
	}
	return "/" + strings.Join(segs, "/")
}
