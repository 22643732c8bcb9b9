// Copyright (C) 2025 Swiss Labs (dev@swissjs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/swissjs/swite/services/devserver/resolver"
	"github.com/swissjs/swite/services/devserver/urls"
)

// packageNameRe validates the first path segment of a missing
// node_modules URL before redirecting to the CDN.
var packageNameRe = regexp.MustCompile(`^(@[\w.-]+/)?[\w.-]+$`)

// HandleNodeModule serves installed dependencies as-is. Package
// internals are never rewritten; they already speak browser module
// syntax or manage their own imports. Missing files fall back to a
// case-insensitive directory scan, then to a CDN redirect.
func HandleNodeModule(p *Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		url := c.Request.URL.Path
		path, ok := p.Ctx.ResolveFilePath(url)
		if !ok {
			// The manifest may name the file in a different case than
			// the filesystem carries (Reflect.js vs reflect.js).
			if fixed, found := p.caseInsensitiveFallback(path); found {
				path, ok = fixed, true
				url = p.Ctx.ToURL(fixed)
			}
		}
		if ok {
			data, err := os.ReadFile(path)
			if err != nil {
				p.respondNotFound(c, url)
				return
			}
			c.Data(http.StatusOK, ContentTypeFor(path), data)
			return
		}

		spec := strings.TrimPrefix(url, "/node_modules/")
		if name, _ := resolver.SplitPackage(spec); packageNameRe.MatchString(name) {
			cdn := resolver.CDNURL(spec)
			p.logger().Info("node module missing, redirecting to CDN", "url", url, "cdn", cdn)
			c.Redirect(http.StatusFound, cdn)
			return
		}
		p.respondNotFound(c, url)
	}
}

// caseInsensitiveFallback looks for the requested basename in its
// directory regardless of case, preserving the on-disk spelling.
func (p *Pipeline) caseInsensitiveFallback(path string) (string, bool) {
	if path == "" {
		return "", false
	}
	dir, base := filepath.Dir(path), filepath.Base(path)
	name, ok := urls.FindCaseInsensitive(dir, base)
	if !ok {
		return "", false
	}
	fixed := filepath.Join(dir, name)
	if info, err := os.Stat(fixed); err != nil || info.IsDir() {
		return "", false
	}
	return fixed, true
}
