// Copyright (C) 2025 Swiss Labs (dev@swissjs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// HandleJS serves plain .js/.mjs/.jsx files: read, rewrite specifiers,
// respond. No compiler is involved. A request for a .js that does not
// exist cross-resolves onto the sibling set {.ts, .ui, .uix}; the first
// hit is handled by its owning handler under the corrected URL.
func HandleJS(p *Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		p.serveJS(c, c.Request.URL.Path)
	}
}

func (p *Pipeline) serveJS(c *gin.Context, url string) {
	path, ok := p.Ctx.ResolveFilePath(url)
	if ok {
		source, err := os.ReadFile(path)
		if err != nil {
			p.respondNotFound(c, url)
			return
		}
		respondScript(c, p.Rewriter.Rewrite(string(source), path))
		return
	}

	base := strings.TrimSuffix(url, filepath.Ext(url))
	for _, ext := range []string{".ts", ".ui", ".uix"} {
		corrected := base + ext
		if _, exists := p.Ctx.ResolveFilePath(corrected); !exists {
			continue
		}
		p.logger().Debug("extension cross-resolution", "requested", url, "serving", corrected)
		switch ext {
		case ".ts":
			p.serveTS(c, corrected)
		default:
			p.serveUI(c, corrected)
		}
		return
	}

	p.respondNotFound(c, url)
}
