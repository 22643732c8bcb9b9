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

	"github.com/swissjs/swite/services/devserver/compiler"
	"github.com/swissjs/swite/services/devserver/datatypes"
	"github.com/swissjs/swite/services/devserver/rewrite"
	"github.com/swissjs/swite/services/devserver/urls"
)

// HandleTS serves .ts/.tsx sources through the external type-stripping
// transformer. A missing .ts whose sibling .ui or .uix exists is
// delegated to the UI handler under the corrected URL.
func HandleTS(p *Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		p.serveTS(c, c.Request.URL.Path)
	}
}

func (p *Pipeline) serveTS(c *gin.Context, url string) {
	path, ok := p.Ctx.ResolveFilePath(url)
	if !ok {
		base := strings.TrimSuffix(url, filepath.Ext(url))
		for _, ext := range []string{".ui", ".uix"} {
			if _, exists := p.Ctx.ResolveFilePath(base + ext); exists {
				p.serveUI(c, base+ext)
				return
			}
		}
		p.respondNotFound(c, url)
		return
	}

	loader := "ts"
	if strings.HasSuffix(path, ".tsx") {
		loader = "tsx"
	}

	reqCtx := c.Request.Context()
	out, err := p.Cache.GetOrBuild(path, p.DepsOf, func() (string, string, []string, error) {
		source, err := os.ReadFile(path)
		if err != nil {
			return "", "", nil, datatypes.ErrNotFound
		}
		compiled, err := p.Transformer.Transform(reqCtx, string(source), compiler.TransformOptions{
			Loader:     loader,
			SourcePath: path,
		})
		if err != nil {
			return "", "", nil, datatypes.NewCompileError(path, err)
		}
		compiled = rewrite.StripStyleImports(compiled)
		compiled = urls.ScrubInternalPrefix(compiled)
		rewritten := p.Rewriter.Rewrite(compiled, path)
		return compiled, rewritten, p.DepsOf(compiled), nil
	})
	if err != nil {
		p.respondError(c, url, "compile", err)
		return
	}
	respondScript(c, out)
}
