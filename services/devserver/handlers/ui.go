// Copyright (C) 2025 Swiss Labs (dev@swissjs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"os"

	"github.com/gin-gonic/gin"

	"github.com/swissjs/swite/services/devserver/datatypes"
	"github.com/swissjs/swite/services/devserver/rewrite"
	"github.com/swissjs/swite/services/devserver/urls"
)

// HandleUI serves .ui and .uix component sources: compile, strip
// stylesheet imports, rewrite specifiers, cache, respond.
func HandleUI(p *Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		p.serveUI(c, c.Request.URL.Path)
	}
}

// serveUI is shared with the handlers that cross-resolve onto a
// component file under a corrected URL.
func (p *Pipeline) serveUI(c *gin.Context, url string) {
	path, ok := p.Ctx.ResolveFilePath(url)
	if !ok {
		p.respondNotFound(c, url)
		return
	}

	reqCtx := c.Request.Context()
	out, err := p.Cache.GetOrBuild(path, p.DepsOf, func() (string, string, []string, error) {
		source, err := os.ReadFile(path)
		if err != nil {
			return "", "", nil, datatypes.ErrNotFound
		}
		compiled, err := p.Compiler.Compile(reqCtx, string(source), path)
		if err != nil {
			return "", "", nil, datatypes.NewCompileError(path, err)
		}
		// The compiler's output may still carry stylesheet imports and
		// the internal prefix; both go before the rewrite pass.
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
