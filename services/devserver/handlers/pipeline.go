// Copyright (C) 2025 Swiss Labs (dev@swissjs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers contains the per-extension request handlers of the
// dev server: compile, rewrite, cache, respond.
//
// Errors are translated to HTTP responses here and never propagate to
// the outer router; letting them escape would trigger the single-page
// fallback and poison browser caches with HTML under script URLs.
package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/swissjs/swite/services/devserver/cache"
	"github.com/swissjs/swite/services/devserver/compiler"
	"github.com/swissjs/swite/services/devserver/datatypes"
	"github.com/swissjs/swite/services/devserver/resolver"
	"github.com/swissjs/swite/services/devserver/rewrite"
	"github.com/swissjs/swite/services/devserver/urls"
)

// ScriptContentType is the media type for every served module.
const ScriptContentType = "application/javascript; charset=utf-8"

// Pipeline bundles the collaborators every handler needs.
type Pipeline struct {
	Ctx         *urls.Context
	Cache       *cache.Cache
	Resolver    *resolver.Resolver
	Rewriter    *rewrite.Rewriter
	Compiler    compiler.Compiler
	Transformer compiler.Transformer
	Log         *slog.Logger

	// Routes is the route table served at /__swite_routes; nil when no
	// route scanner is attached.
	Routes func() []datatypes.Route
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Log != nil {
		return p.Log
	}
	return slog.Default()
}

// DepsOf extracts every absolute or scoped specifier from compiled
// text, resolves each through the module resolver, and keeps only the
// ones that land on filesystem paths. The resulting ordered list is the
// cache's dependency identity for the entry.
func (p *Pipeline) DepsOf(compiled string) []string {
	var deps []string
	for _, ref := range rewrite.ScanImports(compiled) {
		spec := ref.Specifier(compiled)
		switch resolver.Classify(spec) {
		case resolver.KindAbsolute, resolver.KindFramework, resolver.KindScoped, resolver.KindBare:
		default:
			continue
		}
		url := p.Resolver.Resolve(spec, "")
		if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
			continue
		}
		if path, ok := p.Ctx.ResolveFilePath(url); ok {
			deps = append(deps, path)
		}
	}
	return deps
}

// respondScript writes a successful module response.
func respondScript(c *gin.Context, body string) {
	c.Data(http.StatusOK, ScriptContentType, []byte(body))
}

// respondNotFound writes the uniform 404. Always text/plain; an HTML
// body under a script URL would be cached as a module.
func (p *Pipeline) respondNotFound(c *gin.Context, url string) {
	p.logger().Warn("file not found", "url", url)
	c.Data(http.StatusNotFound, "text/plain; charset=utf-8",
		[]byte(fmt.Sprintf("File not found: %s", url)))
}

// respondError maps a pipeline error onto the HTTP surface.
func (p *Pipeline) respondError(c *gin.Context, url, stage string, err error) {
	var compileErr *datatypes.CompileError
	switch {
	case errors.Is(err, datatypes.ErrNotFound):
		p.respondNotFound(c, url)
	case errors.As(err, &compileErr):
		p.logger().Error("compile failed", "url", url, "path", compileErr.Path, "stage", stage, "error", compileErr.Err)
		c.Data(http.StatusInternalServerError, "text/plain; charset=utf-8",
			[]byte(fmt.Sprintf("Compile error in %s: %v", compileErr.Path, compileErr.Err)))
	default:
		p.logger().Error("pipeline error", "url", url, "stage", stage, "error", err)
		c.Data(http.StatusInternalServerError, "text/plain; charset=utf-8",
			[]byte(fmt.Sprintf("Internal error serving %s: %v", url, err)))
	}
}

// ContentTypeFor picks the response media type from a file extension.
func ContentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ui", ".uix", ".ts", ".tsx", ".js", ".jsx", ".mjs":
		return ScriptContentType
	case ".css":
		return "text/css; charset=utf-8"
	case ".json":
		return "application/json; charset=utf-8"
	case ".svg":
		return "image/svg+xml"
	default:
		if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
			return t
		}
		return "application/octet-stream"
	}
}
