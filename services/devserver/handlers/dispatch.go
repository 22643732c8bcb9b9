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
	"strings"

	"github.com/gin-gonic/gin"
)

// handlerFor names the handler owning a URL's extension; used by the
// dispatcher and echoed by the diagnostic probe.
func handlerFor(url string) string {
	switch strings.ToLower(filepath.Ext(url)) {
	case ".ui", ".uix":
		return "ui"
	case ".ts", ".tsx":
		return "ts"
	case ".js", ".jsx", ".mjs":
		return "js"
	case ".css":
		return "static"
	default:
		return "static"
	}
}

// Dispatch routes a source-tree request to the handler owning its
// extension. Non-script assets under the source tree ship unprocessed.
func Dispatch(p *Pipeline) gin.HandlerFunc {
	uiHandler := HandleUI(p)
	tsHandler := HandleTS(p)
	jsHandler := HandleJS(p)
	static := HandleStatic(p)

	return func(c *gin.Context) {
		switch handlerFor(c.Request.URL.Path) {
		case "ui":
			uiHandler(c)
		case "ts":
			tsHandler(c)
		case "js":
			jsHandler(c)
		default:
			static(c)
		}
	}
}

// HandleStatic serves files that are never processed: stylesheets,
// images, and anything else the pipeline does not own.
func HandleStatic(p *Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		url := c.Request.URL.Path
		path, ok := p.Ctx.ResolveFilePath(url)
		if !ok {
			p.respondNotFound(c, url)
			return
		}
		data, err := os.ReadFile(path)
		if err != nil {
			p.respondNotFound(c, url)
			return
		}
		c.Data(http.StatusOK, ContentTypeFor(path), data)
	}
}
