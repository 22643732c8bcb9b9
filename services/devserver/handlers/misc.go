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
	"strconv"

	"github.com/gin-gonic/gin"
)

// HealthCheck answers liveness probes.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// hmrClientScript is the push-channel client served at
// /__swite_hmr_client. Pages include it with a plain module script tag;
// it retries the connection every second and forces a full reload after a gap, so a
// subscriber that missed events while disconnected never renders stale
// modules.
const hmrClientScript = `// swite hmr client
const proto = location.protocol === "https:" ? "wss" : "ws";
let sock;
let everConnected = false;

function connect() {
  sock = new WebSocket(proto + "://" + location.host + "/__swite_hmr");
  sock.addEventListener("open", () => {
    if (everConnected) {
      // Events may have been missed while disconnected.
      location.reload();
      return;
    }
    everConnected = true;
    console.debug("[swite] hmr connected");
  });
  sock.addEventListener("message", (msg) => {
    let data;
    try { data = JSON.parse(msg.data); } catch { return; }
    if (data.type !== "update") return;
    switch (data.updateType) {
      case "style":
        for (const link of document.querySelectorAll('link[rel="stylesheet"]')) {
          const href = link.getAttribute("href");
          if (!href) continue;
          const url = new URL(href, location.origin);
          url.searchParams.set("t", data.timestamp);
          link.setAttribute("href", url.pathname + url.search);
        }
        break;
      case "hot": {
        const url = toModuleURL(data.path);
        if (url) {
          import(url + "?t=" + data.timestamp).catch(() => location.reload());
        } else {
          location.reload();
        }
        break;
      }
      default:
        location.reload();
    }
  });
  sock.addEventListener("close", () => setTimeout(connect, 1000));
}

function toModuleURL(path) {
  const markers = ["/src/", "/lib/", "/libraries/", "/packages/", "/modules/"];
  for (const m of markers) {
    const i = path.lastIndexOf(m);
    if (i >= 0) return path.slice(i);
  }
  return null;
}

connect();
`

// HandleHMRClient serves the embedded push-channel client script.
func HandleHMRClient(c *gin.Context) {
	c.Data(http.StatusOK, ScriptContentType, []byte(hmrClientScript))
}

// HandleRoutes serves the serialized route table.
func HandleRoutes(p *Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		if p.Routes == nil {
			c.JSON(http.StatusOK, gin.H{"routes": []any{}})
			return
		}
		c.JSON(http.StatusOK, gin.H{"routes": p.Routes()})
	}
}

// diagnoseQuery binds the probe's query string.
type diagnoseQuery struct {
	URL string `form:"url" binding:"required"`
}

// HandleDiagnose echoes what the server would do for a given URL:
// the resolved file path, whether it exists, the handler that owns the
// extension, the file's mtime, and the cache's overall counters.
func HandleDiagnose(p *Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q diagnoseQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing url query parameter"})
			return
		}
		path, exists := p.Ctx.ResolveFilePath(q.URL)
		var mtime int64
		if exists {
			if info, err := os.Stat(path); err == nil {
				mtime = info.ModTime().UnixMilli()
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"url":     q.URL,
			"path":    path,
			"exists":  exists,
			"handler": handlerFor(q.URL),
			"mtime":   mtime,
			"cache":   p.Cache.Snapshot(),
		})
	}
}

// HandleClearCache serves the cache-clearing landing page and flushes
// the compilation cache.
func HandleClearCache(p *Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		before := p.Cache.Snapshot()
		p.Cache.Clear()
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(
			"<!doctype html><title>swite</title><body style=\"font-family:monospace\">"+
				"<h1>Compilation cache cleared</h1>"+
				"<p>Entries dropped: "+strconv.Itoa(before.Entries)+"</p>"+
				"<p><a href=\"/\">back to app</a></p></body>"))
	}
}
