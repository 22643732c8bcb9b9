// Copyright (C) 2025 Swiss Labs (dev@swissjs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swissjs/swite/services/devserver/cache"
	"github.com/swissjs/swite/services/devserver/compiler"
	"github.com/swissjs/swite/services/devserver/handlers"
	"github.com/swissjs/swite/services/devserver/hmr"
	"github.com/swissjs/swite/services/devserver/observability"
	"github.com/swissjs/swite/services/devserver/resolver"
	"github.com/swissjs/swite/services/devserver/rewrite"
	"github.com/swissjs/swite/services/devserver/urls"
	"github.com/swissjs/swite/services/devserver/workspace"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type passthroughCompiler struct{}

func (passthroughCompiler) Compile(_ context.Context, source, _ string) (string, error) {
	return source, nil
}

type passthroughTransformer struct{}

func (passthroughTransformer) Transform(_ context.Context, source string, _ compiler.TransformOptions) (string, error) {
	return source, nil
}

var metricsOnce = observability.NewServerMetrics()

func newRouter(t *testing.T) (*gin.Engine, string) {
	t.Helper()
	app := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(app, "src"), 0o755))

	ctx := &urls.Context{AppRoot: app}
	reg := workspace.NewRegistry(slog.Default())
	require.NoError(t, reg.Scan(app))
	res := resolver.New(ctx, reg, nil, slog.Default())

	p := &handlers.Pipeline{
		Ctx:         ctx,
		Cache:       cache.New(10, slog.Default()),
		Resolver:    res,
		Rewriter:    rewrite.New(res, ctx, slog.Default()),
		Compiler:    passthroughCompiler{},
		Transformer: passthroughTransformer{},
		Log:         slog.Default(),
	}

	router := gin.New()
	SetupRoutes(router, p, hmr.NewHub(slog.Default()), metricsOnce)
	return router, app
}

func get(router *gin.Engine, url string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, url, nil))
	return w
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newRouter(t)
	w := get(router, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestDevResponsesCarryNoCacheHeaders(t *testing.T) {
	router, app := newRouter(t)
	require.NoError(t, os.WriteFile(filepath.Join(app, "src", "index.ui"), []byte("export {}"), 0o644))

	w := get(router, "/src/index.ui")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-cache, no-store, must-revalidate", w.Header().Get("Cache-Control"))
	assert.Equal(t, "no-cache", w.Header().Get("Pragma"))
	assert.Equal(t, "0", w.Header().Get("Expires"))
	assert.Positive(t, w.Body.Len())
}

func TestMetricsEndpointExposed(t *testing.T) {
	router, _ := newRouter(t)
	w := get(router, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHMRClientRouteRegistered(t *testing.T) {
	router, _ := newRouter(t)
	w := get(router, "/__swite_hmr_client")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSourceMissesNeverReturnHTML(t *testing.T) {
	router, _ := newRouter(t)
	for _, url := range []string{"/src/gone.ui", "/packages/x/y.ts", "/swiss-packages/core/index.ts"} {
		w := get(router, url)
		assert.Equal(t, http.StatusNotFound, w.Code, url)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/plain", url)
	}
}
