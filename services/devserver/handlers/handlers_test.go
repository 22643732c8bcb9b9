// Copyright (C) 2025 Swiss Labs (dev@swissjs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swissjs/swite/services/devserver/cache"
	"github.com/swissjs/swite/services/devserver/compiler"
	"github.com/swissjs/swite/services/devserver/resolver"
	"github.com/swissjs/swite/services/devserver/rewrite"
	"github.com/swissjs/swite/services/devserver/urls"
	"github.com/swissjs/swite/services/devserver/workspace"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeCompiler passes the source through unchanged, so tests control
// the "compiled" output by authoring it directly in the .ui file.
type fakeCompiler struct {
	calls int
	fail  bool
}

func (f *fakeCompiler) Compile(_ context.Context, source, _ string) (string, error) {
	f.calls++
	if f.fail {
		return "", fmt.Errorf("unexpected token at line 3")
	}
	return source, nil
}

type fakeTransformer struct{}

func (fakeTransformer) Transform(_ context.Context, source string, _ compiler.TransformOptions) (string, error) {
	return source, nil
}

type env struct {
	pipeline *Pipeline
	router   *gin.Engine
	compiler *fakeCompiler
	appRoot  string
	wsRoot   string
	fwRoot   string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	base := t.TempDir()
	app := filepath.Join(base, "workspace", "apps", "demo")
	ws := filepath.Join(base, "workspace")
	fw := filepath.Join(base, "swiss-lib")
	require.NoError(t, os.MkdirAll(filepath.Join(app, "src"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(fw, "packages"), 0o755))

	ctx := &urls.Context{AppRoot: app, WorkspaceRoot: ws, FrameworkRoot: fw}
	reg := workspace.NewRegistry(slog.Default())
	require.NoError(t, reg.Scan(ws, fw))
	res := resolver.New(ctx, reg, nil, slog.Default())
	fc := &fakeCompiler{}

	p := &Pipeline{
		Ctx:         ctx,
		Cache:       cache.New(100, slog.Default()),
		Resolver:    res,
		Rewriter:    rewrite.New(res, ctx, slog.Default()),
		Compiler:    fc,
		Transformer: fakeTransformer{},
		Log:         slog.Default(),
	}

	router := gin.New()
	dispatch := Dispatch(p)
	for _, prefix := range []string{"/src", "/lib", "/libraries", "/packages", "/modules", "/swiss-packages"} {
		router.GET(prefix+"/*filepath", dispatch)
	}
	router.GET("/node_modules/*filepath", HandleNodeModule(p))
	router.GET("/public/*filepath", HandleStatic(p))
	router.GET("/assets/*filepath", HandleStatic(p))
	router.GET("/__swite_diagnose", HandleDiagnose(p))
	router.GET("/__swite_clear_cache", HandleClearCache(p))
	router.GET("/__swite_routes", HandleRoutes(p))
	router.GET("/__swite_hmr_client", HandleHMRClient)

	return &env{pipeline: p, router: router, compiler: fc, appRoot: app, wsRoot: ws, fwRoot: fw}
}

func (e *env) write(t *testing.T, rel, content string) string {
	t.Helper()
	path := filepath.Join(e.appRoot, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (e *env) get(url string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	e.router.ServeHTTP(w, req)
	return w
}

func (e *env) frameworkCore(t *testing.T) {
	t.Helper()
	pkg := filepath.Join(e.fwRoot, "packages", "core")
	require.NoError(t, os.MkdirAll(filepath.Join(pkg, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pkg, "package.json"),
		[]byte(`{"name":"@swissjs/core","main":"dist/index.js"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(pkg, "src", "index.ts"),
		[]byte("export class SwissApp {}"), 0o644))
}

func TestServeUIEndToEnd(t *testing.T) {
	e := newEnv(t)
	e.frameworkCore(t)
	e.write(t, "src/App.uix", "export const App = 1;")
	e.write(t, "src/index.ui",
		"import { SwissApp } from \"@swissjs/core\";\nimport { App } from \"./App.uix\";\n")

	w := e.get("/src/index.ui")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ScriptContentType, w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, `from "/swiss-packages/core/src/index.ts"`)
	assert.Contains(t, body, `from "./App.uix"`)
	assert.NotContains(t, body, "@swissjs/core")
	assert.NotContains(t, strings.ToLower(body), "/swiss-lib/")
}

func TestServeUICachesSecondRequest(t *testing.T) {
	e := newEnv(t)
	e.frameworkCore(t)
	e.write(t, "src/index.ui", "import { SwissApp } from \"@swissjs/core\";\n")

	first := e.get("/src/index.ui")
	require.Equal(t, http.StatusOK, first.Code)
	second := e.get("/src/index.ui")
	require.Equal(t, http.StatusOK, second.Code)

	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, e.compiler.calls, "second response must come from cache")
	assert.Equal(t, int64(1), e.pipeline.Cache.Snapshot().Hits)
}

func TestServeUIRebuildsAfterModification(t *testing.T) {
	e := newEnv(t)
	e.frameworkCore(t)
	path := e.write(t, "src/index.ui", "export const v = 1;")

	first := e.get("/src/index.ui")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Contains(t, first.Body.String(), "v = 1")

	e.write(t, "src/index.ui", "export const v = 2;")
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	second := e.get("/src/index.ui")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Contains(t, second.Body.String(), "v = 2")
	assert.Equal(t, 2, e.compiler.calls)
}

func TestServeUIStripsStylesheetImports(t *testing.T) {
	e := newEnv(t)
	e.write(t, "src/styled.ui", "import './theme.css';\nexport const s = 1;\n")

	w := e.get("/src/styled.ui")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), ".css")
	assert.Contains(t, w.Body.String(), "s = 1")
}

func TestServeUICompileFailureIsPlainText500(t *testing.T) {
	e := newEnv(t)
	e.write(t, "src/broken.ui", "not really source")
	e.compiler.fail = true

	w := e.get("/src/broken.ui")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, w.Body.String(), "unexpected token")
	assert.NotContains(t, w.Body.String(), "<html")
}

func TestMissingFileIsPlainText404(t *testing.T) {
	e := newEnv(t)
	w := e.get("/src/nope.ui")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	assert.Equal(t, "File not found: /src/nope.ui", w.Body.String())
}

func TestFrameworkPrefixMissIsPlainText404(t *testing.T) {
	e := newEnv(t)
	w := e.get("/swiss-packages/core/src/gone.ts")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	assert.NotContains(t, w.Body.String(), "<html")
}

func TestExtensionCrossResolutionJSToUI(t *testing.T) {
	e := newEnv(t)
	e.write(t, "src/widget.ui", "export const w = 1;")

	w := e.get("/src/widget.js")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ScriptContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "w = 1")
}

func TestTSHandlerDelegatesToUISibling(t *testing.T) {
	e := newEnv(t)
	e.write(t, "src/comp.uix", "export const c = 1;")

	w := e.get("/src/comp.ts")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "c = 1")
}

func TestJSHandlerRewritesWithoutCompiling(t *testing.T) {
	e := newEnv(t)
	e.frameworkCore(t)
	e.write(t, "src/plain.js", "import { SwissApp } from \"@swissjs/core\";\n")

	w := e.get("/src/plain.js")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/swiss-packages/core/src/index.ts")
	assert.Equal(t, 0, e.compiler.calls)
}

func TestNodeModulePassthroughSkipsRewrite(t *testing.T) {
	e := newEnv(t)
	content := "import dep from \"another-package\";\nmodule.exports = {};\n"
	path := filepath.Join(e.appRoot, "node_modules", "some-lib", "index.js")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	w := e.get("/node_modules/some-lib/index.js")
	require.Equal(t, http.StatusOK, w.Code)
	// Package internals ship byte-for-byte.
	assert.Equal(t, content, w.Body.String())
}

func TestNodeModuleCaseInsensitiveFallback(t *testing.T) {
	e := newEnv(t)
	content := "var Reflect;"
	path := filepath.Join(e.appRoot, "node_modules", "reflect-metadata", "Reflect.js")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	w := e.get("/node_modules/reflect-metadata/reflect.js")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, content, w.Body.String())
}

func TestNodeModuleMissRedirectsToCDN(t *testing.T) {
	e := newEnv(t)
	w := e.get("/node_modules/lodash-es/chunk.js")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://cdn.jsdelivr.net/npm/lodash-es/chunk.js/+esm", w.Header().Get("Location"))
}

func TestStaticAssetServedUnprocessed(t *testing.T) {
	e := newEnv(t)
	e.write(t, "public/logo.svg", "<svg></svg>")

	w := e.get("/public/logo.svg")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/svg+xml", w.Header().Get("Content-Type"))
	assert.Equal(t, "<svg></svg>", w.Body.String())
}

func TestDiagnoseEchoesResolution(t *testing.T) {
	e := newEnv(t)
	e.write(t, "src/index.ui", "export {}")

	w := e.get("/__swite_diagnose?url=/src/index.ui")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `"exists":true`)
	assert.Contains(t, body, `"handler":"ui"`)

	w = e.get("/__swite_diagnose")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClearCacheFlushesEntries(t *testing.T) {
	e := newEnv(t)
	e.write(t, "src/index.ui", "export {}")
	require.Equal(t, http.StatusOK, e.get("/src/index.ui").Code)
	require.Equal(t, 1, e.pipeline.Cache.Len())

	w := e.get("/__swite_clear_cache")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Equal(t, 0, e.pipeline.Cache.Len())
}

func TestHMRClientScriptServed(t *testing.T) {
	e := newEnv(t)
	w := e.get("/__swite_hmr_client")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ScriptContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "WebSocket")
}

func TestRoutesEndpointWithoutScanner(t *testing.T) {
	e := newEnv(t)
	w := e.get("/__swite_routes")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"routes"`)
}
