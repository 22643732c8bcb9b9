// Copyright (C) 2025 Swiss Labs (dev@swissjs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package devserver assembles the development module server.
//
// Construction order is fixed: roots are located, the package registry
// is scanned, the import map is loaded, and only then are the
// resolver, rewriter, cache, watcher, and HTTP surface built on top.
// Nothing here is a package-level singleton; every collaborator hangs
// off the Server.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/swissjs/swite/services/devserver/cache"
	"github.com/swissjs/swite/services/devserver/compiler"
	"github.com/swissjs/swite/services/devserver/config"
	"github.com/swissjs/swite/services/devserver/datatypes"
	"github.com/swissjs/swite/services/devserver/handlers"
	"github.com/swissjs/swite/services/devserver/hmr"
	"github.com/swissjs/swite/services/devserver/importmap"
	"github.com/swissjs/swite/services/devserver/observability"
	"github.com/swissjs/swite/services/devserver/resolver"
	"github.com/swissjs/swite/services/devserver/rewrite"
	"github.com/swissjs/swite/services/devserver/routes"
	"github.com/swissjs/swite/services/devserver/routescan"
	"github.com/swissjs/swite/services/devserver/urls"
	"github.com/swissjs/swite/services/devserver/workspace"
)

// Options carries the injectable collaborators. Zero values select the
// production implementations.
type Options struct {
	// Compiler transforms .ui/.uix sources. Default: ExecCompiler.
	Compiler compiler.Compiler

	// Transformer strips types from .ts sources. Default: ExecTransformer.
	Transformer compiler.Transformer

	// Logger for every subsystem. Default: slog.Default().
	Logger *slog.Logger

	// Metrics collectors. Default: a fresh set on the default registry.
	Metrics *observability.ServerMetrics
}

// Server is the assembled development server.
type Server struct {
	cfg      config.Config
	log      *slog.Logger
	urlCtx   *urls.Context
	registry *workspace.Registry
	cache    *cache.Cache
	resolver *resolver.Resolver
	hub      *hmr.Hub
	watcher  *hmr.Watcher
	metrics  *observability.ServerMetrics
	router   *gin.Engine
}

// New builds a Server for the given configuration. The registry scan
// and import-map load happen here, so a returned Server is ready to
// serve its first request.
func New(cfg config.Config, opts Options) (*Server, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.Compiler == nil {
		opts.Compiler = &compiler.ExecCompiler{}
	}
	if opts.Transformer == nil {
		opts.Transformer = &compiler.ExecTransformer{}
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NewServerMetrics()
	}

	locator := workspace.NewLocator(log)
	wsRoot := cfg.WorkspaceRoot
	if wsRoot == "" {
		wsRoot, _ = locator.FindWorkspaceRoot(cfg.AppRoot)
	}
	fwRoot, _ := locator.FindFrameworkMonorepo(cfg.AppRoot)

	registry := workspace.NewRegistry(log)
	var extra []string
	if wsRoot != "" && wsRoot != cfg.AppRoot {
		extra = append(extra, wsRoot)
	}
	if fwRoot != "" {
		extra = append(extra, fwRoot)
	}
	if err := registry.Scan(cfg.AppRoot, extra...); err != nil {
		return nil, fmt.Errorf("package scan: %w", err)
	}

	urlCtx := &urls.Context{
		AppRoot:       cfg.AppRoot,
		WorkspaceRoot: wsRoot,
		FrameworkRoot: fwRoot,
		Log:           log,
	}

	imap, err := importmap.Load(cfg.ImportMapPath(), log)
	if err != nil {
		log.Warn("ignoring unreadable import map", "error", err)
		imap = importmap.Empty()
	}

	res := resolver.New(urlCtx, registry, imap, log)
	compileCache := cache.New(cfg.CacheCapacity, log)

	pipeline := &handlers.Pipeline{
		Ctx:         urlCtx,
		Cache:       compileCache,
		Resolver:    res,
		Rewriter:    rewrite.New(res, urlCtx, log),
		Compiler:    opts.Compiler,
		Transformer: opts.Transformer,
		Log:         log,
		Routes: func() []datatypes.Route {
			list, err := routescan.Scan(cfg.AppRoot)
			if err != nil {
				log.Warn("route scan failed", "error", err)
				return nil
			}
			return list
		},
	}

	s := &Server{
		cfg:      cfg,
		log:      log,
		urlCtx:   urlCtx,
		registry: registry,
		cache:    compileCache,
		resolver: res,
		hub:      hmr.NewHub(log),
		metrics:  opts.Metrics,
	}

	watchRoot := wsRoot
	if watchRoot == "" {
		watchRoot = cfg.AppRoot
	}
	watcher, err := hmr.NewWatcher(watchRoot, s.onChange, &hmr.WatcherOptions{
		DebounceWindow: time.Duration(cfg.DebounceMS) * time.Millisecond,
		IgnoreDirs:     []string{"node_modules", ".git", "dist"},
	}, log)
	if err != nil {
		return nil, fmt.Errorf("file watcher: %w", err)
	}
	s.watcher = watcher

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("swite-devserver"))
	routes.SetupRoutes(router, pipeline, s.hub, s.metrics)
	s.router = router

	return s, nil
}

// onChange invalidates the cache entry for the changed path before the
// broadcast, so a reload triggered by the event never re-serves the
// stale module.
func (s *Server) onChange(ev datatypes.ChangeEvent) {
	s.cache.Invalidate(ev.Path)
	s.metrics.WatcherEventsTotal.WithLabelValues(string(ev.Update)).Inc()
	s.hub.Broadcast(ev)
	s.metrics.PushSubscribers.Set(float64(s.hub.Subscribers()))
}

// Router exposes the HTTP handler, mainly for tests.
func (s *Server) Router() http.Handler { return s.router }

// GenerateImportMap pre-resolves every indexed package's entry and the
// well-known subpaths, writing the document to the configured path. The
// registry is rescanned first, so packages added since startup are
// included. It resolves dynamically (bypassing any previously loaded
// map) so stale entries cannot perpetuate themselves.
func (s *Server) GenerateImportMap() (*importmap.Document, error) {
	if err := s.registry.Rescan(); err != nil {
		return nil, fmt.Errorf("package rescan: %w", err)
	}
	res := resolver.New(s.urlCtx, s.registry, importmap.Empty(), s.log)

	var names []string
	for _, rec := range s.registry.All() {
		names = append(names, rec.Name)
	}

	return importmap.Generate(s.cfg.ImportMapPath(), names, func(name, subpath string) (string, bool) {
		spec := name
		if subpath != "" {
			spec = name + "/" + subpath
		}
		url := res.Resolve(spec, s.cfg.AppRoot)
		if url == spec || url == resolver.CDNURL(spec) {
			return "", false
		}
		return url, true
	}, s.log)
}

// Run starts watching, binds a port (falling back to an OS-assigned
// one when the preferred port is busy), serves until ctx is canceled,
// then shuts down gracefully. The bound port is reported through ready
// when non-nil.
func (s *Server) Run(ctx context.Context, ready chan<- int) error {
	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()
	if err := s.watcher.Start(watchCtx); err != nil {
		// The server still works without change propagation.
		s.log.Error("file watcher failed to start, live reload disabled", "error", err)
	}
	defer s.watcher.Stop()

	listener, port, err := s.listen()
	if err != nil {
		return err
	}
	s.log.Info("dev server listening",
		"port", port,
		"app", s.cfg.AppRoot,
		"workspace", s.urlCtx.WorkspaceRoot,
		"framework", s.urlCtx.FrameworkRoot,
	)
	if ready != nil {
		ready <- port
	}

	srv := &http.Server{Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	s.watcher.Stop()
	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) listen() (net.Listener, int, error) {
	l, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		s.log.Warn("preferred port busy, probing for a free one", "port", s.cfg.Port)
		l, err = net.Listen("tcp", ":0")
		if err != nil {
			return nil, 0, err
		}
	}
	return l, l.Addr().(*net.TCPAddr).Port, nil
}
