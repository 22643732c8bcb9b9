// Copyright (C) 2025 Swiss Labs (dev@swissjs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package routes wires the dev server's URL surface onto a gin engine.
package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/swissjs/swite/services/devserver/handlers"
	"github.com/swissjs/swite/services/devserver/hmr"
	"github.com/swissjs/swite/services/devserver/middleware"
	"github.com/swissjs/swite/services/devserver/observability"
)

// SetupRoutes registers every route of the development server.
func SetupRoutes(router *gin.Engine, p *handlers.Pipeline, hub *hmr.Hub, metrics *observability.ServerMetrics) {
	router.Use(middleware.NoCache())
	router.Use(middleware.RequestLog(p.Log))

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", observability.Handler())

	// Push channel and its client script.
	router.GET("/__swite_hmr", hub.Handler())
	router.GET("/__swite_hmr_client", handlers.HandleHMRClient)

	// Introspection surface.
	router.GET("/__swite_routes", handlers.HandleRoutes(p))
	router.GET("/__swite_diagnose", handlers.HandleDiagnose(p))
	router.GET("/__swite_clear_cache", handlers.HandleClearCache(p))

	dispatch := handlers.Dispatch(p)
	static := handlers.HandleStatic(p)
	nodeModule := handlers.HandleNodeModule(p)

	// Application source tree, compiled and rewritten on demand.
	src := router.Group("/src", metrics.Middleware("src"))
	src.GET("/*filepath", dispatch)

	// Workspace packages.
	for _, prefix := range []string{"/lib", "/libraries", "/packages", "/modules"} {
		g := router.Group(prefix, metrics.Middleware("workspace"))
		g.GET("/*filepath", dispatch)
	}

	// Framework monorepo packages under the public prefix. Misses stay
	// text/plain 404s; the single-page fallback must never answer here.
	fw := router.Group("/swiss-packages", metrics.Middleware("framework"))
	fw.GET("/*filepath", dispatch)

	// Installed dependencies, passthrough.
	nm := router.Group("/node_modules", metrics.Middleware("node_modules"))
	nm.GET("/*filepath", nodeModule)

	// Static trees, never processed.
	for _, prefix := range []string{"/public", "/assets"} {
		g := router.Group(prefix, metrics.Middleware("static"))
		g.GET("/*filepath", static)
	}
}
