// Copyright (C) 2025 Swiss Labs (dev@swissjs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability exposes Prometheus metrics for the dev server.
//
// Metrics are served on /metrics for scraping during long development
// sessions; compile latency regressions show up here before they are
// felt in the editor.
package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "swite"

// ServerMetrics holds the Prometheus collectors for request handling.
type ServerMetrics struct {
	// RequestsTotal counts requests by handler and status class.
	RequestsTotal *prometheus.CounterVec

	// RequestDuration observes wall time per handler.
	RequestDuration *prometheus.HistogramVec

	// WatcherEventsTotal counts broadcast change events by update type.
	WatcherEventsTotal *prometheus.CounterVec

	// PushSubscribers gauges connected push-channel clients.
	PushSubscribers prometheus.Gauge
}

// NewServerMetrics registers the collectors on the default registry.
func NewServerMetrics() *ServerMetrics {
	return &ServerMetrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "requests_total",
			Help:      "Requests served, by handler and status.",
		}, []string{"handler", "status"}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "request_duration_seconds",
			Help:      "Request wall time by handler.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"handler"}),
		WatcherEventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "watcher_events_total",
			Help:      "Broadcast change events by update type.",
		}, []string{"update_type"}),
		PushSubscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "push_subscribers",
			Help:      "Currently connected push-channel clients.",
		}),
	}
}

// Middleware records request counters and latency. handlerName labels
// the route group it is attached to.
func (m *ServerMetrics) Middleware(handlerName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		m.RequestsTotal.WithLabelValues(handlerName, strconv.Itoa(c.Writer.Status())).Inc()
		m.RequestDuration.WithLabelValues(handlerName).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the scrape endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
