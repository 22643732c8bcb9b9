// Copyright (C) 2025 Swiss Labs (dev@swissjs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package cache

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level meter for cache operations.
var meter = otel.Meter("swite.cache")

var (
	cacheHits      metric.Int64Counter
	cacheMisses    metric.Int64Counter
	cacheEvictions metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the counters. Safe to call multiple times;
// instrument creation failures leave the counters nil and recording
// becomes a no-op.
func initMetrics() {
	metricsOnce.Do(func() {
		var err error
		cacheHits, err = meter.Int64Counter(
			"compile_cache_hits_total",
			metric.WithDescription("Total number of compilation cache hits"),
		)
		if err != nil {
			metricsErr = err
			return
		}
		cacheMisses, err = meter.Int64Counter(
			"compile_cache_misses_total",
			metric.WithDescription("Total number of compilation cache misses"),
		)
		if err != nil {
			metricsErr = err
			return
		}
		cacheEvictions, err = meter.Int64Counter(
			"compile_cache_evictions_total",
			metric.WithDescription("Total number of FIFO evictions"),
		)
		if err != nil {
			metricsErr = err
		}
	})
}

func recordHit() {
	if cacheHits == nil {
		return
	}
	cacheHits.Add(context.Background(), 1)
}

func recordMiss(reason string) {
	if cacheMisses == nil {
		return
	}
	cacheMisses.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("reason", reason)))
}

func recordEviction() {
	if cacheEvictions == nil {
		return
	}
	cacheEvictions.Add(context.Background(), 1)
}
