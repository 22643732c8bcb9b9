// Copyright (C) 2025 Swiss Labs (dev@swissjs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package cache holds compiled-and-rewritten script keyed by source
// path, with dependency-aware invalidation.
//
// An entry stays live only while (a) the source's mtime matches the
// recorded one, (b) the current resolved dependency list matches the
// recorded list element-wise, and (c) every recorded dependency still
// exists with an mtime no newer than the entry's creation instant.
// Capacity is bounded; eviction is FIFO by insertion order.
package cache

import (
	"container/list"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultCapacity bounds the cache when no explicit capacity is given.
const DefaultCapacity = 1000

// DepsFunc extracts the resolved dependency paths of compiled output.
// Only filesystem paths are expected; URLs must already be filtered out
// by the caller.
type DepsFunc func(compiled string) []string

// BuildFunc compiles and rewrites one source file.
type BuildFunc func() (compiled, rewritten string, deps []string, err error)

// Entry is one cached compilation.
type Entry struct {
	// Compiled is the compiler's raw output, kept so validity checks
	// can re-derive the dependency list.
	Compiled string

	// Rewritten is the final script served to browsers.
	Rewritten string

	// Mtime is the source file's modification time at build.
	Mtime time.Time

	// Deps is the ordered list of resolved dependency absolute paths.
	Deps []string

	// Created is the wall-clock instant the entry was stored.
	Created time.Time
}

// Cache is the process-wide compilation cache. Safe for concurrent
// use; concurrent requests for the same key share a single build.
type Cache struct {
	log *slog.Logger

	mu       sync.Mutex
	entries  map[string]*list.Element
	fifo     *list.List
	capacity int

	flight singleflight.Group

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

type fifoItem struct {
	key   string
	entry *Entry
}

// New creates a Cache with the given capacity; zero or negative means
// DefaultCapacity.
func New(capacity int, log *slog.Logger) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if log == nil {
		log = slog.Default()
	}
	initMetrics()
	return &Cache{
		log:      log,
		entries:  make(map[string]*list.Element),
		fifo:     list.New(),
		capacity: capacity,
	}
}

// Get returns the rewritten script for path if the entry is still
// live. depsOf re-derives the current dependency list from the cached
// compiled output for the element-wise comparison.
func (c *Cache) Get(path string, depsOf DepsFunc) (string, bool) {
	c.mu.Lock()
	elem, ok := c.entries[path]
	c.mu.Unlock()
	if !ok {
		c.miss(path, "absent")
		return "", false
	}
	entry := elem.Value.(*fifoItem).entry

	if reason, live := c.isLive(path, entry, depsOf); !live {
		c.Invalidate(path)
		c.miss(path, reason)
		return "", false
	}

	c.hits.Add(1)
	recordHit()
	c.log.Debug("cache hit", "path", path)
	return entry.Rewritten, true
}

// Set records a new entry for path, evicting the oldest entry when at
// capacity. The source's current mtime is captured here.
func (c *Cache) Set(path, compiled, rewritten string, deps []string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	entry := &Entry{
		Compiled:  compiled,
		Rewritten: rewritten,
		Mtime:     info.ModTime(),
		Deps:      append([]string(nil), deps...),
		Created:   time.Now(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[path]; ok {
		elem.Value.(*fifoItem).entry = entry
		return
	}
	if c.fifo.Len() >= c.capacity {
		oldest := c.fifo.Front()
		if oldest != nil {
			item := oldest.Value.(*fifoItem)
			c.fifo.Remove(oldest)
			delete(c.entries, item.key)
			c.evictions.Add(1)
			recordEviction()
			c.log.Debug("cache eviction", "path", item.key)
		}
	}
	c.entries[path] = c.fifo.PushBack(&fifoItem{key: path, entry: entry})
}

// GetOrBuild returns the live entry for path or runs build exactly once
// for concurrent requesters, storing and sharing its result.
func (c *Cache) GetOrBuild(path string, depsOf DepsFunc, build BuildFunc) (string, error) {
	if out, ok := c.Get(path, depsOf); ok {
		return out, nil
	}
	v, err, _ := c.flight.Do(path, func() (any, error) {
		// A concurrent requester may have completed the build while we
		// waited on the flight group.
		if out, ok := c.Get(path, depsOf); ok {
			return out, nil
		}
		compiled, rewritten, deps, err := build()
		if err != nil {
			return "", err
		}
		c.Set(path, compiled, rewritten, deps)
		return rewritten, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the entry for path, if present. O(1).
func (c *Cache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[path]; ok {
		c.fifo.Remove(elem)
		delete(c.entries, path)
	}
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.fifo.Init()
	c.log.Info("compilation cache cleared")
}

// Len reports the number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fifo.Len()
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Entries   int   `json:"entries"`
	Capacity  int   `json:"capacity"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

// Snapshot returns current counters.
func (c *Cache) Snapshot() Stats {
	c.mu.Lock()
	entries := c.fifo.Len()
	c.mu.Unlock()
	return Stats{
		Entries:   entries,
		Capacity:  c.capacity,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

// isLive applies the three validity conditions, returning the failure
// reason for the log.
func (c *Cache) isLive(path string, e *Entry, depsOf DepsFunc) (string, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return "source missing", false
	}
	if !info.ModTime().Equal(e.Mtime) {
		return "file modified", false
	}

	if depsOf != nil {
		current := depsOf(e.Compiled)
		if len(current) != len(e.Deps) {
			return "dependency set changed", false
		}
		for i := range current {
			if current[i] != e.Deps[i] {
				return "dependency set changed", false
			}
		}
	}

	for _, dep := range e.Deps {
		dinfo, err := os.Stat(dep)
		if err != nil {
			return "dependency missing", false
		}
		if dinfo.ModTime().After(e.Created) {
			return "dependency modified", false
		}
	}
	return "", true
}

func (c *Cache) miss(path, reason string) {
	c.misses.Add(1)
	recordMiss(reason)
	if reason != "absent" {
		c.log.Debug("cache invalidated", "path", path, "reason", reason)
	}
}
