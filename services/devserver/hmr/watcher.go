// Copyright (C) 2025 Swiss Labs (dev@swissjs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package hmr

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/swissjs/swite/services/devserver/datatypes"
)

// ChangeHandler receives each debounced, classified change.
type ChangeHandler func(ev datatypes.ChangeEvent)

// WatcherOptions configures the Watcher.
type WatcherOptions struct {
	// DebounceWindow is how long the watched tree must stay quiet before
	// the pending changes are emitted. Default: 100ms.
	DebounceWindow time.Duration

	// IgnoreDirs are directory names never descended into.
	// Default: node_modules, .git, dist.
	IgnoreDirs []string

	// BufferSize is the raw-event channel capacity. Default: 1024.
	BufferSize int
}

// DefaultWatcherOptions returns the defaults above.
func DefaultWatcherOptions() WatcherOptions {
	return WatcherOptions{
		DebounceWindow: 100 * time.Millisecond,
		IgnoreDirs:     []string{"node_modules", ".git", "dist"},
		BufferSize:     1024,
	}
}

// Watcher observes a workspace tree and emits classified change events
// after a write-stable debounce.
//
// Events are fire-and-forget: the handler is called from a single
// goroutine and must not block for long. A watcher failure stops
// notifications for the affected subtree but never takes the server
// down.
type Watcher struct {
	root     string
	watcher  *fsnotify.Watcher
	handler  ChangeHandler
	debounce time.Duration
	ignore   map[string]bool
	log      *slog.Logger

	raw      chan string
	done     chan struct{}
	stopOnce sync.Once

	mu       sync.RWMutex
	watching bool
}

// NewWatcher creates a Watcher over root. opts may be nil for defaults;
// zero fields of opts take their defaults.
func NewWatcher(root string, handler ChangeHandler, opts *WatcherOptions, log *slog.Logger) (*Watcher, error) {
	defaults := DefaultWatcherOptions()
	if opts == nil {
		opts = &defaults
	}
	debounce := opts.DebounceWindow
	if debounce <= 0 {
		debounce = defaults.DebounceWindow
	}
	ignoreDirs := opts.IgnoreDirs
	if len(ignoreDirs) == 0 {
		ignoreDirs = defaults.IgnoreDirs
	}
	bufferSize := opts.BufferSize
	if bufferSize <= 0 {
		bufferSize = defaults.BufferSize
	}
	if log == nil {
		log = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	ignore := make(map[string]bool, len(ignoreDirs))
	for _, d := range ignoreDirs {
		ignore[d] = true
	}
	return &Watcher{
		root:     root,
		watcher:  fsw,
		handler:  handler,
		debounce: debounce,
		ignore:   ignore,
		log:      log,
		raw:      make(chan string, bufferSize),
		done:     make(chan struct{}),
	}, nil
}

// Start attaches to the tree and begins emitting events. It spawns the
// event processor and the debounce loop; both exit when Stop is called
// or ctx is canceled.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	if err := w.addRecursive(w.root); err != nil {
		return err
	}
	go w.processEvents(ctx)
	go w.debounceLoop(ctx)
	w.log.Info("watching for changes", "root", w.root)
	return nil
}

// Stop detaches from the tree. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.watcher.Close()
		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

// IsWatching reports whether the watcher is active.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.watching
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != root && (w.ignore[name] || strings.HasPrefix(name, ".")) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if w.shouldIgnore(ev.Name) {
				continue
			}
			// Newly created directories join the watch set so changes
			// beneath them are not missed.
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = w.addRecursive(ev.Name)
					continue
				}
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			select {
			case w.raw <- ev.Name:
			default:
				// Buffer full; the change will be picked up on the
				// next write or the client's reconnect reload.
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("watcher error", "error", err)
		}
	}
}

// debounceLoop batches raw paths until the tree stays quiet for the
// debounce window, then classifies and emits one event per path.
func (w *Watcher) debounceLoop(ctx context.Context) {
	pending := make(map[string]struct{})
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case path := <-w.raw:
			pending[path] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			now := time.Now()
			for path := range pending {
				ev := datatypes.ChangeEvent{Path: path, Update: Classify(path), Time: now}
				w.log.Debug("change detected", "path", path, "update", ev.Update)
				w.handler(ev)
			}
			pending = make(map[string]struct{})
			fire = nil
		}
	}
}

func (w *Watcher) shouldIgnore(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
		if w.ignore[seg] || (seg != "." && strings.HasPrefix(seg, ".")) {
			return true
		}
	}
	return false
}
