// Copyright (C) 2026 Veloxar Systems (dev@veloxar.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package schema

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher keeps the active Schema in sync with a KB file on disk.
//
// # Description
//
// Reload-on-write for long-running deployments: the service starts
// with the file's current contents and swaps in a freshly loaded
// Schema whenever the file changes. Consumers call Current() per
// pass and hold that pointer for the pass duration, so a swap never
// tears a validation in progress.
//
// A reload that fails (parse error, dangling refs) keeps the
// previous schema active and logs the failure. Bad edits degrade to
// stale, never to broken.
//
// # Thread Safety
//
// Current() is safe for concurrent use (atomic pointer load).
// Start and Stop must not be called concurrently with each other.
type Watcher struct {
	path     string
	current  atomic.Pointer[Schema]
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onSwap   func(*Schema)

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
	started  bool
}

// NewWatcher loads the KB at path and prepares a watcher for it.
// Call Start to begin watching and Stop to shut down.
func NewWatcher(ctx context.Context, path string) (*Watcher, error) {
	initial, err := Load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("initial knowledge base load: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	w := &Watcher{
		path:     path,
		watcher:  fw,
		debounce: 250 * time.Millisecond,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	w.current.Store(initial)
	return w, nil
}

// Current returns the active schema. Never nil after NewWatcher
// succeeds. Hold the returned pointer for the whole pass.
func (w *Watcher) Current() *Schema {
	return w.current.Load()
}

// OnSwap registers fn to run after each successful reload, with the
// fresh schema. Set before Start; fn runs on the watcher goroutine.
func (w *Watcher) OnSwap(fn func(*Schema)) {
	w.onSwap = fn
}

// Start begins watching the KB file for changes.
func (w *Watcher) Start(ctx context.Context) error {
	if w.started {
		return nil
	}
	if err := w.watcher.Add(w.path); err != nil {
		return fmt.Errorf("watching %s: %w", w.path, err)
	}
	w.started = true

	go w.loop(ctx)
	return nil
}

// Stop halts watching and waits for the loop to exit. Safe to call
// more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		if w.started {
			<-w.doneCh
		}
		_ = w.watcher.Close()
	})
}

// loop consumes fsnotify events, debounces bursts, and reloads.
func (w *Watcher) loop(ctx context.Context) {
	defer close(w.doneCh)

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			// Editors fire several events per save; collapse them.
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			w.reload(ctx)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("knowledge base watcher error",
				slog.String("path", w.path),
				slog.String("error", err.Error()))
		}
	}
}

// reload loads the file and swaps the active schema on success.
func (w *Watcher) reload(ctx context.Context) {
	fresh, err := Load(ctx, w.path)
	if err != nil {
		slog.Error("knowledge base reload failed, keeping previous schema",
			slog.String("path", w.path),
			slog.String("error", err.Error()))
		return
	}

	old := w.current.Swap(fresh)
	slog.Info("knowledge base reloaded",
		slog.String("path", w.path),
		slog.String("kb_version", fresh.Version()),
		slog.Int("class_count", fresh.ClassCount()),
		slog.Int("previous_class_count", old.ClassCount()))

	if w.onSwap != nil {
		w.onSwap(fresh)
	}
}
