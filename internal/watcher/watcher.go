// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package watcher reloads the scheduler when workflow definitions
// change on disk. Editors fire bursts of events per save, so reloads
// are debounced and rate limited.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"
)

// DefaultDebounce is the quiet period after the last event before a
// reload fires.
const DefaultDebounce = 500 * time.Millisecond

// includePatterns selects workflow definition files.
var includePatterns = []string{"*.yaml", "*.yml"}

// excludePatterns drops editor temp files that would otherwise trigger
// spurious reloads.
var excludePatterns = []string{
	"*.swp",
	"*.swo",
	".*.sw?",
	"*~",
	"#*#",
	".#*",
	"*.tmp",
	".DS_Store",
}

// Reloader re-reads workflow definitions. The scheduler implements it.
type Reloader interface {
	Reload() int
}

// Watcher monitors the workflows directory and triggers reloads.
type Watcher struct {
	dir       string
	fsWatcher *fsnotify.Watcher
	reloader  Reloader
	logger    *slog.Logger

	debounce time.Duration
	limiter  *rate.Limiter

	mu      sync.Mutex
	pending *time.Timer

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Config configures the watcher.
type Config struct {
	// Dir is the workflows directory to monitor.
	Dir string

	// Reloader receives the reload calls.
	Reloader Reloader

	// Debounce is the quiet period before a reload (default 500ms).
	Debounce time.Duration

	// Logger is used for structured logging (optional).
	Logger *slog.Logger
}

// New creates a watcher on the configured directory. Watching starts
// with Start.
func New(cfg Config) (*Watcher, error) {
	if cfg.Reloader == nil {
		return nil, fmt.Errorf("reloader is required")
	}

	absDir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolving workflows directory: %w", err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if err := fsWatcher.Add(absDir); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("watching %s: %w", absDir, err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debounce := cfg.Debounce
	if debounce == 0 {
		debounce = DefaultDebounce
	}

	return &Watcher{
		dir:       absDir,
		fsWatcher: fsWatcher,
		reloader:  cfg.Reloader,
		logger:    logger.With("component", "watcher", "dir", absDir),
		debounce:  debounce,
		// one reload per second sustained, bursts of two
		limiter: rate.NewLimiter(rate.Every(time.Second), 2),
	}, nil
}

// Start begins processing events until ctx is cancelled or Close is
// called.
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.loop(ctx)
	w.logger.Info("workflow watcher started")
}

// Close stops the watcher and releases the filesystem handle.
func (w *Watcher) Close() error {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()

	w.mu.Lock()
	if w.pending != nil {
		w.pending.Stop()
		w.pending = nil
	}
	w.mu.Unlock()

	return w.fsWatcher.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watch error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	if !relevant(event.Name) {
		return
	}

	w.logger.Debug("workflow file changed", "file", filepath.Base(event.Name), "op", event.Op.String())
	w.scheduleReload(ctx)
}

// scheduleReload resets the debounce timer; the reload fires once the
// directory has been quiet for the debounce window.
func (w *Watcher) scheduleReload(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(w.debounce, func() {
		w.reload(ctx)
	})
}

func (w *Watcher) reload(ctx context.Context) {
	w.mu.Lock()
	w.pending = nil
	w.mu.Unlock()

	// collapses reload storms from bulk file operations
	if err := w.limiter.Wait(ctx); err != nil {
		return
	}

	count := w.reloader.Reload()
	w.logger.Info("workflows reloaded", "scheduled", count)
}

// relevant reports whether the changed path is a workflow definition
// and not an editor artifact.
func relevant(path string) bool {
	base := filepath.Base(path)

	for _, pattern := range excludePatterns {
		if matched, _ := doublestar.Match(pattern, base); matched {
			return false
		}
	}
	for _, pattern := range includePatterns {
		if matched, _ := doublestar.Match(pattern, base); matched {
			return true
		}
	}
	return false
}
