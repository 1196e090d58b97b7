package ingest

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"drdoc/internal/logging"
)

// Watcher re-ingests markdown files as they change on disk. Events are
// debounced so an editor's rapid save sequence triggers one re-ingest.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	pipeline    *Pipeline
	docsDir     string
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
}

// NewWatcher creates a watcher over the pipeline's docs directory.
func NewWatcher(pipeline *Pipeline) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:     fsw,
		pipeline:    pipeline,
		docsDir:     pipeline.cfg.DocsDir,
		debounceMap: make(map[string]time.Time),
		debounceDur: 500 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; the event loop runs in its own
// goroutine until Stop or context cancellation.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.addRecursive(w.docsDir); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return err
	}
	logging.Ingest("watching %s for document changes", w.docsDir)

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.Get(logging.CategoryIngest).Error("error closing watcher: %v", err)
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	debounceTicker := time.NewTicker(100 * time.Millisecond)
	defer debounceTicker.Stop()

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
			w.handleEvent(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryIngest).Error("watcher error: %v", err)
		case <-debounceTicker.C:
			w.processDebounced(ctx)
		}
	}
}

// addRecursive watches root and every directory below it. fsnotify
// watches are not recursive, so each subdirectory needs its own watch.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return w.watcher.Add(path)
	})
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	// Newly created subdirectories need a watch of their own before any
	// document lands in them.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				logging.Get(logging.CategoryIngest).Error("failed to watch new directory %s: %v", event.Name, err)
			}
			return
		}
	}
	if !isMarkdown(event.Name) {
		return
	}
	switch {
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		w.mu.Lock()
		w.debounceMap[event.Name] = time.Now()
		w.mu.Unlock()
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.mu.Lock()
		delete(w.debounceMap, event.Name)
		w.mu.Unlock()
		if err := w.pipeline.RemoveFile(ctx, event.Name); err != nil {
			logging.Get(logging.CategoryIngest).Error("failed to remove %s: %v", event.Name, err)
		} else {
			logging.Ingest("removed chunks for deleted document %s", event.Name)
		}
	}
}

// processDebounced re-ingests files whose last event is older than the
// debounce window.
func (w *Watcher) processDebounced(ctx context.Context) {
	now := time.Now()
	var ready []string

	w.mu.Lock()
	for path, last := range w.debounceMap {
		if now.Sub(last) >= w.debounceDur {
			ready = append(ready, path)
			delete(w.debounceMap, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		if _, _, err := w.pipeline.IngestFile(ctx, path); err != nil {
			logging.Get(logging.CategoryIngest).Error("failed to re-ingest %s: %v", path, err)
		}
	}
}
