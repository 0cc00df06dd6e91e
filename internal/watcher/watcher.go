// Package watcher watches an inbox directory and ingests photos dropped into it.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Debounce absorbs the write bursts that copying a photo into the inbox
// produces, so a file is ingested once, after it stops growing.
const defaultDebounce = 400 * time.Millisecond

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

const (
	doneDir   = "done"
	failedDir = "failed"
)

// Ingester handles one photo file from the inbox.
type Ingester interface {
	IngestFile(ctx context.Context, path string) error
}

// Watcher watches an inbox directory. Image files that appear are handed to
// the ingester and then archived into done/ or failed/ inside the inbox.
type Watcher struct {
	inbox    string
	ingester Ingester
	debounce time.Duration
	logger   *zap.Logger

	watcher     *fsnotify.Watcher
	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce overrides the write debounce interval.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates an inbox watcher over the given directory.
func NewWatcher(inbox string, ingester Ingester, opts ...Option) *Watcher {
	w := &Watcher{
		inbox:       filepath.Clean(inbox),
		ingester:    ingester,
		debounce:    defaultDebounce,
		logger:      zap.NewNop(),
		debounceMap: make(map[string]*time.Timer),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start creates the inbox and archive directories, ingests any photos already
// present, and then watches until ctx is canceled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	for _, dir := range []string{w.inbox, filepath.Join(w.inbox, doneDir), filepath.Join(w.inbox, failedDir)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			w.mu.Unlock()
			return err
		}
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if err := watcher.Add(w.inbox); err != nil {
		_ = watcher.Close()
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher
	w.started = true
	w.mu.Unlock()

	w.logger.Info("inbox watcher started", zap.String("inbox", w.inbox))
	w.syncExisting(ctx)
	go w.run(ctx)
	return nil
}

// syncExisting ingests photos that were already in the inbox at startup.
func (w *Watcher) syncExisting(ctx context.Context) {
	entries, err := os.ReadDir(w.inbox)
	if err != nil {
		w.logger.Warn("failed to scan inbox", zap.Error(err))
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !isImage(entry.Name()) {
			continue
		}
		w.ingest(ctx, filepath.Join(w.inbox, entry.Name()))
	}
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	path := ev.Name
	if filepath.Dir(filepath.Clean(path)) != w.inbox || !isImage(path) {
		return
	}
	switch {
	case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
		w.debounceIngest(ctx, path)
	case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
		w.cancelDebounce(path)
	}
}

func (w *Watcher) debounceIngest(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
	}
	w.debounceMap[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, path)
		w.mu.Unlock()
		w.ingest(ctx, path)
	})
}

func (w *Watcher) cancelDebounce(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
		delete(w.debounceMap, path)
	}
}

// ingest hands the file to the ingester and archives it by outcome.
func (w *Watcher) ingest(ctx context.Context, path string) {
	if _, err := os.Stat(path); err != nil {
		return // moved or removed before the debounce fired
	}
	archive := doneDir
	if err := w.ingester.IngestFile(ctx, path); err != nil {
		w.logger.Warn("inbox ingest failed", zap.String("path", path), zap.Error(err))
		archive = failedDir
	} else {
		w.logger.Info("inbox photo ingested", zap.String("path", path))
	}
	dest := filepath.Join(w.inbox, archive, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		w.logger.Warn("failed to archive inbox photo", zap.String("path", path), zap.Error(err))
	}
}

func isImage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range imageExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.debounceMap {
		t.Stop()
		delete(w.debounceMap, path)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
