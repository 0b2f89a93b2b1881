// Package watcher rebuilds the index when the file store's data files
// change on disk.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/records"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/records/filestore"
)

// ErrWatcherFailed indicates the filesystem watcher could not start.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// Rebuilder is the part of the indexer Manager the watcher drives.
type Rebuilder interface {
	Rebuild(ctx context.Context, types ...records.Type) error
}

// Watcher coalesces bursts of data file events into one rebuild of the
// affected record types per debounce window.
type Watcher struct {
	dir      string
	debounce time.Duration
	target   Rebuilder
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	mu    sync.Mutex
	dirty map[records.Type]bool
	timer *time.Timer
	fire  chan struct{}
}

func New(dir string, target Rebuilder, debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{
		dir:      dir,
		debounce: debounce,
		target:   target,
		watcher:  fw,
		logger:   slog.Default().With("component", "data-watcher", "dir", dir),
		dirty:    make(map[records.Type]bool),
		fire:     make(chan struct{}, 1),
	}, nil
}

// Run blocks until ctx is cancelled, then closes the underlying watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	w.logger.Info("watching data files")
	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return nil
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)
		case <-w.fire:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
		return
	}
	rt, ok := filestore.TypeForFile(ev.Name)
	if !ok {
		return
	}
	w.logger.Debug("data file changed", "file", ev.Name, "op", ev.Op.String(), "record_type", rt)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.dirty[rt] = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case w.fire <- struct{}{}:
		default:
		}
	})
}

func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	types := make([]records.Type, 0, len(w.dirty))
	for _, rt := range records.AllTypes {
		if w.dirty[rt] {
			types = append(types, rt)
		}
	}
	w.dirty = make(map[records.Type]bool)
	w.mu.Unlock()

	if len(types) == 0 {
		return
	}
	w.logger.Info("data files changed, rebuilding index", "types", types)
	if err := w.target.Rebuild(ctx, types...); err != nil {
		w.logger.Error("rebuild after data change failed", "error", err)
	}
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}
