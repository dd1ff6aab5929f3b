// Package watch enqueues newly recorded segments. Files are only handed to
// the pipeline once their size is stable: recorders write segments
// incrementally, and a half-written container would read as corrupted.
package watch

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/halward/screenidx/internal/errors"
	"github.com/halward/screenidx/internal/logging"
	"github.com/halward/screenidx/internal/util"
)

// StabilityGap is the sampling gap used to verify a file stopped growing.
const StabilityGap = 500 * time.Millisecond

// Watcher watches a directory and emits stable segment paths.
type Watcher struct {
	dir        string
	extensions []string
	out        chan string
	enqueued   map[string]bool
	log        *logging.Logger
}

// New creates a watcher for dir, filtering by the given extensions.
func New(dir string, extensions []string, log *logging.Logger) *Watcher {
	if log == nil {
		log = logging.Global()
	}
	return &Watcher{
		dir:        dir,
		extensions: extensions,
		out:        make(chan string, 100),
		enqueued:   make(map[string]bool),
		log:        log,
	}
}

// Segments returns the channel of stable segment paths.
func (w *Watcher) Segments() <-chan string {
	return w.out
}

// Run watches until the context is cancelled. The output channel closes on
// return.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.out)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.NewIOError("creating filesystem watcher", err)
	}
	defer func() { _ = fsw.Close() }()

	if err := fsw.Add(w.dir); err != nil {
		return errors.NewIOError("watching "+w.dir, err)
	}
	w.log.Info("watching for segments", "dir", w.dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !util.HasVideoExtension(ev.Name, w.extensions) {
				continue
			}
			w.enqueueWhenStable(ctx, ev.Name)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher error", "error", err)
		}
	}
}

// enqueueWhenStable emits the path once its size survives the sampling gap.
// Still-growing files are left for the next write event to retry.
func (w *Watcher) enqueueWhenStable(ctx context.Context, path string) {
	if w.enqueued[path] {
		return
	}
	if !util.IsFileStable(path, StabilityGap) {
		w.log.Debug("segment not yet stable", "path", path)
		return
	}
	select {
	case w.out <- path:
		w.enqueued[path] = true
		w.log.Debug("segment enqueued", "path", path)
	case <-ctx.Done():
	}
}
