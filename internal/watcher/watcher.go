// Package watcher reports debounced changes to the files of one directory.
package watcher

import (
	"context"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Logger is the subset of logging.Logger the watcher needs.
type Logger interface {
	Warn(format string, args ...any)
}

// Watcher watches a single directory, without recursion, and emits
// debounced batches of file events. Events for directories are dropped.
type Watcher struct {
	fs        *fsnotify.Watcher
	debouncer *Debouncer
	dir       string
	log       Logger
}

// New starts watching dir. interval is the debounce quiet period.
func New(dir string, interval time.Duration, log Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}
	return &Watcher{
		fs:        fsw,
		debouncer: NewDebouncer(interval),
		dir:       dir,
		log:       log,
	}, nil
}

// Events returns the channel of debounced batches.
func (w *Watcher) Events() <-chan []Event {
	return w.debouncer.Output()
}

// Run forwards fsnotify events to the debouncer until ctx is cancelled or
// the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warn("Watcher error: %v", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	var op Op
	switch {
	case event.Has(fsnotify.Create):
		op = OpCreate
	case event.Has(fsnotify.Write):
		op = OpWrite
	case event.Has(fsnotify.Remove):
		op = OpRemove
	case event.Has(fsnotify.Rename):
		op = OpRename
	default:
		return // chmod
	}

	if op == OpCreate || op == OpWrite {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			return
		}
	}
	w.debouncer.Add(event.Name, op)
}

// Close stops watching and discards pending events.
func (w *Watcher) Close() error {
	w.debouncer.Stop()
	return w.fs.Close()
}
