// Package watcher keeps the index in sync with the tracker CSV: it
// watches the file with fsnotify, debounces the editor's save bursts,
// and invokes a rebuild callback once the file settles.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the tracker must stay quiet before a
// rebuild fires. Spreadsheet apps save in multi-event bursts.
const DefaultDebounce = 500 * time.Millisecond

// Options configures the tracker watcher.
type Options struct {
	// Debounce is the quiet window before the callback fires.
	Debounce time.Duration
}

// TrackerWatcher watches one tracker file and triggers rebuilds.
type TrackerWatcher struct {
	path     string
	debounce time.Duration
	onChange func(ctx context.Context) error
	errs     chan error
}

// New creates a watcher for the tracker at path. onChange runs after
// each debounced change; its errors are reported on Errors but do not
// stop the watcher.
func New(path string, opts Options, onChange func(ctx context.Context) error) *TrackerWatcher {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &TrackerWatcher{
		path:     path,
		debounce: debounce,
		onChange: onChange,
		errs:     make(chan error, 16),
	}
}

// Errors returns the channel of non-fatal watcher errors.
func (w *TrackerWatcher) Errors() <-chan error {
	return w.errs
}

// Run watches until ctx is cancelled. The parent directory is watched
// rather than the file itself: editors replace files by rename, which
// would silently detach a file-level watch.
func (w *TrackerWatcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	target, err := filepath.Abs(w.path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", w.path, err)
	}

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			abs, err := filepath.Abs(ev.Name)
			if err != nil || abs != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
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
			if err := w.onChange(ctx); err != nil {
				select {
				case w.errs <- err:
				default:
					// error channel full, drop
				}
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			select {
			case w.errs <- err:
			default:
			}
		}
	}
}
