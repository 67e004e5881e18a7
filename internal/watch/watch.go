// Package watch re-runs a callback whenever a description file changes.
package watch

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/firefly-engineering/kraftcheck/internal/logging"
	"github.com/firefly-engineering/kraftcheck/internal/system"
)

const (
	// DefaultDebounce is how quiet the file must stay before a change fires.
	DefaultDebounce = 200 * time.Millisecond

	tick = 50 * time.Millisecond
)

var errWatcherClosed = errors.New("file watcher closed")

// Func is called with the file's contents after each change.
type Func func(ctx context.Context, data []byte) error

// Watcher watches one file. Its parent directory is watched so that editors
// replacing the file by rename are still seen.
type Watcher struct {
	FS       system.FileSystem
	Path     string
	Debounce time.Duration
}

// New creates a Watcher that reads path through fsys.
func New(fsys system.FileSystem, path string) *Watcher {
	return &Watcher{FS: fsys, Path: path, Debounce: DefaultDebounce}
}

// Run calls fn with the current contents, then again each time the contents
// change, until ctx is cancelled. Errors from fn are logged and watching
// continues. Run returns ctx.Err() on cancellation.
func (w *Watcher) Run(ctx context.Context, fn Func) error {
	path := filepath.Clean(w.Path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() {
		_ = watcher.Close()
	}()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	var (
		hasHash  bool
		lastHash [sha256.Size]byte
	)

	process := func() {
		data, err := w.FS.ReadFile(path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				logging.Warn("failed to read watched file", "path", path, "error", err)
			}
			return
		}

		sum := sha256.Sum256(data)
		if hasHash && sum == lastHash {
			return
		}
		lastHash = sum
		hasHash = true

		if err := fn(ctx, data); err != nil {
			logging.Warn("watch callback failed", "path", path, "error", err)
		}
	}

	process()

	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	var (
		pending     bool
		pendingFrom time.Time
	)
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if pending && time.Since(pendingFrom) >= debounce {
				pending = false
				process()
			}
		case event, ok := <-watcher.Events:
			if !ok {
				return errWatcherClosed
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				logging.Debug("watched file changed", "path", path, "op", event.Op.String())
				pending = true
				pendingFrom = time.Now()
			}
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return errWatcherClosed
			}
			logging.Warn("file watcher error", "path", path, "error", watchErr)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
