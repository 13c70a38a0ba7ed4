package docstore

import (
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// keyDebounce coalesces the burst of events a secret rotation produces
// (Kubernetes swaps a symlink, editors write then rename).
var keyDebounce = 200 * time.Millisecond

// KeyWatcher watches a key file and calls OnChange after it is rewritten,
// so cached clients built with the old key can be dropped.
type KeyWatcher struct {
	path     string
	onChange func()
	logger   *slog.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
	running bool
}

// NewKeyWatcher returns a watcher for path. onChange runs on the watcher's
// goroutine.
func NewKeyWatcher(path string, onChange func(), logger *slog.Logger) *KeyWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &KeyWatcher{path: path, onChange: onChange, logger: logger}
}

// Start begins watching. The parent directory is watched so that creation
// and atomic replacement of the file are seen.
func (w *KeyWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.onChange == nil {
		return errors.New("key watcher: onChange must not be nil")
	}
	if w.running {
		return errors.New("key watcher: already started")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		_ = watcher.Close()
		return err
	}

	w.watcher = watcher
	w.done = make(chan struct{})
	w.running = true
	go w.loop(watcher, w.done)
	return nil
}

// Stop releases the watcher. Safe to call when not started.
func (w *KeyWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}
	close(w.done)
	w.running = false
	return w.watcher.Close()
}

func (w *KeyWatcher) loop(watcher *fsnotify.Watcher, done <-chan struct{}) {
	target := filepath.Base(w.path)
	var timer *time.Timer

	for {
		select {
		case <-done:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			name := filepath.Base(event.Name)
			// Kubernetes secret volumes rotate via the ..data symlink.
			if name != target && name != "..data" {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(keyDebounce, func() {
				w.logger.Info("account key changed; dropping cached clients", "path", w.path)
				w.onChange()
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("key watcher error", "path", w.path, "error", err)
		}
	}
}
