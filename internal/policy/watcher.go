package policy

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const reloadDebounce = 500 * time.Millisecond

// Watcher observes a policy file and invokes a handler with the reloaded
// PolicySet when the file changes. Editors often replace files rather than
// write them in place, so the parent directory is watched and events are
// filtered by name.
type Watcher struct {
	watcher *fsnotify.Watcher
	path    string
	handler func(*PolicySet)
	logger  *zap.Logger
	done    chan struct{}
}

// NewWatcher starts watching the given policy file. The handler is called
// from the watch goroutine with each successfully reloaded policy; a file
// that fails to load degrades to the empty fail-closed policy.
func NewWatcher(path string, handler func(*PolicySet), logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("NewWatcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close() //nolint:errcheck
		return nil, fmt.Errorf("NewWatcher: %w", err)
	}

	w := &Watcher{
		watcher: fw,
		path:    path,
		handler: handler,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go w.watch()
	return w, nil
}

// Close stops the watch goroutine.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) watch() {
	debounce := time.NewTimer(reloadDebounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	pending := false

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.shouldHandle(event) {
				continue
			}
			// Debounce rapid successive writes into one reload.
			debounce.Reset(reloadDebounce)
			pending = true

		case <-debounce.C:
			if !pending {
				continue
			}
			pending = false
			w.logger.Info("policy file changed, reloading",
				zap.String("path", w.path),
			)
			w.handler(Load(w.path, w.logger))

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("policy watcher error", zap.Error(err))

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) shouldHandle(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	return filepath.Base(event.Name) == filepath.Base(w.path)
}
