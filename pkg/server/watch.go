package server

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// PropertyChangeFunc is called with the freshly loaded properties after the file changes.
type PropertyChangeFunc func(props map[string]string)

// PropertyWatcher reloads a property file whenever it is written or replaced.
type PropertyWatcher struct {
	path     string
	logger   Logger
	onChange PropertyChangeFunc
	watcher  *fsnotify.Watcher
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewPropertyWatcher creates a watcher for the property file at path.
func NewPropertyWatcher(path string, logger Logger, onChange PropertyChangeFunc) *PropertyWatcher {
	if logger == nil {
		logger = nopLogger{}
	}
	return &PropertyWatcher{
		path:     path,
		logger:   logger,
		onChange: onChange,
	}
}

// Start begins watching until ctx ends or Stop is called.
// The parent directory is watched so that files replaced by rename are still seen.
func (w *PropertyWatcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: creating file watcher: %w", ErrIO, err)
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("%w: watching %s: %w", ErrIO, filepath.Dir(w.path), err)
	}
	w.watcher = watcher

	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.loop(ctx)

	w.logger.Debug("Watching property file %s", w.path)
	return nil
}

// Stop ends the watch and waits for the loop to exit. Safe to call more than once.
func (w *PropertyWatcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

func (w *PropertyWatcher) loop(ctx context.Context) {
	defer w.wg.Done()
	defer w.watcher.Close()

	name := filepath.Clean(w.path)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Property watcher error: %v", err)
		}
	}
}

func (w *PropertyWatcher) reload() {
	props, err := LoadProperties(w.path)
	if err != nil {
		// The file may be caught half-written; the next write event retries.
		if errors.Is(err, ErrParse) {
			w.logger.Debug("Skipping partial property file %s: %v", w.path, err)
		} else {
			w.logger.Warn("Failed to reload %s: %v", w.path, err)
		}
		return
	}
	w.onChange(props)
}
