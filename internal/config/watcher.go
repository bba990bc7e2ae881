package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/harun/taskgate/pkg/approval"
)

// ReloadFunc is called with the path of a changed file
type ReloadFunc func(path string) error

// FileWatcher calls a reload function when a file changes. It watches the
// parent directory, so editors that save by renaming a temp file are seen too.
type FileWatcher struct {
	watcher            *fsnotify.Watcher
	path               string
	stabilityThreshold time.Duration
	onChange           ReloadFunc
	done               chan struct{}
	debounceMu         sync.Mutex
	debounceTimer      *time.Timer
	stopOnce           sync.Once
}

// FileWatcherConfig holds configuration for the watcher
type FileWatcherConfig struct {
	Path               string
	StabilityThreshold time.Duration
	OnChange           ReloadFunc
}

// NewFileWatcher creates a new file watcher
func NewFileWatcher(config FileWatcherConfig) (*FileWatcher, error) {
	if config.OnChange == nil {
		return nil, fmt.Errorf("watcher needs a reload function")
	}

	abs, err := filepath.Abs(config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", config.Path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	if config.StabilityThreshold == 0 {
		config.StabilityThreshold = 100 * time.Millisecond
	}

	return &FileWatcher{
		watcher:            watcher,
		path:               abs,
		stabilityThreshold: config.StabilityThreshold,
		onChange:           config.OnChange,
		done:               make(chan struct{}),
	}, nil
}

// Start starts watching
func (w *FileWatcher) Start() error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}

	go w.eventLoop()

	log.Info().
		Str("path", w.path).
		Msg("Config watcher started")

	return nil
}

// Stop stops the watcher
func (w *FileWatcher) Stop() error {
	closed := false
	w.stopOnce.Do(func() {
		close(w.done)
		closed = true
	})
	if !closed {
		return nil
	}

	w.debounceMu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
		w.debounceTimer = nil
	}
	w.debounceMu.Unlock()

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	log.Info().Str("path", w.path).Msg("Config watcher stopped")
	return nil
}

func (w *FileWatcher) eventLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.debounce()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Watcher error")

		case <-w.done:
			return
		}
	}
}

// debounce collapses a burst of events into one reload
func (w *FileWatcher) debounce() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}

	w.debounceTimer = time.AfterFunc(w.stabilityThreshold, func() {
		select {
		case <-w.done:
			return
		default:
		}

		if err := w.onChange(w.path); err != nil {
			log.Error().
				Err(err).
				Str("path", w.path).
				Msg("Error reloading config")
		}
	})
}

// WatchToolCatalog swaps a freshly loaded catalog into store whenever path
// changes. A file that fails to load leaves the previous catalog in place.
func WatchToolCatalog(path string, store *approval.CatalogStore) (*FileWatcher, error) {
	w, err := NewFileWatcher(FileWatcherConfig{
		Path: path,
		OnChange: func(p string) error {
			catalog, err := LoadToolCatalog(p)
			if err != nil {
				return err
			}
			store.Swap(catalog)
			log.Info().Str("path", p).Strs("tools", catalog.Names()).Msg("Tool config reloaded")
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	if err := w.Start(); err != nil {
		w.watcher.Close()
		return nil, err
	}
	return w, nil
}
