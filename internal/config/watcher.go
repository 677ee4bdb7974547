package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// debounce absorbs the write bursts editors and atomic-rename saves produce.
const debounce = 200 * time.Millisecond

// Watcher reloads the config file when it changes on disk and publishes the
// result through the Store. The gateway's own Save calls also trip the
// watcher; the redundant reload is harmless.
type Watcher struct {
	store   *Store
	logger  zerolog.Logger
	watcher *fsnotify.Watcher
	done    chan struct{}
}

func Watch(store *Store, logger zerolog.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}

	// Watch the directory, not the file: replace-by-rename saves would
	// otherwise detach the watch.
	if err := fsWatcher.Add(filepath.Dir(store.Path())); err != nil {
		_ = fsWatcher.Close()
		return nil, fmt.Errorf("watch config directory: %w", err)
	}

	w := &Watcher{
		store:   store,
		logger:  logger,
		watcher: fsWatcher,
		done:    make(chan struct{}),
	}
	go w.run()

	return w, nil
}

func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) run() {
	target, _ := filepath.Abs(w.store.Path())

	var timer *time.Timer
	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			name, _ := filepath.Abs(event.Name)
			if name != target || !event.Op.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, w.reload)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("config watcher error")
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.store.Path())
	if err != nil {
		w.logger.Warn().Err(err).Msg("config reload failed, keeping previous snapshot")
		return
	}

	w.store.Replace(cfg)
	w.logger.Info().Str("path", w.store.Path()).Msg("config reloaded")
}
