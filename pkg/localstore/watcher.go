package localstore

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher reports external modification of store files, so a client can
// notice another process touching the same profile. Notifications are
// debounced and carry the affected key.
type Watcher struct {
	watcher  *fsnotify.Watcher
	logger   zerolog.Logger
	onChange func(key string)
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
	stopCh  chan struct{}
}

// NewWatcher starts watching the store's directory.
func NewWatcher(store *Store, logger zerolog.Logger, onChange func(key string)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:  fw,
		logger:   logger,
		onChange: onChange,
		debounce: 500 * time.Millisecond,
		pending:  make(map[string]*time.Timer),
		stopCh:   make(chan struct{}),
	}

	if err := fw.Add(store.Dir()); err != nil {
		fw.Close()
		return nil, err
	}

	go w.run()
	return w, nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	close(w.stopCh)
	return w.watcher.Close()
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			key := filepath.Base(event.Name)
			// Writes land via temp files; ignore them.
			if strings.HasSuffix(key, ".tmp") {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.logger.Debug().
					Str("key", key).
					Str("op", event.Op.String()).
					Msg("Store file change detected")
				w.scheduleNotify(key)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Store watcher error")

		case <-w.stopCh:
			return
		}
	}
}

// scheduleNotify debounces per-key notifications.
func (w *Watcher) scheduleNotify(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[key]; ok {
		timer.Stop()
	}
	w.pending[key] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, key)
		w.mu.Unlock()

		if w.onChange != nil {
			w.onChange(key)
		}
	})
}
