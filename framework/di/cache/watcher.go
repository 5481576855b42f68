package cache

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce collapses bursts of editor writes into one invalidation.
const DefaultDebounce = 300 * time.Millisecond

// Watcher clears the store whenever one of the watched source files
// changes. Parent directories are watched so atomic saves (rename over the
// file) are seen too.
type Watcher struct {
	store    *Store
	logger   *zap.Logger
	files    map[string]bool
	debounce time.Duration
	onChange []func(path string)

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	done    chan struct{}
	once    sync.Once

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher starts watching paths.
func NewWatcher(store *Store, logger *zap.Logger, debounce time.Duration, paths ...string) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("cache: create file watcher: %w", err)
	}
	w := &Watcher{
		store:    store,
		logger:   logger,
		files:    make(map[string]bool),
		debounce: debounce,
		watcher:  fsw,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fsw.Close()
			return nil, fmt.Errorf("cache: watch %s: %w", p, err)
		}
		w.files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("cache: watch %s: %w", dir, err)
		}
		logger.Debug("watching container sources", zap.String("dir", dir))
	}
	go w.loop()
	return w, nil
}

// OnChange registers a callback run after the cache was cleared.
func (w *Watcher) OnChange(fn func(path string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, fn)
}

// Close stops the watcher and waits for its goroutine.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.stopCh)
		<-w.done
		err = w.watcher.Close()
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
	})
	return err
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || !w.files[abs] {
				continue
			}
			w.logger.Info("container source changed",
				zap.String("file", abs),
				zap.String("operation", event.Op.String()),
			)
			w.schedule(abs)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watcher error", zap.Error(err))

		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() { w.invalidate(path) })
}

func (w *Watcher) invalidate(path string) {
	if err := w.store.Clear(); err != nil {
		w.logger.Error("failed to clear container cache", zap.Error(err))
		return
	}
	w.mu.Lock()
	callbacks := append([]func(string){}, w.onChange...)
	w.mu.Unlock()
	for _, cb := range callbacks {
		cb(path)
	}
}
