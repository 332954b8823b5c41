package jobtypes

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads a Registry when definition files in a directory change.
// Only the top-level directory is watched.
type Watcher struct {
	registry *Registry
	dir      string
	pattern  string
	logger   *zap.Logger
	onReload func(n int, err error)

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatchLogger sets the logger.
func WithWatchLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// OnReload sets a callback run after every reload attempt.
func OnReload(fn func(n int, err error)) WatcherOption {
	return func(w *Watcher) {
		w.onReload = fn
	}
}

// Watch starts watching dir and reloads r on every change to a file that
// matches pattern. A failed reload keeps the previous definitions.
func Watch(r *Registry, dir, pattern string, opts ...WatcherOption) (*Watcher, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	w := &Watcher{
		registry: r,
		dir:      dir,
		pattern:  pattern,
		logger:   zap.NewNop(),
		watcher:  fw,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !w.matches(ev.Name) {
				continue
			}
			w.reload(ev.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("job type watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) matches(name string) bool {
	rel, err := filepath.Rel(w.dir, name)
	if err != nil {
		return false
	}
	ok, err := doublestar.Match(w.pattern, filepath.ToSlash(rel))
	return err == nil && ok
}

func (w *Watcher) reload(trigger string) {
	n, err := w.registry.LoadDir(w.dir, w.pattern)
	if err != nil {
		w.logger.Warn("job type reload failed", zap.String("file", trigger), zap.Error(err))
	} else {
		w.logger.Info("job types reloaded", zap.String("file", trigger), zap.Int("count", n))
	}
	if w.onReload != nil {
		w.onReload(n, err)
	}
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.watcher.Close()
		w.wg.Wait()
	})
	return err
}
