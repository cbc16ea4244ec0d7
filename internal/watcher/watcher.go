// Package watcher reloads application state when the database file is
// changed by another process.
package watcher

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"kairon/internal/utils"
)

// DefaultDebounce batches the burst of writes SQLite makes per transaction.
const DefaultDebounce = 300 * time.Millisecond

// Config holds file watcher configuration.
type Config struct {
	Path     string        // database file; its directory is watched
	Debounce time.Duration // window for batching rapid changes
	OnChange func()        // called once per batch
}

// Watcher monitors a database file and its journal siblings.
type Watcher struct {
	cfg     Config
	fsw     *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
	stopped bool
	mu      sync.Mutex
}

// New creates a Watcher for cfg.Path. The path must be a real file; the
// in-memory SQLite path cannot be watched.
func New(cfg Config) (*Watcher, error) {
	if cfg.Path == "" || cfg.Path == ":memory:" {
		return nil, fmt.Errorf("cannot watch database path %q", cfg.Path)
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &Watcher{
		cfg:    cfg,
		fsw:    fsw,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}, nil
}

// Start begins watching. SQLite replaces -wal and -journal files, so the
// parent directory is watched and events are filtered by name.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return fmt.Errorf("watcher has been stopped and cannot be restarted")
	}
	dir := filepath.Dir(w.cfg.Path)
	if err := w.fsw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %q: %w", dir, err)
	}
	w.started = true
	go w.eventLoop()
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	close(w.stopCh)
	_ = w.fsw.Close()
	started := w.started
	w.mu.Unlock()
	if started {
		<-w.doneCh
	}
}

// relevant reports whether name is the database or one of its journals.
func (w *Watcher) relevant(name string) bool {
	base := filepath.Base(w.cfg.Path)
	got := filepath.Base(name)
	return got == base || strings.HasPrefix(got, base+"-")
}

func (w *Watcher) eventLoop() {
	defer close(w.doneCh)

	var timer *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-w.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if !w.relevant(event.Name) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.cfg.Debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			utils.Warnf("watcher: %v", err)

		case <-fire:
			utils.Debugf("watcher: %s changed, reloading", w.cfg.Path)
			if w.cfg.OnChange != nil {
				w.cfg.OnChange()
			}
		}
	}
}
