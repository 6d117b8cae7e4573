package config

import (
	"context"
	"crypto/sha256"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeHandler receives each successfully reloaded config.
type ChangeHandler func(cfg *Config)

// Watcher re-applies the config file while the server runs. Bursts of file
// events within the debounce window collapse into one reload, and a reload
// whose file bytes match the last applied ones is dropped.
type Watcher struct {
	path     string
	fs       *fsnotify.Watcher
	debounce time.Duration

	mu       sync.Mutex
	handlers []ChangeHandler
	applied  [sha256.Size]byte
}

func NewWatcher(configPath string) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		path:     filepath.Clean(configPath),
		fs:       fs,
		debounce: 300 * time.Millisecond,
	}
	if data, err := os.ReadFile(w.path); err == nil {
		w.applied = sha256.Sum256(data)
	}
	return w, nil
}

// OnChange adds a handler. Handlers run on the Run goroutine, in order.
func (w *Watcher) OnChange(handler ChangeHandler) {
	w.mu.Lock()
	w.handlers = append(w.handlers, handler)
	w.mu.Unlock()
}

// Run blocks until ctx is done. It watches the parent directory, since many
// editors save by writing a temp file and renaming it over the original.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()
	if err := w.fs.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	slog.Info("config watcher started", "path", w.path)
	defer slog.Info("config watcher stopped", "path", w.path)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			w.reload()
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if w.relevant(ev) {
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			slog.Warn("config.watch_error", "error", err)
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.path {
		return false
	}
	return ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

func (w *Watcher) reload() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		slog.Warn("config.reload_failed", "path", w.path, "error", err)
		return
	}
	sum := sha256.Sum256(data)

	w.mu.Lock()
	unchanged := sum == w.applied
	w.mu.Unlock()
	if unchanged {
		slog.Debug("config file touched without changes", "path", w.path)
		return
	}

	cfg, err := Load(w.path)
	if err != nil {
		slog.Error("config.reload_failed", "path", w.path, "error", err, "keeping", "current settings")
		return
	}

	w.mu.Lock()
	w.applied = sum
	handlers := append([]ChangeHandler(nil), w.handlers...)
	w.mu.Unlock()

	for _, h := range handlers {
		h(cfg)
	}
	slog.Info("config reloaded", "path", w.path, "handlers", len(handlers))
}
