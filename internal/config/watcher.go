package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const DefaultDebounce = 150 * time.Millisecond

// Watcher reloads a config file whenever it is written and delivers each
// version that loads and validates.
type Watcher struct {
	path     string
	debounce time.Duration
	updates  chan *Config
	log      zerolog.Logger

	// Base returns the config a reload starts from. Defaults when nil.
	Base func() *Config
	// Finish runs after the file is decoded, e.g. to re-apply env and flags.
	Finish func(*Config) error

	mu    sync.Mutex
	timer *time.Timer
}

func NewWatcher(path string, debounce time.Duration, log zerolog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		path:     path,
		debounce: debounce,
		updates:  make(chan *Config, 1),
		log:      log.With().Str("component", "config-watcher").Str("path", path).Logger(),
	}
}

// Updates delivers reloaded configs. Only the newest pending one is kept.
func (w *Watcher) Updates() <-chan *Config { return w.updates }

// Run watches the file's directory, since editors often replace the file
// rather than write to it, until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	name := filepath.Base(w.path)

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.schedule()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("watch error")
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	cfg := DefaultConfig()
	if w.Base != nil {
		cfg = w.Base()
	}
	if err := Decode(w.path, cfg); err != nil {
		w.log.Warn().Err(err).Msg("reload failed, keeping current config")
		return
	}
	if w.Finish != nil {
		if err := w.Finish(cfg); err != nil {
			w.log.Warn().Err(err).Msg("reload failed, keeping current config")
			return
		}
	}
	if err := cfg.Validate(); err != nil {
		w.log.Warn().Err(err).Msg("reloaded config rejected")
		return
	}

	// Replace a stale pending update rather than block the timer goroutine.
	select {
	case <-w.updates:
	default:
	}
	select {
	case w.updates <- cfg:
		w.log.Info().Msg("config reloaded")
	default:
	}
}
