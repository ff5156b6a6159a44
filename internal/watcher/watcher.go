// Package watcher reloads the YAML configuration when the file changes on disk.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pagepilot/pagepilot/internal/config"
	log "github.com/sirupsen/logrus"
)

const defaultDebounce = 250 * time.Millisecond

// ReloadFunc receives each successfully parsed and validated configuration.
type ReloadFunc func(cfg *config.Config)

// EnvLookup returns the first non-empty environment value among keys.
type EnvLookup func(keys ...string) (string, bool)

// Watcher observes one config file.
type Watcher struct {
	path     string
	lookup   EnvLookup
	onReload ReloadFunc
	debounce time.Duration
	fsw      *fsnotify.Watcher

	closeOnce sync.Once
	done      chan struct{}
}

// New watches the directory holding path, so atomic replace-by-rename saves are
// seen as well as in-place writes. lookup, when set, supplies the environment
// overrides applied before each reloaded file is validated.
func New(path string, lookup EnvLookup, onReload ReloadFunc) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	return &Watcher{
		path:     abs,
		lookup:   lookup,
		onReload: onReload,
		debounce: defaultDebounce,
		fsw:      fsw,
		done:     make(chan struct{}),
	}, nil
}

// Run processes events until ctx is cancelled or Close is called.
func (w *Watcher) Run(ctx context.Context) {
	var timer *time.Timer
	fire := make(chan struct{}, 1)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case <-fire:
			w.reload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.WithError(err).Warn("config watcher error")
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := config.LoadConfig(w.path)
	if err != nil {
		log.WithError(err).Warn("config reload skipped: file could not be read")
		return
	}
	if w.lookup != nil {
		cfg.ApplyEnvOverrides(w.lookup)
	}
	warnings, err := config.ValidateConfig(cfg)
	if err != nil {
		log.WithError(err).Warn("config reload skipped: invalid configuration")
		return
	}
	for _, warning := range warnings {
		log.Warn(warning)
	}
	log.WithField("path", w.path).Info("configuration reloaded")
	if w.onReload != nil {
		w.onReload(cfg)
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.fsw.Close()
	})
	return err
}
