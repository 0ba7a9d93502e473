// Package watcher reloads the configuration file on change so API keys and
// credentials can be rotated without restarting the server.
package watcher

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"github.com/openbridge-ai/geminibridge/internal/config"
)

// debounceWindow coalesces editor write bursts into one reload.
const debounceWindow = 300 * time.Millisecond

// Watcher observes one configuration file and invokes the reload callback
// with each successfully parsed revision.
type Watcher struct {
	path   string
	reload func(*config.Config)
}

// New creates a watcher for the config file at path.
func New(path string, reload func(*config.Config)) *Watcher {
	return &Watcher{path: path, reload: reload}
}

// Start watches until ctx is cancelled. Parse failures keep the previous
// configuration active.
func (w *Watcher) Start(ctx context.Context) error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() {
		if errClose := fsWatcher.Close(); errClose != nil {
			log.Errorf("watcher: close error: %v", errClose)
		}
	}()

	// Watch the directory: editors replace files on save, which would drop
	// a watch registered on the file itself.
	if err = fsWatcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	log.Infof("watching %s for configuration changes", w.path)

	var timer *time.Timer
	fire := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsWatcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounceWindow, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case errWatch, ok := <-fsWatcher.Errors:
			if !ok {
				return nil
			}
			log.Warnf("watcher: %v", errWatch)
		case <-fire:
			cfg, errLoad := config.Load(w.path)
			if errLoad != nil {
				log.Errorf("config reload failed, keeping previous configuration: %v", errLoad)
				continue
			}
			log.Info("configuration reloaded")
			w.reload(cfg)
		}
	}
}
