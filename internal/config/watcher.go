// Copyright 2026 The relaygate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// Watcher reloads the configuration file when it changes on disk and hands
// the parsed result to the reload callback. Only runtime-tunable settings
// (fallback chains, cacheable capability sets) take effect without a
// restart; the callback decides what to apply.
type Watcher struct {
	path   string
	reload func(*Config)
	fsw    *fsnotify.Watcher
}

// NewWatcher creates a watcher for the given config path.
func NewWatcher(path string, reload func(*Config)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory, not the file: editors and config management tools
	// replace files by rename, which drops a file-level watch.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}
	return &Watcher{path: path, reload: reload, fsw: fsw}, nil
}

// Start runs the watch loop until ctx is done. Reloads are debounced so a
// burst of write events triggers a single parse.
func (w *Watcher) Start(ctx context.Context) {
	const debounce = 300 * time.Millisecond

	var timer *time.Timer
	fire := make(chan struct{}, 1)

	schedule := func() {
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounce, func() {
			select {
			case fire <- struct{}{}:
			default:
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			w.fsw.Close()
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				schedule()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warnf("config watcher: %v", err)
		case <-fire:
			cfg, err := Load(w.path)
			if err != nil {
				log.Errorf("config reload rejected: %v", err)
				continue
			}
			log.Infof("config reloaded from %s", w.path)
			w.reload(cfg)
		}
	}
}
