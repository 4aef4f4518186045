// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a config file whenever it changes on disk.
type Watcher struct {
	fs     *fsnotify.Watcher
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Watch starts watching path. onChange receives each config that loads and
// validates; onError receives load and watcher failures. Both run on the
// watcher goroutine.
//
// The parent directory is watched rather than the file so that editors that
// save by rename are still seen.
func Watch(ctx context.Context, path string, onChange func(*Config), onError func(error)) (*Watcher, error) {
	if onError == nil {
		onError = func(error) {}
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	ctx, cancel := context.WithCancel(ctx)
	w := &Watcher{fs: fw, cancel: cancel}
	target := filepath.Clean(path)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				cfg, err := Load(path)
				if err != nil {
					onError(fmt.Errorf("reload %s: %w", path, err))
					continue
				}
				onChange(cfg)
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				onError(err)
			}
		}
	}()
	return w, nil
}

// Close stops the watcher and waits for its goroutine.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.fs.Close()
	w.wg.Wait()
	return err
}
