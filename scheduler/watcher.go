// Copyright (c) 2024, The Kubeka Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scheduler

import (
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches a daemon's discovered search paths for *.kubeka
// changes and signals Reload, an optional enrichment over the original
// daemon (which only ever reads its config once at startup): daemon
// mode can rebuild periodic trees without a restart when a write,
// create, or remove lands on a *.kubeka file.
type Watcher struct {
	fsw    *fsnotify.Watcher
	Reload chan string
}

// NewWatcher starts watching each of paths and returns a Watcher whose
// Reload channel receives the changed file's path on every relevant
// event. Only the listed directories themselves are watched: changes in
// their subdirectories are not reported. Callers must call Close when
// done.
func NewWatcher(paths []string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, p := range paths {
		if err := fsw.Add(p); err != nil {
			fsw.Close()
			return nil, err
		}
	}

	w := &Watcher{fsw: fsw, Reload: make(chan string, 16)}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				close(w.Reload)
				return
			}
			if !strings.HasSuffix(ev.Name, ".kubeka") {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) == 0 {
				continue
			}
			w.Reload <- ev.Name
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

// Close stops the underlying filesystem watch.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
