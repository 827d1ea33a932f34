// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"context"
	"crypto/sha1"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kortschak/onload/internal/slogext"
)

// FileDebounce is the default duration we wait after an artifact write
// event for the contents to have stabilised before loading, to work
// around toolchains writing output incrementally.
const FileDebounce = 10 * time.Millisecond

// Change is an artifact change identified by Watch.
type Change struct {
	Event fsnotify.Event
	Path  string
	Err   error
}

// artifactExt is the set of loadable artifact extensions.
var artifactExt = map[string]bool{
	".so":    true,
	".dylib": true,
	".dll":   true,
}

// Watcher collects raw fsnotify.Events for a module artifact directory
// and aggregates and filters them into semantically meaningful artifact
// changes.
type Watcher struct {
	dir      string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	changes  chan<- Change
	sums     map[string][sha1.Size]byte
	log      *slog.Logger
}

// NewWatcher returns an fsnotify.Watcher for the provided directory,
// sending change events on the changes channel when Watch is running.
// The debounce parameter specifies how long to wait after an
// fsnotify.Event before reading the artifact; if it is less than zero,
// FileDebounce is used.
func NewWatcher(dir string, changes chan<- Change, debounce time.Duration, log *slog.Logger) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	err = watcher.Add(dir)
	if err != nil {
		watcher.Close()
		return nil, err
	}
	if debounce < 0 {
		debounce = FileDebounce
	}
	w := &Watcher{
		dir:      dir,
		debounce: debounce,
		watcher:  watcher,
		changes:  changes,
		sums:     make(map[string][sha1.Size]byte),
		log:      log.With(slog.String("component", "watcher"), slog.String("dir", dir)),
	}
	return w, nil
}

// scan reads the watcher's directory, sending create events for all
// artifacts found.
func (w *Watcher) scan(ctx context.Context) {
	de, err := os.ReadDir(w.dir)
	if err != nil {
		w.changes <- Change{Err: err}
		return
	}
	for _, e := range de {
		if !artifactExt[filepath.Ext(e.Name())] || e.IsDir() {
			continue
		}
		path := filepath.Join(w.dir, e.Name())
		if !w.changed(ctx, path) {
			continue
		}
		w.changes <- Change{
			Event: fsnotify.Event{Name: path, Op: fsnotify.Create},
			Path:  path,
		}
	}
}

// Watch runs the watch loop until ctx is cancelled, sending debounced
// artifact changes on the watcher's changes channel. An initial scan of
// the directory sends a create change for each artifact already present.
func (w *Watcher) Watch(ctx context.Context) {
	defer w.watcher.Close()
	w.scan(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.LogAttrs(ctx, slog.LevelDebug, "watcher closed")
			return
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.changes <- Change{Err: err}
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !artifactExt[filepath.Ext(ev.Name)] {
				continue
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			w.log.LogAttrs(ctx, slog.LevelDebug, "artifact event", slog.String("name", ev.Name), slog.Any("op", slogext.Stringer{Stringer: ev.Op}))
			time.Sleep(w.debounce)
			if !w.changed(ctx, ev.Name) {
				continue
			}
			w.changes <- Change{Event: ev, Path: ev.Name}
		}
	}
}

// changed reports whether the contents of the artifact at path differ
// from the last contents seen at that path.
func (w *Watcher) changed(ctx context.Context, path string) bool {
	b, err := os.ReadFile(path)
	if err != nil {
		w.log.LogAttrs(ctx, slog.LevelError, "read artifact", slog.Any("error", err))
		return false
	}
	sum := sha1.Sum(b)
	if sum == w.sums[path] {
		return false
	}
	w.sums[path] = sum
	return true
}
