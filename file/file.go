// Package file provides a reflux.Watcher for a file on disk using fsnotify.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/zoobzio/reflux/internal/relay"
)

// Watcher watches a file and emits its contents whenever it changes.
//
// The containing directory is watched rather than the file itself, so
// editors and deploy tools that replace the file with a rename keep being
// observed.
type Watcher struct {
	path string
}

// New creates a Watcher for the file at path.
func New(path string) *Watcher {
	return &Watcher{path: path}
}

// Watch begins watching the file and returns a channel that emits the file
// contents on every write, create or rename onto the path. The current
// contents are emitted immediately. The file must exist.
func (w *Watcher) Watch(ctx context.Context) (<-chan []byte, error) {
	path, err := filepath.Abs(w.path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", w.path, err)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to watch file %s: %w", w.path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch directory of %s: %w", w.path, err)
	}

	return relay.Go(ctx, func(emit relay.Emit) {
		defer watcher.Close()

		send := func() bool {
			data, err := os.ReadFile(path)
			if err != nil {
				// Mid-replace; the following create event delivers the file.
				return true
			}
			return emit(data)
		}

		if !send() {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != path {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if !send() {
					return
				}

			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}), nil
}
