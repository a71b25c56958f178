package lab

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/ksyq12/labcmdr/internal/logger"
)

// Watch calls onChange with a freshly loaded config each time the lab config
// file is replaced or written, until ctx is done. The marker directory is
// watched rather than the file because saves rename a new file into place.
func Watch(ctx context.Context, root string, onChange func(*Config, error)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(MarkerPath(root)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", MarkerPath(root), err)
	}

	target := ConfigPath(root)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Create|fsnotify.Write) {
				continue
			}
			logger.Debug("Lab config changed: %s", ev)
			onChange(Load(root))
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			onChange(nil, err)
		}
	}
}
