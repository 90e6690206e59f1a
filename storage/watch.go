package storage

import (
	"context"
	"fmt"

	"WaveDeck/logger"

	"github.com/fsnotify/fsnotify"
)

// WatchRemovals calls onRemove with the storage key of every file that disappears
// from the store's directory (deleted or moved away by something other than the
// server). It blocks until ctx is cancelled.
func (s *LocalStore) WatchRemovals(ctx context.Context, onRemove func(key string)) error {
	if s.dir == "" {
		return fmt.Errorf("store has no OS directory to watch")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", s.dir, err)
	}
	logger.Info("watching upload directory", logger.String("dir", s.dir))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			key, ok := s.KeyFromPath(event.Name)
			if !ok {
				continue
			}
			// A rename inside the directory still leaves the old key dangling.
			onRemove(key)
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("upload directory watcher error", logger.ErrorField(werr))
		}
	}
}
