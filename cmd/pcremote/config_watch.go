package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// configReloadDebounce collapses the burst of events an editor produces on save.
const configReloadDebounce = 150 * time.Millisecond

// watchConfig reloads store whenever its file changes, until ctx is canceled.
// The directory is watched rather than the file so atomic renames are seen.
// onReload runs after each successful reload.
func watchConfig(ctx context.Context, store *ConfigStore, onReload func(Config), logger *slog.Logger) error {
	path, err := filepath.Abs(ExpandPath(store.Path()))
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}
	logger.Info("watching config", "path", path)

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			logger.Debug("config change detected", "op", ev.Op.String(), "file", ev.Name)
			if timer == nil {
				timer = time.NewTimer(configReloadDebounce)
			} else {
				timer.Reset(configReloadDebounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			if err := store.Reload(); err != nil {
				logger.Warn("failed to reload config, keeping previous", "error", err)
				continue
			}
			if onReload != nil {
				onReload(store.Snapshot())
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", "error", err)
		}
	}
}
