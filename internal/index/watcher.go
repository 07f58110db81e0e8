package index

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeCallback is called once per burst of changes to the watched document.
type ChangeCallback func(path string)

const settleDelay = 200 * time.Millisecond

// WatchSource watches the schedule document at path until ctx is cancelled
// and calls cb after it was written, created or replaced. The schedule
// itself is not reloaded; consumers are only told the loaded copy is stale.
//
// The parent directory is watched rather than the file, because editors and
// downloaders usually replace the file by renaming a temporary over it.
// Bursts of events are coalesced with a short timer.
func WatchSource(ctx context.Context, path string, logger *slog.Logger, cb ChangeCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("path", abs))

	var settle *time.Timer
	var settleCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if settle != nil {
				settle.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-settleCh:
			settleCh = nil
			logger.Warn("watcher: schedule changed on disk, restart to reload", slog.String("path", abs))
			if cb != nil {
				cb(abs)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			logger.Debug("watcher: event", slog.String("op", ev.Op.String()))
			if settle == nil {
				settle = time.NewTimer(settleDelay)
			} else {
				settle.Reset(settleDelay)
			}
			settleCh = settle.C

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
