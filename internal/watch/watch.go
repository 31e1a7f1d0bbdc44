// Package watch drives live re-comparison: it observes model files
// through fsnotify and invokes a callback after changes settle.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// modelFile reports whether path looks like a robot description file.
func modelFile(path string) bool {
	switch ext := strings.ToLower(filepath.Ext(path)); {
	case ext == ".urdf" || ext == ".sdf" || ext == ".xml" || ext == ".mjcf":
		return true
	case strings.HasPrefix(ext, ".usd"):
		return true
	}
	return false
}

// Files watches the given files until ctx is cancelled and calls
// onChange after writes settle for the debounce interval. The parent
// directories are watched rather than the files themselves, since
// editors commonly replace files by rename.
func Files(ctx context.Context, paths []string, debounce time.Duration, logger *slog.Logger, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	watched := make(map[string]bool, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		watched[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			return err
		}
	}

	logger.Info("watcher: started", slog.Int("files", len(watched)))
	return run(ctx, w, debounce, logger, func(path string) bool {
		abs, err := filepath.Abs(path)
		return err == nil && watched[abs]
	}, func(string) { onChange() })
}

// Dir recursively watches a directory of model files until ctx is
// cancelled, calling onChange with the changed path after each settled
// change. Directories created at runtime are added to the watch list.
func Dir(ctx context.Context, root string, debounce time.Duration, logger *slog.Logger, onChange func(path string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))
	return run(ctx, w, debounce, logger, modelFile, onChange)
}

// run is the shared event loop: relevant create/write/rename events
// reset a debounce timer, and the callback fires once the timer expires.
func run(ctx context.Context, w *fsnotify.Watcher, debounce time.Duration, logger *slog.Logger, relevant func(string) bool, onChange func(path string)) error {
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}

	var timer *time.Timer
	var timerCh <-chan time.Time
	var pending string

	schedule := func(path string) {
		pending = path
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerCh = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			logger.Debug("watcher: change settled", slog.String("path", pending))
			onChange(pending)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				// New directories join the watch list so nested model
				// files keep being observed.
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					continue
				}
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if !relevant(ev.Name) {
				continue
			}
			schedule(ev.Name)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
