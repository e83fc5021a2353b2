package snapshot

import (
	"context"
	"encoding/json"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// EventCallback is called after a watcher-observed descriptor change.
// kind is one of "updated", "corrupt", "deleted".
type EventCallback func(kind string, path string)

// Watch starts an fsnotify watcher on the snapshot-area root and
// re-validates descriptor files edited outside the engine until ctx is
// cancelled. The engine's own descriptor writes are recognized and not
// reported; only out-of-band edits reach the callback. The engine never
// heals such edits itself: corruption is reported and left for an
// explicit rebuild.
//
// New subject directories created at runtime are automatically added to
// the watch list.
func (e *Engine) Watch(ctx context.Context, root string, cb EventCallback) error {
	logger := e.logger
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			// --- Handle new directories: add to watcher ---
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					continue
				}
			}

			// Ignore the engine's own in-flight temp files.
			if strings.HasPrefix(filepath.Base(absPath), ".casevault-tmp-") {
				continue
			}
			// Only descriptor files are of interest.
			if filepath.Base(absPath) != DescriptorFilename {
				continue
			}

			rel, relErr := filepath.Rel(root, absPath)
			if relErr != nil {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				if e.consumeSelfWrite(rel, "updated") {
					logger.Debug("watcher: own write, not reported", slog.String("path", rel))
					continue
				}
				data, readErr := e.area.Read(rel)
				if readErr != nil {
					logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", readErr.Error()))
					continue
				}
				var d Descriptor
				if parseErr := json.Unmarshal(data, &d); parseErr != nil {
					logger.Error("watcher: descriptor corrupt on disk",
						slog.String("path", rel),
						slog.String("error", parseErr.Error()))
					if cb != nil {
						cb("corrupt", rel)
					}
					continue
				}
				if valErr := d.Validate(); valErr != nil {
					logger.Warn("watcher: descriptor shape invalid",
						slog.String("path", rel),
						slog.String("error", valErr.Error()))
					if cb != nil {
						cb("corrupt", rel)
					}
					continue
				}
				logger.Debug("watcher: descriptor valid", slog.String("path", rel))
				if cb != nil {
					cb("updated", rel)
				}

			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				if e.consumeSelfWrite(rel, "deleted") {
					logger.Debug("watcher: own delete, not reported", slog.String("path", rel))
					continue
				}
				logger.Debug("watcher: descriptor removed", slog.String("path", rel))
				if cb != nil {
					cb("deleted", rel)
				}
			}

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
