package parserengine

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow mirrors the teacher's CodeWatcher: a burst of writes
// to the same file within this window collapses into one FileChange.
const debounceWindow = 300 * time.Millisecond

// tickerInterval is how often the debounce queue is flushed.
const tickerInterval = 500 * time.Millisecond

// Watcher recursively watches a workspace root with fsnotify and
// emits debounced FileChange values on Changes(), adapted from the
// teacher's CodeWatcher to be Indexer-agnostic: it knows nothing about
// storage, only about producing FileChange events for whoever reads
// the channel (cmd/codegraphrag's watchLoop, which applies each change
// through agents.ApplyChange).
type Watcher struct {
	rootPath string
	scanner  *Scanner
	watcher  *fsnotify.Watcher
	changes  chan FileChange
	cancel   context.CancelFunc
	once     sync.Once
}

// StartWatcher begins watching rootPath for changes, returning
// immediately after seeding the fsnotify watch tree.
func StartWatcher(parentCtx context.Context, rootPath string, scanner *Scanner) (*Watcher, error) {
	info, err := os.Stat(rootPath)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, os.ErrInvalid
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(parentCtx)
	w := &Watcher{
		rootPath: rootPath,
		scanner:  scanner,
		watcher:  fw,
		changes:  make(chan FileChange, 256),
		cancel:   cancel,
	}

	if err := fw.Add(rootPath); err != nil {
		fw.Close()
		cancel()
		return nil, err
	}

	err = filepath.WalkDir(rootPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && path != rootPath {
			if scanner.ShouldExclude(path, d.Name(), true) {
				return filepath.SkipDir
			}
			if err := fw.Add(path); err != nil {
				slog.Warn("failed to watch subdirectory", "path", path, "error", err)
			}
		}
		return nil
	})
	if err != nil {
		fw.Close()
		cancel()
		return nil, err
	}

	go w.run(ctx)

	slog.Info("parser engine watcher started", "path", rootPath)
	return w, nil
}

// Changes returns the channel FileChange events are delivered on.
func (w *Watcher) Changes() <-chan FileChange {
	return w.changes
}

// Stop halts the watcher; idempotent.
func (w *Watcher) Stop() {
	if w == nil {
		return
	}
	w.once.Do(func() {
		w.cancel()
		_ = w.watcher.Close()
		close(w.changes)
		slog.Info("parser engine watcher stopped", "path", w.rootPath)
	})
}

func (w *Watcher) run(ctx context.Context) {
	debounce := make(map[string]time.Time)
	ticker := time.NewTicker(tickerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case evt, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if evt.Op&fsnotify.Create == fsnotify.Create {
				info, statErr := os.Stat(evt.Name)
				if statErr == nil && info.IsDir() {
					if !w.scanner.ShouldExclude(evt.Name, filepath.Base(evt.Name), true) {
						if err := w.watcher.Add(evt.Name); err != nil {
							slog.Warn("failed to add new directory to watcher", "dir", evt.Name, "error", err)
						}
					}
					continue
				}
			}

			if evt.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				w.emit(FileChange{
					Kind:     FileDeleted,
					FilePath: w.relativePath(evt.Name),
				})
				continue
			}

			if evt.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				debounce[evt.Name] = time.Now()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("parser engine watcher error", "error", err)

		case now := <-ticker.C:
			for file, t := range debounce {
				if now.Sub(t) > debounceWindow {
					w.processFile(file)
					delete(debounce, file)
				}
			}
		}
	}
}

func (w *Watcher) processFile(fullPath string) {
	rel := w.relativePath(fullPath)

	content, err := os.ReadFile(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			w.emit(FileChange{Kind: FileDeleted, FilePath: rel})
			return
		}
		slog.Warn("failed to read changed file", "file", rel, "error", err)
		return
	}

	w.emit(FileChange{
		Kind:     FileModified,
		FilePath: rel,
		Content:  content,
	})
}

func (w *Watcher) emit(change FileChange) {
	select {
	case w.changes <- change:
	default:
		slog.Warn("parser engine watcher backlog full, dropping change", "file", change.FilePath)
	}
}

func (w *Watcher) relativePath(full string) string {
	rel, err := filepath.Rel(w.rootPath, full)
	if err != nil {
		return filepath.Base(full)
	}
	return filepath.ToSlash(rel)
}
