// Package watch rebuilds a module whenever its sources change.
//
// The watcher only produces new binaries. It never loads them: a module
// already opened in a process stays as it is until that process exits.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/vk/dynmod/internal/build"
	"github.com/vk/dynmod/internal/config"
	"github.com/vk/dynmod/internal/ctxlog"
)

// DefaultDebounce is how long the sources must stay quiet before a rebuild.
const DefaultDebounce = 250 * time.Millisecond

// Builder produces a module binary.
type Builder interface {
	Build(ctx context.Context, module string, s config.Settings) (string, error)
}

// SourceLocator finds a module's sources and says which directories to
// leave alone. *build.Trigger implements it.
type SourceLocator interface {
	SourceDir(ctx context.Context, module string, s config.Settings) (string, error)
	Ignore() []string
}

// Watcher drives rebuilds from filesystem events.
type Watcher struct {
	builder  Builder
	sources  SourceLocator
	debounce time.Duration
	started  func(dir string)
	built    func(path string, err error)
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithStarted registers a callback run once the source tree is watched.
func WithStarted(fn func(dir string)) Option {
	return func(w *Watcher) { w.started = fn }
}

// WithBuildHook registers a callback run after every rebuild.
func WithBuildHook(fn func(path string, err error)) Option {
	return func(w *Watcher) { w.built = fn }
}

// New creates a Watcher.
func New(b Builder, sources SourceLocator, opts ...Option) *Watcher {
	w := &Watcher{builder: b, sources: sources, debounce: DefaultDebounce}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches module's source tree and rebuilds after each burst of
// changes until ctx is done. Failed builds are logged and watching goes on.
func (w *Watcher) Run(ctx context.Context, module string, s config.Settings) error {
	ctx, logger := ctxlog.WithModule(ctx, module)

	dir, err := w.sources.SourceDir(ctx, module, s)
	if err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fsw.Close()

	if err := w.addTree(fsw, dir, dir); err != nil {
		return err
	}
	logger.Info("👀 Watching module sources.", "dir", dir, "debounce", w.debounce)
	if w.started != nil {
		w.started(dir)
	}

	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !w.relevant(dir, event) {
				continue
			}
			logger.Debug("Source changed.", "path", event.Name, "op", event.Op.String())
			if event.Has(fsnotify.Create) {
				if err := w.addTree(fsw, dir, event.Name); err != nil {
					logger.Warn("Failed to watch new directory.", "path", event.Name, "error", err)
				}
			}
			timer.Reset(w.debounce)

		case <-timer.C:
			path, err := w.builder.Build(ctx, module, s)
			if err != nil {
				logger.Error("Rebuild failed.", "error", err)
			} else {
				logger.Info("Rebuilt module.", "path", path)
			}
			if w.built != nil {
				w.built(path, err)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			logger.Error("fsnotify error", "error", err)
		}
	}
}

// relevant drops attribute-only changes and anything under an ignored
// directory.
func (w *Watcher) relevant(root string, event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	rel, err := filepath.Rel(root, event.Name)
	if err != nil {
		return false
	}
	return !build.Ignored(filepath.ToSlash(rel), w.sources.Ignore())
}

// addTree watches start and every directory below it that is not ignored.
// A start that is not a directory is skipped.
func (w *Watcher) addTree(fsw *fsnotify.Watcher, root, start string) error {
	return filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Vanished between the event and the walk.
			if path == start {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			if build.Ignored(filepath.ToSlash(rel), w.sources.Ignore()) {
				return filepath.SkipDir
			}
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}
