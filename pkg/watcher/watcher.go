// Package watcher keeps the archive catalog consistent with out-of-band
// filesystem changes to the slots directory: archives deleted or renamed
// behind the engine's back are dropped from the catalog, and archives that
// appear (copied in from elsewhere) are indexed.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/marmos91/savepoint/internal/logger"
	"github.com/marmos91/savepoint/pkg/catalog"
)

// Watcher mirrors slot directory changes into the catalog.
type Watcher struct {
	dir       string
	extension string
	catalog   *catalog.Catalog

	fw *fsnotify.Watcher
	wg sync.WaitGroup

	mu      sync.Mutex
	started bool
}

// New creates a watcher for archives with the given filename extension
// under dir.
func New(dir, extension string, cat *catalog.Catalog) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating slots watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}
	return &Watcher{
		dir:       dir,
		extension: extension,
		catalog:   cat,
		fw:        fw,
	}, nil
}

// Start begins mirroring events until ctx is cancelled or Close is called.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()

	logger.Info("Watching slots directory", logger.Path(w.dir))

	w.wg.Add(1)
	go w.loop(ctx)
}

// Close stops the watcher and waits for the event loop to exit.
func (w *Watcher) Close() error {
	err := w.fw.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			w.handle(ctx, event)

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			logger.Warn("Slots watcher error", logger.Err(err))
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	if !w.isArchive(event.Name) {
		return
	}

	switch {
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		if err := w.catalog.Delete(ctx, event.Name); err != nil {
			logger.Warn("Failed to drop catalog record",
				logger.Path(event.Name), logger.Err(err))
			return
		}
		logger.Info("Archive removed, catalog record dropped", logger.Path(event.Name))

	case event.Op&fsnotify.Create != 0:
		// A create from the engine's own atomic rename, or an archive copied
		// in from elsewhere. Indexing is idempotent either way.
		if _, err := w.catalog.Index(ctx, event.Name); err != nil {
			logger.Debug("Skipping unindexable file",
				logger.Path(event.Name), logger.Err(err))
			return
		}
		logger.Info("Archive appeared, indexed", logger.Path(event.Name))
	}
}

// isArchive filters out temp files and unrelated names. Backup archives are
// tracked like any other.
func (w *Watcher) isArchive(path string) bool {
	name := filepath.Base(path)
	if strings.HasSuffix(name, ".tmp") {
		return false
	}
	return strings.HasSuffix(name, w.extension) ||
		strings.HasSuffix(name, w.extension+".backup")
}
