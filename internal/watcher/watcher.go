// Package watcher re-ingests corpus files as they change on disk.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	domainingest "github.com/kailas-cloud/ragdex/internal/domain/ingest"
	"github.com/kailas-cloud/ragdex/internal/loader"
)

const defaultDebounce = 500 * time.Millisecond

// ingester is the consumer interface for document ingestion (ISP).
type ingester interface {
	IngestDocument(ctx context.Context, doc domain.Document) domainingest.Result
	Remove(ctx context.Context, docID string) error
}

// eligible reports whether a path is a corpus document.
type eligible interface {
	Eligible(path string) bool
}

// Watcher keeps the index in sync with the corpus directory. Filesystem
// events are debounced per path: editors fire bursts of writes for a single
// save and only the last one matters.
type Watcher struct {
	dir       string
	recursive bool
	ingest    ingester
	eligible  eligible
	debounce  time.Duration
	logger    *zap.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// New creates a corpus watcher rooted at dir.
func New(dir string, recursive bool, ing ingester, el eligible, logger *zap.Logger) *Watcher {
	return &Watcher{
		dir:       dir,
		recursive: recursive,
		ingest:    ing,
		eligible:  el,
		debounce:  defaultDebounce,
		logger:    logger,
		pending:   make(map[string]*time.Timer),
	}
}

// WithDebounce overrides the event debounce window.
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	if d > 0 {
		w.debounce = d
	}
	return w
}

// Run watches the corpus directory until the context is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := w.addDirs(fw); err != nil {
		return err
	}

	w.logger.Info("Watching corpus directory",
		zap.String("dir", w.dir),
		zap.Bool("recursive", w.recursive),
	)

	for {
		select {
		case <-ctx.Done():
			w.cancelPending()
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, fw, event)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) addDirs(fw *fsnotify.Watcher) error {
	if !w.recursive {
		if err := fw.Add(w.dir); err != nil {
			return fmt.Errorf("watch %s: %w", w.dir, err)
		}
		return nil
	}

	return filepath.WalkDir(w.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("Skipping unwatchable entry", zap.String("path", path), zap.Error(err))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) handleEvent(ctx context.Context, fw *fsnotify.Watcher, event fsnotify.Event) {
	// New subdirectory: start watching it too.
	if event.Op.Has(fsnotify.Create) && w.recursive {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := fw.Add(event.Name); err != nil {
				w.logger.Warn("Failed to watch new directory", zap.String("path", event.Name), zap.Error(err))
			}
			return
		}
	}

	if !w.eligible.Eligible(event.Name) {
		return
	}

	switch {
	case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
		w.schedule(event.Name, func() { w.remove(ctx, event.Name) })
	case event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write):
		w.schedule(event.Name, func() { w.reingest(ctx, event.Name) })
	}
}

// schedule arms (or re-arms) the debounce timer for a path.
func (w *Watcher) schedule(path string, fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		fn()
	})
}

func (w *Watcher) cancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) reingest(ctx context.Context, path string) {
	// The file may be gone already (write followed by remove), or may turn
	// out to be binary; both are skipped the same way a batch load would.
	doc, err := loader.ReadDocument(w.dir, path)
	if err != nil {
		w.logger.Warn("Skipping changed file", zap.String("path", path), zap.Error(err))
		return
	}

	res := w.ingest.IngestDocument(ctx, doc)
	if res.Err() != nil {
		w.logger.Error("Failed to re-ingest changed file",
			zap.String("doc_id", res.DocID()),
			zap.Error(res.Err()),
		)
		return
	}

	w.logger.Info("Re-ingested changed file",
		zap.String("doc_id", res.DocID()),
		zap.Int("chunks", res.Chunks()),
	)
}

func (w *Watcher) remove(ctx context.Context, path string) {
	docID := loader.DocumentID(w.dir, path)
	if err := w.ingest.Remove(ctx, docID); err != nil {
		w.logger.Error("Failed to remove deleted file from index",
			zap.String("doc_id", docID),
			zap.Error(err),
		)
		return
	}
	w.logger.Info("Removed deleted file from index", zap.String("doc_id", docID))
}
