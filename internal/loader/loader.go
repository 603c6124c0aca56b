// Package loader reads the document corpus from disk and splits it into
// retrieval-sized chunks.
package loader

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// defaultExtensions are the file types treated as corpus documents.
var defaultExtensions = []string{".md", ".markdown", ".txt"}

var idSanitizer = regexp.MustCompile(`[^a-zA-Z0-9 _./-]+`)

// Loader reads eligible files under a corpus directory.
type Loader struct {
	dir       string
	recursive bool
	exts      map[string]struct{}
	logger    *zap.Logger
}

// New creates a corpus loader rooted at dir.
func New(dir string, recursive bool, logger *zap.Logger) *Loader {
	exts := make(map[string]struct{}, len(defaultExtensions))
	for _, e := range defaultExtensions {
		exts[e] = struct{}{}
	}
	return &Loader{dir: dir, recursive: recursive, exts: exts, logger: logger}
}

// Load reads all eligible documents under the corpus directory.
// A missing or unreadable directory fails the whole run; a single bad file
// is logged and skipped so the rest of the batch survives.
func (l *Loader) Load(ctx context.Context) ([]domain.Document, error) {
	info, err := os.Stat(l.dir)
	if err != nil {
		return nil, fmt.Errorf("stat corpus dir %s: %w: %w", l.dir, domain.ErrSourceUnavailable, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("corpus path %s is not a directory: %w", l.dir, domain.ErrSourceUnavailable)
	}

	paths, err := l.listFiles()
	if err != nil {
		return nil, fmt.Errorf("list corpus dir %s: %w: %w", l.dir, domain.ErrSourceUnavailable, err)
	}

	docs := make([]domain.Document, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("load documents: %w", err)
		}

		doc, ok := l.loadFile(path)
		if !ok {
			continue
		}
		docs = append(docs, doc)
	}

	return docs, nil
}

// DocumentID derives the stable document identifier from a file path: the
// slash-separated path relative to the corpus root, sanitized.
func DocumentID(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	id := filepath.ToSlash(rel)
	id = idSanitizer.ReplaceAllString(id, "_")
	return strings.TrimLeft(id, "./")
}

// Eligible reports whether the file extension is a corpus document type.
func (l *Loader) Eligible(path string) bool {
	_, ok := l.exts[strings.ToLower(filepath.Ext(path))]
	return ok
}

func (l *Loader) listFiles() ([]string, error) {
	if !l.recursive {
		entries, err := os.ReadDir(l.dir)
		if err != nil {
			return nil, err
		}
		var paths []string
		for _, e := range entries {
			if e.IsDir() || !l.Eligible(e.Name()) {
				continue
			}
			paths = append(paths, filepath.Join(l.dir, e.Name()))
		}
		return paths, nil
	}

	var paths []string
	err := filepath.WalkDir(l.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subdirectory: skip it, keep the rest of the walk.
			l.logger.Warn("Skipping unreadable corpus entry", zap.String("path", path), zap.Error(err))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !l.Eligible(path) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// loadFile reads one file into a Document. Returns ok=false when the file
// should be skipped (unreadable, binary, empty).
func (l *Loader) loadFile(path string) (domain.Document, bool) {
	doc, err := ReadDocument(l.dir, path)
	if err != nil {
		l.logger.Warn("Skipping file", zap.String("path", path), zap.Error(err))
		return domain.Document{}, false
	}
	return doc, true
}

// ReadDocument reads a single file into a Document with the same binary and
// validity checks a batch load applies. root anchors the document ID.
func ReadDocument(root, path string) (domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("read file: %w", err)
	}

	if bytes.IndexByte(data, 0) >= 0 || !utf8.Valid(data) {
		return domain.Document{}, fmt.Errorf("binary content in %s", path)
	}

	return domain.NewDocument(DocumentID(root, path), path, string(data))
}
