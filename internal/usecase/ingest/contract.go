// Package ingest loads the corpus, embeds its chunks, and replaces the
// indexed entries document by document.
package ingest

import (
	"context"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// loader is the consumer interface for the corpus reader (ISP).
type loader interface {
	Load(ctx context.Context) ([]domain.Document, error)
}

// chunker is the consumer interface for document splitting (ISP).
type chunker interface {
	Chunk(doc domain.Document) ([]domain.Chunk, error)
}

// index is the consumer interface for the chunk index (ISP).
type index interface {
	Replace(ctx context.Context, docID string, chunks []domain.Chunk) error
	Delete(ctx context.Context, docID string) error
}
