// Package retrieval turns a natural-language query into the most relevant
// indexed chunks.
package retrieval

import (
	"context"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// index is the consumer interface for the chunk index (ISP).
type index interface {
	Search(ctx context.Context, vector []float32, k int) ([]domain.ScoredChunk, error)
}
