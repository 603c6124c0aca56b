package retrieval

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// Service embeds a query and searches the chunk index.
type Service struct {
	embedder domain.Embedder
	index    index
	topK     int
	logger   *zap.Logger
}

// New creates a retrieval service. topK is the default result count used
// when the caller passes k <= 0.
func New(embedder domain.Embedder, idx index, topK int, logger *zap.Logger) *Service {
	return &Service{
		embedder: embedder,
		index:    idx,
		topK:     topK,
		logger:   logger,
	}
}

// Retrieve returns up to k chunks most similar to the query, best first.
// An empty index yields an empty slice, not an error.
func (s *Service) Retrieve(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is blank: %w", domain.ErrInvalidArgument)
	}
	if k <= 0 {
		k = s.topK
	}

	emb, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	chunks, err := s.index.Search(ctx, emb.Embedding, k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	s.logger.Debug("Retrieved chunks",
		zap.Int("requested", k),
		zap.Int("returned", len(chunks)),
	)

	return chunks, nil
}
