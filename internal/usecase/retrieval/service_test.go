package retrieval

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// --- Mocks ---

type mockEmbedder struct {
	vec    []float32
	err    error
	called bool
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.called = true
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec}, nil
}

type mockIndex struct {
	results []domain.ScoredChunk
	err     error
	lastVec []float32
	lastK   int
}

func (m *mockIndex) Search(_ context.Context, vector []float32, k int) ([]domain.ScoredChunk, error) {
	m.lastVec = vector
	m.lastK = k
	return m.results, m.err
}

func scored(docID string, ord int, score float64) domain.ScoredChunk {
	return domain.ScoredChunk{
		Chunk: domain.ReconstructChunk(docID, ord, "", "text", nil),
		Score: score,
	}
}

// --- Tests ---

func TestRetrieve(t *testing.T) {
	embed := &mockEmbedder{vec: []float32{0.1, 0.2}}
	idx := &mockIndex{results: []domain.ScoredChunk{scored("a.md", 0, 0.9)}}
	svc := New(embed, idx, 5, zap.NewNop())

	results, err := svc.Retrieve(context.Background(), "what is the leave policy?", 3)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if !embed.called {
		t.Error("query was not embedded")
	}
	if idx.lastK != 3 {
		t.Errorf("k = %d, want 3", idx.lastK)
	}
	if len(idx.lastVec) != 2 {
		t.Error("index did not receive the query vector")
	}
}

func TestRetrieve_DefaultTopK(t *testing.T) {
	idx := &mockIndex{}
	svc := New(&mockEmbedder{vec: []float32{1}}, idx, 5, zap.NewNop())

	if _, err := svc.Retrieve(context.Background(), "q", 0); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if idx.lastK != 5 {
		t.Errorf("k = %d, want default 5", idx.lastK)
	}
}

func TestRetrieve_BlankQuery(t *testing.T) {
	svc := New(&mockEmbedder{}, &mockIndex{}, 5, zap.NewNop())
	_, err := svc.Retrieve(context.Background(), "   ", 3)
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestRetrieve_EmbedderError(t *testing.T) {
	svc := New(&mockEmbedder{err: domain.ErrEmbeddingProviderError}, &mockIndex{}, 5, zap.NewNop())
	_, err := svc.Retrieve(context.Background(), "q", 3)
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Errorf("expected embedding error, got %v", err)
	}
}

func TestRetrieve_EmptyIndex(t *testing.T) {
	svc := New(&mockEmbedder{vec: []float32{1}}, &mockIndex{results: nil}, 5, zap.NewNop())
	results, err := svc.Retrieve(context.Background(), "q", 3)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

// The same query against the same index state yields the same chunks in the
// same order.
func TestRetrieve_Deterministic(t *testing.T) {
	idx := &mockIndex{results: []domain.ScoredChunk{
		scored("a.md", 1, 0.9),
		scored("a.md", 0, 0.8),
		scored("b.md", 0, 0.7),
	}}
	svc := New(&mockEmbedder{vec: []float32{1}}, idx, 5, zap.NewNop())

	first, err := svc.Retrieve(context.Background(), "q", 3)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	second, err := svc.Retrieve(context.Background(), "q", 3)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("result counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Chunk.ID() != second[i].Chunk.ID() {
			t.Errorf("result %d differs: %q vs %q", i, first[i].Chunk.ID(), second[i].Chunk.ID())
		}
	}
}
