package embcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/db"
	"github.com/kailas-cloud/ragdex/internal/domain"
)

// --- Mocks ---

type mockKV struct {
	data    map[string][]byte
	ttls    map[string]time.Duration
	getErr  error
	setErr  error
	setuses int
}

func newMockKV() *mockKV {
	return &mockKV{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (m *mockKV) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockKV) Set(_ context.Context, key string, value []byte) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.setuses++
	m.data[key] = value
	return nil
}

func (m *mockKV) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.setuses++
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

type mockEmbedder struct {
	vec        []float32
	err        error
	embedCalls int
	batchCalls int
	lastTexts  []string
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.embedCalls++
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec, TotalTokens: 3}, nil
}

func (m *mockEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.batchCalls++
	m.lastTexts = texts
	if m.err != nil {
		return domain.BatchEmbeddingResult{}, m.err
	}
	out := domain.BatchEmbeddingResult{TotalTokens: 3 * len(texts)}
	for range texts {
		out.Embeddings = append(out.Embeddings, m.vec)
	}
	return out, nil
}

// --- Tests ---

func TestEmbed_MissThenHit(t *testing.T) {
	kv := newMockKV()
	inner := &mockEmbedder{vec: []float32{0.1, 0.2}}
	c := New(inner, kv, "model-a", 0, nil, zap.NewNop())

	res1, err := c.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if inner.embedCalls != 1 {
		t.Fatalf("inner calls = %d, want 1", inner.embedCalls)
	}
	if res1.TotalTokens != 3 {
		t.Errorf("miss should report real token usage, got %d", res1.TotalTokens)
	}

	res2, err := c.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed (cached): %v", err)
	}
	if inner.embedCalls != 1 {
		t.Errorf("inner called again on cache hit")
	}
	if res2.TotalTokens != 0 {
		t.Errorf("hit should cost no tokens, got %d", res2.TotalTokens)
	}
	if len(res2.Embedding) != 2 || res2.Embedding[0] != 0.1 {
		t.Errorf("cached embedding = %v", res2.Embedding)
	}
}

func TestEmbed_ModelScopesCacheKey(t *testing.T) {
	kv := newMockKV()
	a := New(&mockEmbedder{vec: []float32{1}}, kv, "model-a", 0, nil, zap.NewNop())
	innerB := &mockEmbedder{vec: []float32{2}}
	b := New(innerB, kv, "model-b", 0, nil, zap.NewNop())

	if _, err := a.Embed(context.Background(), "same text"); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	res, err := b.Embed(context.Background(), "same text")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if innerB.embedCalls != 1 {
		t.Error("model-b must not hit model-a's cache entry")
	}
	if res.Embedding[0] != 2 {
		t.Errorf("got %v, want model-b's vector", res.Embedding)
	}
}

func TestEmbed_UsesTTLWhenConfigured(t *testing.T) {
	kv := newMockKV()
	c := New(&mockEmbedder{vec: []float32{1}}, kv, "m", time.Hour, nil, zap.NewNop())

	if _, err := c.Embed(context.Background(), "x"); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	for _, ttl := range kv.ttls {
		if ttl != time.Hour {
			t.Errorf("ttl = %v, want 1h", ttl)
		}
	}
	if len(kv.ttls) != 1 {
		t.Error("expected SetWithTTL to be used")
	}
}

func TestEmbed_InnerErrorPropagates(t *testing.T) {
	sentinel := errors.New("provider down")
	c := New(&mockEmbedder{err: sentinel}, newMockKV(), "m", 0, nil, zap.NewNop())

	if _, err := c.Embed(context.Background(), "x"); !errors.Is(err, sentinel) {
		t.Errorf("expected wrapped provider error, got %v", err)
	}
}

func TestEmbed_StoreFailureFallsThrough(t *testing.T) {
	kv := newMockKV()
	kv.getErr = errors.New("store flaky")
	inner := &mockEmbedder{vec: []float32{1}}
	c := New(inner, kv, "m", 0, nil, zap.NewNop())

	res, err := c.Embed(context.Background(), "x")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if inner.embedCalls != 1 || len(res.Embedding) != 1 {
		t.Error("cache failure must degrade to the inner embedder")
	}
}

func TestBatchEmbed_OnlyMissesGoToProvider(t *testing.T) {
	kv := newMockKV()
	inner := &mockEmbedder{vec: []float32{9}}
	c := New(inner, kv, "m", 0, nil, zap.NewNop())

	// Prime the cache with "b".
	if _, err := c.Embed(context.Background(), "b"); err != nil {
		t.Fatalf("prime: %v", err)
	}
	inner.embedCalls = 0

	res, err := c.BatchEmbed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("BatchEmbed: %v", err)
	}
	if len(res.Embeddings) != 3 {
		t.Fatalf("embeddings = %d, want 3", len(res.Embeddings))
	}
	if inner.batchCalls != 1 {
		t.Fatalf("batch calls = %d", inner.batchCalls)
	}
	if len(inner.lastTexts) != 2 || inner.lastTexts[0] != "a" || inner.lastTexts[1] != "c" {
		t.Errorf("provider saw %v, want only the misses", inner.lastTexts)
	}
	for i, e := range res.Embeddings {
		if len(e) == 0 {
			t.Errorf("embedding %d is empty", i)
		}
	}
}

func TestBatchEmbed_AllHitsSkipProvider(t *testing.T) {
	kv := newMockKV()
	inner := &mockEmbedder{vec: []float32{1}}
	c := New(inner, kv, "m", 0, nil, zap.NewNop())

	for _, text := range []string{"a", "b"} {
		if _, err := c.Embed(context.Background(), text); err != nil {
			t.Fatalf("prime: %v", err)
		}
	}
	inner.embedCalls, inner.batchCalls = 0, 0

	res, err := c.BatchEmbed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("BatchEmbed: %v", err)
	}
	if inner.batchCalls != 0 || inner.embedCalls != 0 {
		t.Error("provider called despite full cache hit")
	}
	if res.TotalTokens != 0 {
		t.Errorf("full hit should cost no tokens, got %d", res.TotalTokens)
	}
}

func TestVectorRoundTrip(t *testing.T) {
	in := []float32{0.25, -1.5, 3.14159, 0}
	out, err := bytesToVector(vectorToCacheBytes(in))
	if err != nil {
		t.Fatalf("bytesToVector: %v", err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("vector[%d] = %v, want %v", i, out[i], in[i])
		}
	}
}

func TestBytesToVector_BadLength(t *testing.T) {
	if _, err := bytesToVector([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated data")
	}
}
