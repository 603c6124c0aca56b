// Package index persists chunk embeddings and serves nearest-neighbor lookup.
package index

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/kailas-cloud/ragdex/internal/db"
	"github.com/kailas-cloud/ragdex/internal/domain"
)

const (
	keyPrefix = domain.KeyPrefix + "chunk:"
	indexName = domain.KeyPrefix + "chunks:idx"
)

// Hash field names of a stored chunk entry.
const (
	fieldDoc     = "__doc"
	fieldOrd     = "__ord"
	fieldHeading = "__heading"
	fieldText    = "__text"
	fieldVector  = "__vector"
)

// store is the consumer interface for the chunk index (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	DelMulti(ctx context.Context, keys []string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// HNSWConfig tunes the vector index build parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo implements the chunk index over a db.Store.
type Repo struct {
	store store
	dim   int
	hnsw  HNSWConfig
}

// New creates a chunk index repository for vectors of the given dimensionality.
func New(s store, dim int) *Repo {
	return &Repo{store: s, dim: dim}
}

// WithHNSW overrides the HNSW build parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	r.hnsw = cfg
	return r
}

// EnsureIndex creates the FT index if it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, indexName)
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	if exists {
		return nil
	}

	def := &db.IndexDefinition{
		Name:     indexName,
		Prefixes: []string{keyPrefix},
		Fields: []db.IndexField{
			{Name: fieldDoc, Type: db.IndexFieldTag},
			{Name: fieldOrd, Type: db.IndexFieldNumeric},
			{Name: fieldText, Type: db.IndexFieldText},
			{
				Name:              fieldVector,
				Type:              db.IndexFieldVector,
				VectorAlgo:        db.VectorHNSW,
				VectorDim:         r.dim,
				VectorDistance:    db.DistanceCosine,
				VectorM:           r.hnsw.M,
				VectorEFConstruct: r.hnsw.EFConstruct,
			},
		},
	}
	if err := def.Validate(); err != nil {
		return fmt.Errorf("index definition: %w", err)
	}

	if err := r.store.CreateIndex(ctx, def); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// Replace swaps all index entries of a document for the given chunk set.
// The new entries land in one pipelined write before any stale key from the
// prior version is removed, so a concurrent search never comes up empty for
// a document that has content. Once Replace returns, only the new version is
// visible. A search that overlaps the write itself can still observe a mix
// of old and new chunks of the document: the store has no multi-key
// transaction, so the guarantee is write-before-prune ordering, not a single
// atomic flip.
func (r *Repo) Replace(ctx context.Context, docID string, chunks []domain.Chunk) error {
	if docID == "" {
		return fmt.Errorf("document ID is required: %w", domain.ErrInvalidArgument)
	}

	existing, err := r.store.Scan(ctx, docPattern(docID))
	if err != nil {
		return fmt.Errorf("scan existing chunks %s: %w", docID, err)
	}

	items := make([]db.HashSetItem, len(chunks))
	newKeys := make(map[string]struct{}, len(chunks))
	for i := range chunks {
		c := &chunks[i]
		if len(c.Vector()) != r.dim {
			return fmt.Errorf(
				"chunk %s vector has %d dimensions, want %d: %w",
				c.ID(), len(c.Vector()), r.dim, domain.ErrVectorDimMismatch,
			)
		}
		key := chunkKey(c.ID())
		newKeys[key] = struct{}{}
		items[i] = db.HashSetItem{
			Key: key,
			Fields: map[string]string{
				fieldDoc:     c.DocumentID(),
				fieldOrd:     strconv.Itoa(c.Ordinal()),
				fieldHeading: c.Heading(),
				fieldText:    c.Text(),
				fieldVector:  vectorToBytes(c.Vector()),
			},
		}
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("write chunks %s: %w", docID, err)
	}

	var stale []string
	for _, key := range existing {
		if _, ok := newKeys[key]; !ok {
			stale = append(stale, key)
		}
	}
	if err := r.store.DelMulti(ctx, stale); err != nil {
		return fmt.Errorf("prune stale chunks %s: %w", docID, err)
	}

	return nil
}

// Delete removes all index entries of a document.
func (r *Repo) Delete(ctx context.Context, docID string) error {
	if docID == "" {
		return fmt.Errorf("document ID is required: %w", domain.ErrInvalidArgument)
	}
	keys, err := r.store.Scan(ctx, docPattern(docID))
	if err != nil {
		return fmt.Errorf("scan chunks %s: %w", docID, err)
	}
	if err := r.store.DelMulti(ctx, keys); err != nil {
		return fmt.Errorf("delete chunks %s: %w", docID, err)
	}
	return nil
}

// Search returns the k most similar chunks, descending by score, ties broken
// by chunk ID ascending. An empty index yields an empty result, not an error;
// k beyond the entry count degrades to returning everything available.
func (r *Repo) Search(ctx context.Context, vector []float32, k int) ([]domain.ScoredChunk, error) {
	if k < 1 {
		return nil, fmt.Errorf("k must be >= 1, got %d: %w", k, domain.ErrInvalidArgument)
	}
	if len(vector) != r.dim {
		return nil, fmt.Errorf(
			"query vector has %d dimensions, want %d: %w",
			len(vector), r.dim, domain.ErrInvalidArgument,
		)
	}

	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    indexName,
		Vector:       vector,
		K:            k,
		ReturnFields: []string{fieldDoc, fieldOrd, fieldHeading, fieldText},
	})
	if err != nil {
		return nil, fmt.Errorf("search knn: %w", err)
	}
	if sr == nil || sr.Total == 0 {
		return nil, nil
	}

	results := make([]domain.ScoredChunk, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		chunk, err := parseEntry(entry)
		if err != nil {
			return nil, err
		}
		results = append(results, domain.ScoredChunk{Chunk: chunk, Score: entry.Score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ID() < results[j].Chunk.ID()
	})

	return results, nil
}

// Count returns the number of chunk entries in the index.
func (r *Repo) Count(ctx context.Context) (int, error) {
	n, err := r.store.SearchCount(ctx, indexName, "*")
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

func parseEntry(entry db.SearchEntry) (domain.Chunk, error) {
	docID := entry.Fields[fieldDoc]
	if docID == "" {
		return domain.Chunk{}, fmt.Errorf("entry %s has no document field: %w", entry.Key, domain.ErrIndexCorrupt)
	}
	ord, err := strconv.Atoi(entry.Fields[fieldOrd])
	if err != nil {
		return domain.Chunk{}, fmt.Errorf("entry %s has bad ordinal: %w", entry.Key, domain.ErrIndexCorrupt)
	}
	return domain.ReconstructChunk(docID, ord, entry.Fields[fieldHeading], entry.Fields[fieldText], nil), nil
}

func chunkKey(chunkID string) string {
	return keyPrefix + chunkID
}

func docPattern(docID string) string {
	return keyPrefix + docID + "#*"
}
