package ingest

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	domainingest "github.com/kailas-cloud/ragdex/internal/domain/ingest"
)

const defaultWorkers = 4

// Service runs corpus ingestion: load, chunk, embed, replace.
type Service struct {
	loader   loader
	chunker  chunker
	embedder domain.Embedder
	index    index
	workers  int
	logger   *zap.Logger

	// docMu serializes upserts per document ID so two concurrent ingests of
	// the same file never interleave their replace operations.
	mu     sync.Mutex
	docMu  map[string]*sync.Mutex
	docRef map[string]int
}

// New creates the ingestion service.
func New(l loader, c chunker, e domain.Embedder, idx index, logger *zap.Logger) *Service {
	return &Service{
		loader:   l,
		chunker:  c,
		embedder: e,
		index:    idx,
		workers:  defaultWorkers,
		logger:   logger,
		docMu:    make(map[string]*sync.Mutex),
		docRef:   make(map[string]int),
	}
}

// WithWorkers overrides the ingestion worker count.
func (s *Service) WithWorkers(n int) *Service {
	if n > 0 {
		s.workers = n
	}
	return s
}

// Run ingests the whole corpus. Documents are processed concurrently by a
// bounded worker pool; one failed document is reported and skipped, never
// aborting the batch. A source-level failure (unreadable corpus directory)
// fails the run.
func (s *Service) Run(ctx context.Context) (*domainingest.Report, error) {
	docs, err := s.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}

	report := &domainingest.Report{}
	if len(docs) == 0 {
		s.logger.Info("Corpus is empty, nothing to ingest")
		return report, nil
	}

	jobs := make(chan domain.Document)
	results := make(chan domainingest.Result)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for doc := range jobs {
				results <- s.ingestDocument(ctx, doc)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, doc := range docs {
			select {
			case jobs <- doc:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		report.Add(res)
	}

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("ingest corpus: %w", err)
	}

	s.logger.Info("Ingestion finished",
		zap.Int("documents", report.Documents()),
		zap.Int("chunks", report.Chunks()),
		zap.Int("failed", report.Failed()),
	)

	return report, nil
}

// IngestDocument processes one document end to end.
func (s *Service) IngestDocument(ctx context.Context, doc domain.Document) domainingest.Result {
	return s.ingestDocument(ctx, doc)
}

// Remove drops a document's entries from the index.
func (s *Service) Remove(ctx context.Context, docID string) error {
	unlock := s.lockDoc(docID)
	defer unlock()

	if err := s.index.Delete(ctx, docID); err != nil {
		return fmt.Errorf("remove document %s: %w", docID, err)
	}
	return nil
}

func (s *Service) ingestDocument(ctx context.Context, doc domain.Document) domainingest.Result {
	unlock := s.lockDoc(doc.ID())
	defer unlock()

	chunks, err := s.chunker.Chunk(doc)
	if err != nil {
		return domainingest.NewError(doc.ID(), fmt.Errorf("chunk: %w", err))
	}
	if len(chunks) == 0 {
		// Whitespace-only document: clear any stale entries.
		if err := s.index.Delete(ctx, doc.ID()); err != nil {
			return domainingest.NewError(doc.ID(), fmt.Errorf("clear empty document: %w", err))
		}
		return domainingest.NewOK(doc.ID(), 0)
	}

	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text()
	}

	emb, err := s.batchEmbed(ctx, texts)
	if err != nil {
		return domainingest.NewError(doc.ID(), fmt.Errorf("embed: %w", err))
	}
	if len(emb.Embeddings) != len(chunks) {
		return domainingest.NewError(doc.ID(), fmt.Errorf(
			"got %d embeddings for %d chunks: %w",
			len(emb.Embeddings), len(chunks), domain.ErrEmbeddingProviderError,
		))
	}

	for i := range chunks {
		chunks[i] = chunks[i].WithVector(emb.Embeddings[i])
	}

	if err := s.index.Replace(ctx, doc.ID(), chunks); err != nil {
		return domainingest.NewError(doc.ID(), fmt.Errorf("replace index entries: %w", err))
	}

	s.logger.Debug("Ingested document",
		zap.String("doc_id", doc.ID()),
		zap.Int("chunks", len(chunks)),
	)

	return domainingest.NewOK(doc.ID(), len(chunks))
}

func (s *Service) batchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if be, ok := s.embedder.(domain.BatchEmbedder); ok {
		return be.BatchEmbed(ctx, texts)
	}
	return domain.BatchFallback(ctx, s.embedder, texts)
}

// lockDoc acquires the per-document mutex, creating it on first use and
// dropping it once no ingest holds a reference.
func (s *Service) lockDoc(docID string) func() {
	s.mu.Lock()
	m, ok := s.docMu[docID]
	if !ok {
		m = &sync.Mutex{}
		s.docMu[docID] = m
	}
	s.docRef[docID]++
	s.mu.Unlock()

	m.Lock()

	return func() {
		m.Unlock()

		s.mu.Lock()
		s.docRef[docID]--
		if s.docRef[docID] == 0 {
			delete(s.docMu, docID)
			delete(s.docRef, docID)
		}
		s.mu.Unlock()
	}
}
