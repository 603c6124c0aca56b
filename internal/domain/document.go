package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var docIDRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9 _./-]*$`)

// MaxContentSize is the maximum document content size in bytes.
const MaxContentSize = 1 << 20 // 1MB

// Document is a named source text loaded from the corpus (immutable value object).
type Document struct {
	id      string
	path    string
	content string
}

// NewDocument validates and creates a Document.
// The ID is the slash-separated relative path within the corpus directory.
func NewDocument(id, path, content string) (Document, error) {
	if id == "" {
		return Document{}, fmt.Errorf("document ID is required: %w", ErrInvalidArgument)
	}
	if len(id) > 512 {
		return Document{}, fmt.Errorf("document ID too long (max 512): %w", ErrInvalidArgument)
	}
	if !docIDRegex.MatchString(id) {
		return Document{}, fmt.Errorf("document ID %q contains invalid characters: %w", id, ErrInvalidArgument)
	}
	if strings.TrimSpace(content) == "" {
		return Document{}, fmt.Errorf("document %q has no content: %w", id, ErrInvalidArgument)
	}
	if len(content) > MaxContentSize {
		return Document{}, fmt.Errorf("document %q too large (max %d bytes): %w", id, MaxContentSize, ErrInvalidArgument)
	}
	return Document{id: id, path: path, content: content}, nil
}

// ID returns the stable document identifier.
func (d *Document) ID() string { return d.id }

// Path returns the filesystem path the document was loaded from.
func (d *Document) Path() string { return d.path }

// Content returns the raw document text.
func (d *Document) Content() string { return d.content }

// Chunk is a bounded span of a document's text, the unit of retrieval.
type Chunk struct {
	id      string
	doc     string
	ordinal int
	heading string
	text    string
	vector  []float32
}

// ChunkID derives the chunk identifier from document ID and ordinal.
func ChunkID(docID string, ordinal int) string {
	return docID + "#" + strconv.Itoa(ordinal)
}

// NewChunk creates a chunk of a document. The vector is attached later,
// after the embedding provider has seen the text.
func NewChunk(docID string, ordinal int, heading, text string) (Chunk, error) {
	if docID == "" {
		return Chunk{}, fmt.Errorf("chunk document ID is required: %w", ErrInvalidArgument)
	}
	if ordinal < 0 {
		return Chunk{}, fmt.Errorf("chunk ordinal must be non-negative: %w", ErrInvalidArgument)
	}
	if text == "" {
		return Chunk{}, fmt.Errorf("chunk text is required: %w", ErrInvalidArgument)
	}
	return Chunk{
		id:      ChunkID(docID, ordinal),
		doc:     docID,
		ordinal: ordinal,
		heading: heading,
		text:    text,
	}, nil
}

// ReconstructChunk creates a Chunk without validation (storage hydration).
func ReconstructChunk(docID string, ordinal int, heading, text string, vector []float32) Chunk {
	return Chunk{
		id:      ChunkID(docID, ordinal),
		doc:     docID,
		ordinal: ordinal,
		heading: heading,
		text:    text,
		vector:  vector,
	}
}

// ID returns the chunk identifier (docID + "#" + ordinal).
func (c *Chunk) ID() string { return c.id }

// DocumentID returns the owning document's identifier.
func (c *Chunk) DocumentID() string { return c.doc }

// Ordinal returns the chunk's position within its document.
func (c *Chunk) Ordinal() int { return c.ordinal }

// Heading returns the nearest markdown section heading, if any.
func (c *Chunk) Heading() string { return c.heading }

// Text returns the chunk text.
func (c *Chunk) Text() string { return c.text }

// Vector returns the embedding vector.
func (c *Chunk) Vector() []float32 { return c.vector }

// WithVector returns a copy with the given embedding attached.
func (c Chunk) WithVector(v []float32) Chunk {
	c.vector = v
	return c
}

// ScoredChunk pairs a chunk with its similarity score during retrieval.
// Scores are an internal ranking signal and stop at the retriever boundary.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// Answer is the transient result of one query: the generated text plus the
// chunks that grounded it, in retrieval order.
type Answer struct {
	SessionID string
	Text      string
	Sources   []Chunk
}
