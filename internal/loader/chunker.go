package loader

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// Break preference classes, highest wins within the cut window.
const (
	breakNone = iota
	breakSentence
	breakParagraph
)

// Chunker splits documents into overlapping rune-bounded chunks. Cut points
// prefer paragraph breaks, then sentence ends, over hard cuts. Consecutive
// chunks share `overlap` runes so no statement is lost at a boundary.
type Chunker struct {
	maxSize int
	overlap int
}

// NewChunker creates a chunker. maxSize is the chunk bound in runes; overlap
// must be smaller than half of maxSize to guarantee forward progress.
func NewChunker(maxSize, overlap int) (*Chunker, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("max chunk size must be positive: %w", domain.ErrInvalidArgument)
	}
	if overlap < 0 || overlap*2 >= maxSize {
		return nil, fmt.Errorf("overlap must be in [0, maxSize/2): %w", domain.ErrInvalidArgument)
	}
	return &Chunker{maxSize: maxSize, overlap: overlap}, nil
}

// Chunk splits a document into chunks. The chunk texts are exact rune slices
// of the original content: dropping the shared overlap from each chunk after
// the first reconstructs the full document.
func (c *Chunker) Chunk(doc domain.Document) ([]domain.Chunk, error) {
	runes := []rune(doc.Content())
	headings := headingOffsets(runes)

	var chunks []domain.Chunk
	ordinal := 0
	pos := 0

	for pos < len(runes) {
		end := c.cut(runes, pos)
		text := string(runes[pos:end])

		if strings.TrimSpace(text) != "" {
			chunk, err := domain.NewChunk(doc.ID(), ordinal, headingAt(headings, pos), text)
			if err != nil {
				return nil, fmt.Errorf("chunk %s: %w", doc.ID(), err)
			}
			chunks = append(chunks, chunk)
			ordinal++
		}

		if end == len(runes) {
			break
		}
		next := end - c.overlap
		if next <= pos {
			next = pos + 1
		}
		pos = next
	}

	return chunks, nil
}

// cut picks the end of the chunk starting at pos: the latest preferred break
// in the back half of the window, or a hard cut at pos+maxSize.
func (c *Chunker) cut(runes []rune, pos int) int {
	hard := pos + c.maxSize
	if hard >= len(runes) {
		return len(runes)
	}

	lo := pos + c.maxSize/2
	best := hard
	bestClass := breakNone

	for i := hard; i > lo; i-- {
		cls := breakClass(runes, i)
		if cls > bestClass {
			best = i
			bestClass = cls
			if cls == breakParagraph {
				break
			}
		}
	}

	return best
}

// breakClass rates position i as a cut point (the chunk ends just before i).
func breakClass(runes []rune, i int) int {
	if i <= 0 || i >= len(runes) {
		return breakNone
	}
	// Paragraph break: cut after a blank line.
	if runes[i-1] == '\n' && i >= 2 && runes[i-2] == '\n' {
		return breakParagraph
	}
	// Sentence break: cut after terminal punctuation followed by whitespace.
	if isSpace(runes[i-1]) && i >= 2 && isSentenceEnd(runes[i-2]) {
		return breakSentence
	}
	return breakNone
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t'
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// headingOffset pairs a rune offset with the markdown heading in force there.
type headingOffset struct {
	offset  int
	heading string
}

// headingOffsets scans for markdown ATX headings and records where each takes effect.
func headingOffsets(runes []rune) []headingOffset {
	var out []headingOffset
	lineStart := 0
	for i := 0; i <= len(runes); i++ {
		if i != len(runes) && runes[i] != '\n' {
			continue
		}
		line := string(runes[lineStart:i])
		if h, ok := parseHeading(line); ok {
			out = append(out, headingOffset{offset: lineStart, heading: h})
		}
		lineStart = i + 1
	}
	return out
}

func parseHeading(line string) (string, bool) {
	trimmed := strings.TrimLeft(line, "#")
	if trimmed == line || len(line)-len(trimmed) > 6 {
		return "", false
	}
	if !strings.HasPrefix(trimmed, " ") {
		return "", false
	}
	h := strings.TrimSpace(trimmed)
	if h == "" {
		return "", false
	}
	return h, true
}

// headingAt returns the last heading that starts at or before pos.
func headingAt(headings []headingOffset, pos int) string {
	h := ""
	for _, ho := range headings {
		if ho.offset > pos {
			break
		}
		h = ho.heading
	}
	return h
}
