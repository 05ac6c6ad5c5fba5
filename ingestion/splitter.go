package ingestion

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/solenne/docent/core"
)

// Default chunking geometry.
const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

// defaultSeparators order split preferences from paragraph breaks down
// to single characters. Sentence punctuation sits between line breaks
// and bare spaces so windows tend to end on sentence boundaries.
var defaultSeparators = []string{"\n\n", "\n", ". ", "! ", "? ", "; ", ", ", " ", ""}

// Splitter cuts document text into overlapping windows ready for
// embedding and indexing.
type Splitter struct {
	inner textsplitter.RecursiveCharacter
}

// NewSplitter creates a splitter with the given window geometry.
// Sizes are in characters, matching how the corpus was originally
// chunked.
func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	return &Splitter{
		inner: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
			textsplitter.WithSeparators(defaultSeparators),
		),
	}
}

// Split chunks one document. IDs are content-derived so re-splitting
// unchanged text yields the same IDs, Index is the chunk's ordinal
// within the document, and Page carries over from paginated sources.
func (s *Splitter) Split(doc *core.Document) ([]*core.Chunk, error) {
	pieces, err := s.inner.SplitText(doc.Content)
	if err != nil {
		return nil, fmt.Errorf("split %s: %w", doc.Name, err)
	}

	chunks := make([]*core.Chunk, 0, len(pieces))
	for _, piece := range pieces {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		chunks = append(chunks, &core.Chunk{
			Id:      core.IDFromContent(piece),
			Content: piece,
			Source:  doc.Name,
			Format:  doc.Format,
			Index:   len(chunks),
			Page:    doc.Page,
		})
	}
	return chunks, nil
}
