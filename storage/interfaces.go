package storage

import (
	"context"

	"github.com/solenne/docent/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	// The context passed to fn may contain transaction state.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// ChunkRepository provides operations for managing indexed chunks and the
// lexical index maintained alongside them. Every write keeps the term
// postings and lexicon totals consistent with the stored chunks in the
// same transaction.
type ChunkRepository interface {
	Repository
	// AddChunks inserts one or more chunks.
	// Chunk IDs are content-based (core.IDFromContent), so re-adding a chunk
	// with identical content overwrites the stored record in place: the
	// vector and UpdatedAt are refreshed while IndexedAt, the term postings,
	// and the lexicon totals are left untouched.
	// Returns the chunks with timestamps populated.
	AddChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error)

	// UpdateChunks replaces the vectors of existing chunks and refreshes
	// UpdatedAt. Content is immutable (the ID is derived from it), so the
	// lexical index needs no maintenance here.
	// Returns ErrNotFound if any chunk doesn't exist.
	UpdateChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error)

	// DeleteChunks removes chunks by their IDs along with their term
	// postings, and decrements the lexicon totals. IDs with no stored
	// record (including duplicates within the batch) are skipped, so the
	// operation is idempotent.
	DeleteChunks(ctx context.Context, ids ...core.ID) error

	// GetChunk retrieves a single chunk by ID.
	// Returns ErrNotFound if the chunk doesn't exist.
	GetChunk(ctx context.Context, id core.ID) (*core.Chunk, error)

	// GetChunks retrieves multiple chunks by their IDs.
	// Returns only the chunks that exist (no error for missing chunks).
	GetChunks(ctx context.Context, ids ...core.ID) ([]*core.Chunk, error)

	// ForEachChunk invokes fn for every stored chunk in an unspecified
	// order within a single read transaction. Iteration stops at the first
	// error, which is returned.
	ForEachChunk(ctx context.Context, fn func(chunk *core.Chunk) error) error

	// FindSimilar finds chunks similar to the given vector.
	// Returns chunks with cosine similarity >= minSimilarity, up to limit
	// results, ordered by similarity descending. Chunks without a vector
	// are skipped.
	FindSimilar(ctx context.Context, vector []float32, minSimilarity float64, limit int) ([]*core.SearchResult, error)

	// GetPostings returns the term-frequency postings for a term: a map
	// from chunk ID to the number of occurrences of the term in that
	// chunk's content. The map's size is the term's document frequency.
	// Returns an empty map for unknown terms.
	GetPostings(ctx context.Context, term string) (map[core.ID]uint32, error)

	// GetLexiconStats returns the corpus-wide totals backing lexical
	// scoring: the number of indexed chunks and the summed token count.
	GetLexiconStats(ctx context.Context) (core.LexiconStats, error)

	// CountChunks returns the number of indexed chunks.
	CountChunks(ctx context.Context) (int, error)
}

// DocumentRepository provides operations for the per-source-file registry.
// Records are keyed by source path and let the ingestion pipeline detect
// unchanged files and replace a file's chunks wholesale when content changes.
type DocumentRepository interface {
	Repository
	// PutDocument inserts or replaces the registry record for a path.
	// Sets IndexedAt if not already set.
	PutDocument(ctx context.Context, record *core.DocumentRecord) error

	// GetDocument retrieves the registry record for a path.
	// Returns ErrNotFound if the path has never been indexed.
	GetDocument(ctx context.Context, path string) (*core.DocumentRecord, error)

	// DeleteDocument removes the registry record for a path.
	// Returns ErrNotFound if the record doesn't exist.
	DeleteDocument(ctx context.Context, path string) error

	// ListDocuments returns every registry record, ordered by path.
	ListDocuments(ctx context.Context) ([]*core.DocumentRecord, error)
}
