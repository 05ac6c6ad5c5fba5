package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/solenne/docent/core"
	"github.com/solenne/docent/storage"
)

// ChunkRepository implements storage.ChunkRepository for BadgerDB.
// Term postings and lexicon totals are maintained in the same transaction
// as the chunk writes so the lexical index can never drift from the
// stored chunks.
type ChunkRepository struct {
	backend *Backend
}

var _ storage.ChunkRepository = (*ChunkRepository)(nil)

// NewChunkRepository creates a new ChunkRepository.
func NewChunkRepository(backend *Backend) (*ChunkRepository, error) {
	return &ChunkRepository{
		backend: backend,
	}, nil
}

// Close releases resources. ChunkRepository has no resources to release.
func (r *ChunkRepository) Close() error {
	return nil
}

// FindSimilar delegates to the backend.
func (r *ChunkRepository) FindSimilar(ctx context.Context, vector []float32, minSimilarity float64, limit int) ([]*core.SearchResult, error) {
	return r.backend.FindSimilar(ctx, vector, minSimilarity, limit)
}

// WithTransaction delegates to the backend.
func (r *ChunkRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddChunks inserts one or more chunks and maintains the lexical index.
// Chunk IDs are content-based, so a chunk whose content is already stored
// is refreshed in place: vector and UpdatedAt are replaced while the term
// postings and lexicon totals stay untouched.
func (r *ChunkRepository) AddChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		stats, err := readLexiconStats(tx)
		if err != nil {
			return err
		}
		statsChanged := false

		for _, chunk := range chunks {
			// Use content-based ID if not set
			if chunk.Id == 0 {
				chunk.Id = core.IDFromContent(chunk.Content)
			}

			key := makeChunkKey(chunk.Id)
			old, err := readChunk(tx, key)
			if err != nil {
				return err
			}

			now := time.Now().UTC()
			if old != nil {
				// Same content hash: refresh the stored record only
				chunk.IndexedAt = old.IndexedAt
				chunk.UpdatedAt = now
				if err := tx.Set(key, storage.MarshalChunk(chunk)); err != nil {
					return err
				}
				continue
			}

			chunk.IndexedAt = now
			chunk.UpdatedAt = now

			// Store primary record
			if err := tx.Set(key, storage.MarshalChunk(chunk)); err != nil {
				return err
			}

			// Write term postings
			terms := core.Tokenize(chunk.Content)
			for term, tf := range core.TermFrequencies(terms) {
				postingKey := makeTermPostingKey(term, chunk.Id)
				if err := tx.Set(postingKey, storage.MarshalTermFrequency(tf)); err != nil {
					return err
				}
			}

			stats.ChunkCount++
			stats.TokenCount += uint64(len(terms))
			statsChanged = true
		}

		if statsChanged {
			if err := tx.Set(makeLexiconStatsKey(), storage.MarshalLexiconStats(stats)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	return chunks, err
}

// UpdateChunks replaces the vectors of existing chunks.
// Content is immutable (the ID is derived from it), so postings and
// lexicon totals need no maintenance here.
func (r *ChunkRepository) UpdateChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, chunk := range chunks {
			key := makeChunkKey(chunk.Id)

			old, err := readChunk(tx, key)
			if err != nil {
				return err
			}
			if old == nil {
				return storage.ErrNotFound
			}

			old.Vector = chunk.Vector
			old.UpdatedAt = time.Now().UTC()

			if err := tx.Set(key, storage.MarshalChunk(old)); err != nil {
				return err
			}

			// Reflect the stored state back to the caller
			*chunk = *old
		}
		return tx.Commit()
	}, true)

	return chunks, err
}

// DeleteChunks removes chunks by their IDs along with their term postings,
// and decrements the lexicon totals. IDs with no stored record are skipped,
// so the batch is idempotent: content-based IDs mean a caller can legitimately
// hold the same ID twice, or an ID an earlier delete already removed.
func (r *ChunkRepository) DeleteChunks(ctx context.Context, ids ...core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		stats, err := readLexiconStats(tx)
		if err != nil {
			return err
		}
		statsChanged := false

		for _, id := range ids {
			key := makeChunkKey(id)

			// Read record to reconstruct its postings for cleanup
			chunk, err := readChunk(tx, key)
			if err != nil {
				return err
			}
			if chunk == nil {
				continue
			}

			terms := core.Tokenize(chunk.Content)
			for term := range core.TermFrequencies(terms) {
				if err := tx.Delete(makeTermPostingKey(term, id)); err != nil {
					return err
				}
			}

			if err := tx.Delete(key); err != nil {
				return err
			}

			if stats.ChunkCount > 0 {
				stats.ChunkCount--
			}
			if stats.TokenCount >= uint64(len(terms)) {
				stats.TokenCount -= uint64(len(terms))
			} else {
				stats.TokenCount = 0
			}
			statsChanged = true
		}

		if statsChanged {
			if err := tx.Set(makeLexiconStatsKey(), storage.MarshalLexiconStats(stats)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetChunk retrieves a single chunk by ID.
func (r *ChunkRepository) GetChunk(ctx context.Context, id core.ID) (*core.Chunk, error) {
	var result *core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeChunkKey(id)
		var err error
		result, err = readChunk(tx, key)
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetChunks retrieves multiple chunks by their IDs.
func (r *ChunkRepository) GetChunks(ctx context.Context, ids ...core.ID) ([]*core.Chunk, error) {
	var result []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			key := makeChunkKey(id)
			chunk, err := readChunk(tx, key)
			if err != nil {
				return err
			}
			if chunk != nil {
				result = append(result, chunk)
			}
		}
		return nil
	}, false)
	return result, err
}

// ForEachChunk invokes fn for every stored chunk within one read transaction.
func (r *ChunkRepository) ForEachChunk(ctx context.Context, fn func(chunk *core.Chunk) error) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chunkRecordPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var chunk *core.Chunk
			err := iter.Item().Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalChunk(val)
				return err
			})
			if err != nil {
				return err
			}
			if chunk == nil {
				continue
			}
			if err := fn(chunk); err != nil {
				return err
			}
		}
		return nil
	}, false)
}

// GetPostings returns the term-frequency postings for a term.
func (r *ChunkRepository) GetPostings(ctx context.Context, term string) (map[core.ID]uint32, error) {
	postings := make(map[core.ID]uint32)
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makePartialTermPostingKey(term)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()
			key := item.Key()
			if len(key) < len(prefix)+8 {
				continue
			}

			var tf uint32
			if err := item.Value(func(val []byte) error {
				var err error
				tf, err = storage.UnmarshalTermFrequency(val)
				return err
			}); err != nil {
				return err
			}
			postings[postingChunkID(key)] = tf
		}
		return nil
	}, false)

	return postings, err
}

// GetLexiconStats returns the corpus-wide lexicon totals.
func (r *ChunkRepository) GetLexiconStats(ctx context.Context) (core.LexiconStats, error) {
	var stats core.LexiconStats
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		stats, err = readLexiconStats(tx)
		return err
	}, false)
	return stats, err
}

// CountChunks returns the number of indexed chunks.
func (r *ChunkRepository) CountChunks(ctx context.Context) (int, error) {
	stats, err := r.GetLexiconStats(ctx)
	if err != nil {
		return 0, err
	}
	return int(stats.ChunkCount), nil
}

// Helper methods

// readChunk reads a chunk from the transaction.
func readChunk(tx *badger.Txn, key []byte) (*core.Chunk, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var chunk *core.Chunk
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		chunk, unmarshalErr = storage.UnmarshalChunk(val)
		return unmarshalErr
	})
	return chunk, err
}

// readLexiconStats reads the lexicon totals, returning zero totals when the
// singleton has never been written.
func readLexiconStats(tx *badger.Txn) (core.LexiconStats, error) {
	var stats core.LexiconStats
	item, err := tx.Get(makeLexiconStatsKey())
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return stats, nil
		}
		return stats, err
	}

	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		stats, unmarshalErr = storage.UnmarshalLexiconStats(val)
		return unmarshalErr
	})
	return stats, err
}
