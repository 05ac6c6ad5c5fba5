package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/solenne/docent/core"
	"github.com/solenne/docent/storage"
)

// DocumentRepository implements storage.DocumentRepository for BadgerDB.
type DocumentRepository struct {
	backend *Backend
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(backend *Backend) (*DocumentRepository, error) {
	return &DocumentRepository{
		backend: backend,
	}, nil
}

// Close releases resources. DocumentRepository has no resources to release.
func (r *DocumentRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *DocumentRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// PutDocument stores a document record, replacing any previous record
// stored under the same path.
func (r *DocumentRepository) PutDocument(ctx context.Context, doc *core.DocumentRecord) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if doc.IndexedAt.IsZero() {
			doc.IndexedAt = time.Now().UTC()
		}

		key := makeDocumentKey(doc.Path)
		if err := tx.Set(key, storage.MarshalDocumentRecord(doc)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetDocument retrieves a document record by path.
func (r *DocumentRepository) GetDocument(ctx context.Context, path string) (*core.DocumentRecord, error) {
	var result *core.DocumentRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeDocumentKey(path)
		var err error
		result, err = readDocumentRecord(tx, key)
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

// DeleteDocument removes a document record by path.
func (r *DocumentRepository) DeleteDocument(ctx context.Context, path string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeDocumentKey(path)

		doc, err := readDocumentRecord(tx, key)
		if err != nil {
			return err
		}
		if doc == nil {
			return storage.ErrNotFound
		}

		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// ListDocuments retrieves all document records ordered by path.
func (r *DocumentRepository) ListDocuments(ctx context.Context) ([]*core.DocumentRecord, error) {
	var results []*core.DocumentRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(documentRecordPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Keys embed the path, so iteration order is path order
		for iter.Rewind(); iter.Valid(); iter.Next() {
			var doc *core.DocumentRecord
			err := iter.Item().Value(func(val []byte) error {
				var err error
				doc, err = storage.UnmarshalDocumentRecord(val)
				return err
			})
			if err != nil {
				return err
			}
			if doc != nil {
				results = append(results, doc)
			}
		}
		return nil
	}, false)

	return results, err
}

// Helper methods

// readDocumentRecord reads a document record from the transaction.
func readDocumentRecord(tx *badger.Txn, key []byte) (*core.DocumentRecord, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var doc *core.DocumentRecord
	err = item.Value(func(val []byte) error {
		var err error
		doc, err = storage.UnmarshalDocumentRecord(val)
		return err
	})
	return doc, err
}
