package badger

import (
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/carrelhq/carrel/core"
	"github.com/carrelhq/carrel/storage"
)

// DocumentRepository implements storage.DocumentRepository for BadgerDB.
type DocumentRepository struct {
	backend *Backend
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(backend *Backend) *DocumentRepository {
	return &DocumentRepository{backend: backend}
}

// Close is a no-op; the backend's lifetime is owned by the caller.
func (r *DocumentRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *DocumentRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// CreateDocument adds a document to storage.
func (r *DocumentRepository) CreateDocument(ctx context.Context, doc *core.Document) (*core.Document, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		if doc == nil {
			return core.ErrInvalidDocument
		}
		if doc.Id == "" {
			doc.Id = core.NewID()
		}
		if doc.Status == "" {
			doc.Status = core.StatusPending
		}

		now := time.Now().UTC()
		if doc.UploadedAt.IsZero() {
			doc.UploadedAt = now
		}
		doc.UpdatedAt = now

		if err := core.ValidateDocument(doc); err != nil {
			return err
		}

		key := makeDocumentKey(doc.Id)
		existing, err := r.readDocument(tx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			return storage.ErrDuplicateKey
		}

		if err := tx.Set(key, storage.MarshalDocument(doc)); err != nil {
			return err
		}
		if err := writeHashIndex(tx, doc); err != nil {
			return err
		}
		return tx.Commit()
	}, true)

	return doc, err
}

// GetDocument retrieves a single document by ID.
func (r *DocumentRepository) GetDocument(ctx context.Context, id string) (*core.Document, error) {
	var result *core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = r.readDocument(tx, makeDocumentKey(id))
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

// UpdateDocumentFields applies a partial update to a document in one
// transaction.
func (r *DocumentRepository) UpdateDocumentFields(ctx context.Context, id string, update storage.DocumentFieldUpdate) (*core.Document, error) {
	var result *core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeDocumentKey(id)
		old, err := r.readDocument(tx, key)
		if err != nil {
			return err
		}
		if old == nil {
			return storage.ErrNotFound
		}

		doc := *old
		if update.Status != nil {
			doc.Status = *update.Status
		}
		if update.ErrorCode != nil {
			doc.ErrorCode = *update.ErrorCode
		}
		if update.ErrorMessage != nil {
			doc.ErrorMessage = *update.ErrorMessage
		}
		if update.ChunkCount != nil {
			doc.ChunkCount = *update.ChunkCount
		}
		if update.ContentHash != nil {
			doc.ContentHash = *update.ContentHash
		}
		if update.ExtractedText != nil {
			doc.ExtractedText = *update.ExtractedText
		}
		if update.FolderId != nil {
			doc.FolderId = *update.FolderId
		}
		doc.UpdatedAt = time.Now().UTC()

		if err := core.ValidateDocument(&doc); err != nil {
			return err
		}

		if err := tx.Set(key, storage.MarshalDocument(&doc)); err != nil {
			return err
		}

		// Keep the content-hash index in step with the record. A document
		// leaving the completed state, or changing its hash, drops its old
		// entry before any new one is written.
		if hashIndexed(old) && (doc.Status != core.StatusCompleted || doc.ContentHash != old.ContentHash) {
			if err := deleteHashIndex(tx, old); err != nil {
				return err
			}
		}
		if err := writeHashIndex(tx, &doc); err != nil {
			return err
		}

		result = &doc
		return tx.Commit()
	}, true)
	return result, err
}

// FindCompletedByContentHash finds the most recently uploaded completed
// document with contentHash in the scope's namespace.
func (r *DocumentRepository) FindCompletedByContentHash(ctx context.Context, scope core.Scope, contentHash string) (*core.Document, error) {
	namespace, err := scope.Namespace()
	if err != nil {
		return nil, err
	}
	if contentHash == "" {
		return nil, storage.ErrInvalidQuery
	}

	var result *core.Document
	err = r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeDocumentHashPrefix(namespace, contentHash)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var documentID string
			if err := iter.Item().Value(func(val []byte) error {
				documentID = string(val)
				return nil
			}); err != nil {
				return err
			}

			doc, err := r.readDocument(tx, makeDocumentKey(documentID))
			if err != nil {
				return err
			}
			// Stale index entries are skipped rather than trusted.
			if doc == nil || doc.Status != core.StatusCompleted || doc.ContentHash != contentHash {
				continue
			}
			if result == nil || doc.UploadedAt.After(result.UploadedAt) {
				result = doc
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, storage.ErrNotFound
	}
	return result, nil
}

// ListDocumentsByScope retrieves all documents in the scope's namespace,
// most recently uploaded first.
func (r *DocumentRepository) ListDocumentsByScope(ctx context.Context, scope core.Scope) ([]*core.Document, error) {
	namespace, err := scope.Namespace()
	if err != nil {
		return nil, err
	}

	docs, err := r.listDocuments(func(doc *core.Document) bool {
		docNamespace, nsErr := doc.Scope.Namespace()
		return nsErr == nil && docNamespace == namespace
	})
	return docs, err
}

// ListDocuments retrieves every document across all namespaces, most
// recently uploaded first.
func (r *DocumentRepository) ListDocuments(ctx context.Context) ([]*core.Document, error) {
	return r.listDocuments(func(*core.Document) bool { return true })
}

// DeleteDocument removes a document and its index entries, returning the
// removed record.
func (r *DocumentRepository) DeleteDocument(ctx context.Context, id string) (*core.Document, error) {
	var removed *core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeDocumentKey(id)
		doc, err := r.readDocument(tx, key)
		if err != nil {
			return err
		}
		if doc == nil {
			return storage.ErrNotFound
		}

		if hashIndexed(doc) {
			if err := deleteHashIndex(tx, doc); err != nil {
				return err
			}
		}
		if err := tx.Delete(key); err != nil {
			return err
		}

		removed = doc
		return tx.Commit()
	}, true)
	return removed, err
}

// Helper methods

// readDocument reads a document from the transaction.
func (r *DocumentRepository) readDocument(tx *badger.Txn, key []byte) (*core.Document, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var doc *core.Document
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		doc, unmarshalErr = storage.UnmarshalDocument(val)
		return unmarshalErr
	})
	return doc, err
}

// listDocuments scans the document prefix and collects records matching the
// filter, most recently uploaded first.
func (r *DocumentRepository) listDocuments(match func(*core.Document) bool) ([]*core.Document, error) {
	var results []*core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(documentPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var doc *core.Document
			if err := iter.Item().Value(func(val []byte) error {
				var unmarshalErr error
				doc, unmarshalErr = storage.UnmarshalDocument(val)
				return unmarshalErr
			}); err != nil {
				return err
			}
			if doc != nil && match(doc) {
				results = append(results, doc)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b *core.Document) int {
		if a.UploadedAt.After(b.UploadedAt) {
			return -1
		}
		if a.UploadedAt.Before(b.UploadedAt) {
			return 1
		}
		return 0
	})
	return results, nil
}

// hashIndexed reports whether doc should have a content-hash index entry.
func hashIndexed(doc *core.Document) bool {
	return doc.Status == core.StatusCompleted && doc.ContentHash != ""
}

// writeHashIndex adds the content-hash index entry for a completed document.
func writeHashIndex(tx *badger.Txn, doc *core.Document) error {
	if !hashIndexed(doc) {
		return nil
	}
	namespace, err := doc.Scope.Namespace()
	if err != nil {
		return err
	}
	key := makeDocumentHashKey(namespace, doc.ContentHash, doc.Id)
	return tx.Set(key, []byte(doc.Id))
}

// deleteHashIndex removes the content-hash index entry for a document.
func deleteHashIndex(tx *badger.Txn, doc *core.Document) error {
	namespace, err := doc.Scope.Namespace()
	if err != nil {
		return err
	}
	return tx.Delete(makeDocumentHashKey(namespace, doc.ContentHash, doc.Id))
}
