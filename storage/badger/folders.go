package badger

import (
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/carrelhq/carrel/core"
	"github.com/carrelhq/carrel/storage"
)

// FolderRepository implements storage.FolderRepository for BadgerDB.
type FolderRepository struct {
	backend *Backend
}

var _ storage.FolderRepository = (*FolderRepository)(nil)

// NewFolderRepository creates a new FolderRepository.
func NewFolderRepository(backend *Backend) *FolderRepository {
	return &FolderRepository{backend: backend}
}

// Close is a no-op; the backend's lifetime is owned by the caller.
func (r *FolderRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *FolderRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// CreateFolder adds a folder to storage.
func (r *FolderRepository) CreateFolder(ctx context.Context, folder *core.Folder) (*core.Folder, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		if folder == nil {
			return core.ErrInvalidFolder
		}
		if folder.Id == "" {
			folder.Id = core.NewID()
		}
		folder.CreatedAt = time.Now().UTC()

		if err := core.ValidateFolder(folder); err != nil {
			return err
		}

		key := makeFolderKey(folder.Id)
		existing, err := r.readFolder(tx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			return storage.ErrDuplicateKey
		}

		if err := tx.Set(key, storage.MarshalFolder(folder)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)

	return folder, err
}

// GetFolder retrieves a single folder by ID.
func (r *FolderRepository) GetFolder(ctx context.Context, id string) (*core.Folder, error) {
	var result *core.Folder
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = r.readFolder(tx, makeFolderKey(id))
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

// ListFoldersByOwner retrieves all folders belonging to ownerID, oldest
// first. Folder counts stay small, so a prefix scan beats maintaining an
// ownership index.
func (r *FolderRepository) ListFoldersByOwner(ctx context.Context, ownerID string) ([]*core.Folder, error) {
	var results []*core.Folder
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(folderPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var folder *core.Folder
			if err := iter.Item().Value(func(val []byte) error {
				var unmarshalErr error
				folder, unmarshalErr = storage.UnmarshalFolder(val)
				return unmarshalErr
			}); err != nil {
				return err
			}
			if folder != nil && folder.OwnerId == ownerID {
				results = append(results, folder)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b *core.Folder) int {
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return 1
		}
		return 0
	})
	return results, nil
}

// DeleteFolder removes a folder and detaches documents that pointed at it.
func (r *FolderRepository) DeleteFolder(ctx context.Context, id string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeFolderKey(id)
		folder, err := r.readFolder(tx, key)
		if err != nil {
			return err
		}
		if folder == nil {
			return storage.ErrNotFound
		}

		// Collect attached documents first; badger write transactions
		// shouldn't mutate while an iterator is open.
		attached, err := documentsInFolder(tx, id)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		for _, doc := range attached {
			doc.FolderId = ""
			doc.UpdatedAt = now
			if err := tx.Set(makeDocumentKey(doc.Id), storage.MarshalDocument(doc)); err != nil {
				return err
			}
		}

		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Helper methods

// readFolder reads a folder from the transaction.
func (r *FolderRepository) readFolder(tx *badger.Txn, key []byte) (*core.Folder, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var folder *core.Folder
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		folder, unmarshalErr = storage.UnmarshalFolder(val)
		return unmarshalErr
	})
	return folder, err
}

// documentsInFolder scans for documents attached to a folder.
func documentsInFolder(tx *badger.Txn, folderID string) ([]*core.Document, error) {
	var results []*core.Document

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
			return nil, err
		}
		if doc != nil && doc.FolderId == folderID {
			results = append(results, doc)
		}
	}
	return results, nil
}
