package storage

import (
	"context"

	"github.com/carrelhq/carrel/core"
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

// DocumentFieldUpdate is a partial update of a document record. Nil fields
// are left untouched; the whole patch applies atomically in one transaction.
type DocumentFieldUpdate struct {
	Status        *core.Status
	ErrorCode     *core.ErrorCode
	ErrorMessage  *string
	ChunkCount    *int
	ContentHash   *string
	ExtractedText *string
	FolderId      *string
}

// DocumentRepository provides operations for managing document records.
type DocumentRepository interface {
	Repository

	// CreateDocument adds a document to storage.
	// Generates an ID if none is set and defaults the status to pending.
	// Sets UploadedAt and UpdatedAt timestamps.
	// Returns the document with generated fields populated.
	CreateDocument(ctx context.Context, doc *core.Document) (*core.Document, error)

	// GetDocument retrieves a single document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id string) (*core.Document, error)

	// UpdateDocumentFields applies a partial update to a document in one
	// transaction and returns the updated record.
	// Returns ErrNotFound if the document doesn't exist.
	UpdateDocumentFields(ctx context.Context, id string, update DocumentFieldUpdate) (*core.Document, error)

	// FindCompletedByContentHash finds the most recently uploaded completed
	// document carrying contentHash within the scope's namespace.
	// Returns ErrNotFound if no such document exists.
	FindCompletedByContentHash(ctx context.Context, scope core.Scope, contentHash string) (*core.Document, error)

	// ListDocumentsByScope retrieves all documents in the scope's namespace,
	// most recently uploaded first.
	ListDocumentsByScope(ctx context.Context, scope core.Scope) ([]*core.Document, error)

	// ListDocuments retrieves every document across all namespaces, most
	// recently uploaded first. Used by re-indexing.
	ListDocuments(ctx context.Context) ([]*core.Document, error)

	// DeleteDocument removes a document and its index entries, returning the
	// removed record so callers can clean up vectors and blobs.
	// Returns ErrNotFound if the document doesn't exist.
	DeleteDocument(ctx context.Context, id string) (*core.Document, error)
}

// PersonaRepository provides operations for managing personas and the
// per-user active persona pointer.
type PersonaRepository interface {
	Repository

	// CreatePersona adds a persona to storage.
	// Generates an ID if none is set and stamps timestamps.
	// Returns the persona with generated fields populated.
	CreatePersona(ctx context.Context, persona *core.Persona) (*core.Persona, error)

	// GetPersona retrieves a single persona by ID.
	// Returns ErrNotFound if the persona doesn't exist.
	GetPersona(ctx context.Context, id string) (*core.Persona, error)

	// ListPersonasByOwner retrieves all personas belonging to ownerID.
	ListPersonasByOwner(ctx context.Context, ownerID string) ([]*core.Persona, error)

	// UpdatePersona updates an existing persona, preserving CreatedAt and
	// refreshing UpdatedAt.
	// Returns ErrNotFound if the persona doesn't exist.
	UpdatePersona(ctx context.Context, persona *core.Persona) (*core.Persona, error)

	// DeletePersona removes a persona. If the persona is its owner's active
	// persona, the owner's active pointer is cleared in the same
	// transaction; a dangling active reference is never left behind.
	// Returns ErrNotFound if the persona doesn't exist.
	DeletePersona(ctx context.Context, id string) error

	// ActivatePersona marks the persona active for its owner: sets the
	// owner's active pointer, flags the persona active and deactivates the
	// owner's other personas, all in one transaction.
	// Returns ErrNotFound if the persona doesn't exist or belongs to a
	// different owner.
	ActivatePersona(ctx context.Context, ownerID, personaID string) error

	// DeactivateAllPersonas clears the owner's active pointer and the active
	// flag on every persona the owner has, in one transaction. No personas
	// are deleted.
	DeactivateAllPersonas(ctx context.Context, ownerID string) error

	// GetActivePersona resolves the owner's active pointer to a persona.
	// Returns ErrNotFound when no persona is active, when the referenced
	// persona is gone, belongs to someone else, or is flagged inactive.
	GetActivePersona(ctx context.Context, ownerID string) (*core.Persona, error)

	// GetUser retrieves the user record carrying the active persona pointer.
	// A user that has never activated a persona yields a zero-value record,
	// not an error.
	GetUser(ctx context.Context, id string) (*core.User, error)
}

// FolderRepository provides operations for organizing documents into
// folders. Folders are presentational; they carry no isolation semantics.
type FolderRepository interface {
	Repository

	// CreateFolder adds a folder to storage.
	// Generates an ID if none is set and stamps CreatedAt.
	CreateFolder(ctx context.Context, folder *core.Folder) (*core.Folder, error)

	// GetFolder retrieves a single folder by ID.
	// Returns ErrNotFound if the folder doesn't exist.
	GetFolder(ctx context.Context, id string) (*core.Folder, error)

	// ListFoldersByOwner retrieves all folders belonging to ownerID.
	ListFoldersByOwner(ctx context.Context, ownerID string) ([]*core.Folder, error)

	// DeleteFolder removes a folder and detaches any documents that pointed
	// at it in the same transaction. Documents themselves are not deleted.
	// Returns ErrNotFound if the folder doesn't exist.
	DeleteFolder(ctx context.Context, id string) error
}
