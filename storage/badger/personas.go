package badger

import (
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/carrelhq/carrel/core"
	"github.com/carrelhq/carrel/storage"
)

// PersonaRepository implements storage.PersonaRepository for BadgerDB.
//
// The invariants around the active persona pointer are enforced here,
// inside single transactions, so no caller sequence can leave a user
// pointing at a deleted or foreign persona.
type PersonaRepository struct {
	backend *Backend
}

var _ storage.PersonaRepository = (*PersonaRepository)(nil)

// NewPersonaRepository creates a new PersonaRepository.
func NewPersonaRepository(backend *Backend) *PersonaRepository {
	return &PersonaRepository{backend: backend}
}

// Close is a no-op; the backend's lifetime is owned by the caller.
func (r *PersonaRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *PersonaRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// CreatePersona adds a persona to storage.
func (r *PersonaRepository) CreatePersona(ctx context.Context, persona *core.Persona) (*core.Persona, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		if persona == nil {
			return core.ErrInvalidPersona
		}
		if persona.Id == "" {
			persona.Id = core.NewID()
		}
		persona.CreatedAt = time.Now().UTC()
		persona.UpdatedAt = persona.CreatedAt

		if err := core.ValidatePersona(persona); err != nil {
			return err
		}

		key := makePersonaKey(persona.Id)
		existing, err := r.readPersona(tx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			return storage.ErrDuplicateKey
		}

		if err := tx.Set(key, storage.MarshalPersona(persona)); err != nil {
			return err
		}
		ownerKey := makePersonaOwnerKey(persona.OwnerId, persona.Id)
		if err := tx.Set(ownerKey, []byte(persona.Id)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)

	return persona, err
}

// GetPersona retrieves a single persona by ID.
func (r *PersonaRepository) GetPersona(ctx context.Context, id string) (*core.Persona, error) {
	var result *core.Persona
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = r.readPersona(tx, makePersonaKey(id))
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

// ListPersonasByOwner retrieves all personas belonging to ownerID, oldest
// first.
func (r *PersonaRepository) ListPersonasByOwner(ctx context.Context, ownerID string) ([]*core.Persona, error) {
	var results []*core.Persona
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		results, err = r.listOwnerPersonas(tx, ownerID)
		return err
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b *core.Persona) int {
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

// UpdatePersona updates an existing persona.
func (r *PersonaRepository) UpdatePersona(ctx context.Context, persona *core.Persona) (*core.Persona, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		if persona == nil {
			return core.ErrInvalidPersona
		}

		key := makePersonaKey(persona.Id)
		old, err := r.readPersona(tx, key)
		if err != nil {
			return err
		}
		if old == nil {
			return storage.ErrNotFound
		}

		persona.CreatedAt = old.CreatedAt
		persona.UpdatedAt = time.Now().UTC()

		if err := core.ValidatePersona(persona); err != nil {
			return err
		}

		if err := tx.Set(key, storage.MarshalPersona(persona)); err != nil {
			return err
		}

		// Move the ownership index entry if the persona changed hands.
		if old.OwnerId != persona.OwnerId {
			if err := tx.Delete(makePersonaOwnerKey(old.OwnerId, old.Id)); err != nil {
				return err
			}
			if err := tx.Set(makePersonaOwnerKey(persona.OwnerId, persona.Id), []byte(persona.Id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	return persona, err
}

// DeletePersona removes a persona. Deleting the owner's active persona
// clears the active pointer in the same transaction.
func (r *PersonaRepository) DeletePersona(ctx context.Context, id string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makePersonaKey(id)
		persona, err := r.readPersona(tx, key)
		if err != nil {
			return err
		}
		if persona == nil {
			return storage.ErrNotFound
		}

		if err := tx.Delete(key); err != nil {
			return err
		}
		if err := tx.Delete(makePersonaOwnerKey(persona.OwnerId, persona.Id)); err != nil {
			return err
		}

		// Never leave a dangling active reference behind.
		user, err := r.readUser(tx, makeUserKey(persona.OwnerId))
		if err != nil {
			return err
		}
		if user != nil && user.ActivePersonaId == id {
			user.ActivePersonaId = ""
			if err := tx.Set(makeUserKey(user.Id), storage.MarshalUser(user)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// ActivatePersona marks the persona active for its owner. The owner's other
// personas are deactivated and the active pointer is set, all in one
// transaction.
func (r *PersonaRepository) ActivatePersona(ctx context.Context, ownerID, personaID string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		target, err := r.readPersona(tx, makePersonaKey(personaID))
		if err != nil {
			return err
		}
		if target == nil || target.OwnerId != ownerID {
			return storage.ErrNotFound
		}

		personas, err := r.listOwnerPersonas(tx, ownerID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		for _, persona := range personas {
			active := persona.Id == personaID
			if persona.Active == active {
				continue
			}
			persona.Active = active
			persona.UpdatedAt = now
			if err := tx.Set(makePersonaKey(persona.Id), storage.MarshalPersona(persona)); err != nil {
				return err
			}
		}

		user := &core.User{Id: ownerID, ActivePersonaId: personaID}
		if err := tx.Set(makeUserKey(ownerID), storage.MarshalUser(user)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// DeactivateAllPersonas clears the owner's active pointer and every active
// flag without deleting any persona.
func (r *PersonaRepository) DeactivateAllPersonas(ctx context.Context, ownerID string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		personas, err := r.listOwnerPersonas(tx, ownerID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		for _, persona := range personas {
			if !persona.Active {
				continue
			}
			persona.Active = false
			persona.UpdatedAt = now
			if err := tx.Set(makePersonaKey(persona.Id), storage.MarshalPersona(persona)); err != nil {
				return err
			}
		}

		user := &core.User{Id: ownerID}
		if err := tx.Set(makeUserKey(ownerID), storage.MarshalUser(user)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetActivePersona resolves the owner's active pointer to a persona.
func (r *PersonaRepository) GetActivePersona(ctx context.Context, ownerID string) (*core.Persona, error) {
	var result *core.Persona
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		user, err := r.readUser(tx, makeUserKey(ownerID))
		if err != nil {
			return err
		}
		if user == nil || user.ActivePersonaId == "" {
			return storage.ErrNotFound
		}

		persona, err := r.readPersona(tx, makePersonaKey(user.ActivePersonaId))
		if err != nil {
			return err
		}
		// The pointer must dereference to a live, active persona that still
		// belongs to this owner.
		if persona == nil || persona.OwnerId != ownerID || !persona.Active {
			return storage.ErrNotFound
		}

		result = persona
		return nil
	}, false)
	return result, err
}

// GetUser retrieves the user record carrying the active persona pointer.
// Users that never activated a persona yield a zero-value record.
func (r *PersonaRepository) GetUser(ctx context.Context, id string) (*core.User, error) {
	var result *core.User
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = r.readUser(tx, makeUserKey(id))
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = &core.User{Id: id}
	}
	return result, nil
}

// Helper methods

// readPersona reads a persona from the transaction.
func (r *PersonaRepository) readPersona(tx *badger.Txn, key []byte) (*core.Persona, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var persona *core.Persona
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		persona, unmarshalErr = storage.UnmarshalPersona(val)
		return unmarshalErr
	})
	return persona, err
}

// readUser reads a user record from the transaction.
func (r *PersonaRepository) readUser(tx *badger.Txn, key []byte) (*core.User, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var user *core.User
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		user, unmarshalErr = storage.UnmarshalUser(val)
		return unmarshalErr
	})
	return user, err
}

// listOwnerPersonas collects every persona of one owner via the ownership
// index.
func (r *PersonaRepository) listOwnerPersonas(tx *badger.Txn, ownerID string) ([]*core.Persona, error) {
	var results []*core.Persona

	opts := badger.DefaultIteratorOptions
	opts.Prefix = makePersonaOwnerPrefix(ownerID)
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		var personaID string
		if err := iter.Item().Value(func(val []byte) error {
			personaID = string(val)
			return nil
		}); err != nil {
			return nil, err
		}

		persona, err := r.readPersona(tx, makePersonaKey(personaID))
		if err != nil {
			return nil, err
		}
		if persona != nil {
			results = append(results, persona)
		}
	}
	return results, nil
}
