package persona

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carrelhq/carrel/core"
	"github.com/carrelhq/carrel/storage"
	"github.com/carrelhq/carrel/storage/badger"
)

func newService(t *testing.T) *Service {
	t.Helper()

	_, personas, _, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	service, err := NewService(personas)
	require.NoError(t, err)
	return service
}

func TestNewService_RequiresRepository(t *testing.T) {
	_, err := NewService(nil)
	assert.Equal(t, ErrPersonaRepositoryRequired, err)
}

func TestServiceCreateAndGet(t *testing.T) {
	service := newService(t)
	ctx := context.Background()

	created, err := service.Create(ctx, "alice", "Tutor", "Explain step by step.")
	require.NoError(t, err)
	assert.NotEmpty(t, created.Id)
	assert.False(t, created.Active)

	got, err := service.Get(ctx, "alice", created.Id)
	require.NoError(t, err)
	assert.Equal(t, "Tutor", got.Name)
	assert.Equal(t, "Explain step by step.", got.Prompt)

	_, err = service.Create(ctx, "alice", "", "prompt")
	assert.ErrorIs(t, err, core.ErrEmptyPersonaName)
	_, err = service.Create(ctx, "alice", "name", "")
	assert.ErrorIs(t, err, core.ErrEmptyPersonaPrompt)
}

func TestServiceOwnershipBoundary(t *testing.T) {
	service := newService(t)
	ctx := context.Background()

	created, err := service.Create(ctx, "alice", "Tutor", "Explain step by step.")
	require.NoError(t, err)

	// Another owner's persona behaves as missing.
	_, err = service.Get(ctx, "bob", created.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = service.Update(ctx, "bob", created.Id, "Hijacked", "")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = service.Activate(ctx, "bob", created.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = service.Delete(ctx, "bob", created.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Alice still owns an untouched persona.
	got, err := service.Get(ctx, "alice", created.Id)
	require.NoError(t, err)
	assert.Equal(t, "Tutor", got.Name)
}

func TestServiceUpdatePartialFields(t *testing.T) {
	service := newService(t)
	ctx := context.Background()

	created, err := service.Create(ctx, "alice", "Tutor", "Explain step by step.")
	require.NoError(t, err)

	updated, err := service.Update(ctx, "alice", created.Id, "Mentor", "")
	require.NoError(t, err)
	assert.Equal(t, "Mentor", updated.Name)
	assert.Equal(t, "Explain step by step.", updated.Prompt)

	updated, err = service.Update(ctx, "alice", created.Id, "", "Be brief.")
	require.NoError(t, err)
	assert.Equal(t, "Mentor", updated.Name)
	assert.Equal(t, "Be brief.", updated.Prompt)
}

func TestServiceActivateSwitchesActive(t *testing.T) {
	service := newService(t)
	ctx := context.Background()

	first, err := service.Create(ctx, "alice", "Tutor", "Explain step by step.")
	require.NoError(t, err)
	second, err := service.Create(ctx, "alice", "Editor", "Tighten the prose.")
	require.NoError(t, err)

	_, err = service.Active(ctx, "alice")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, service.Activate(ctx, "alice", first.Id))
	active, err := service.Active(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, first.Id, active.Id)

	// Activating the second deactivates the first.
	require.NoError(t, service.Activate(ctx, "alice", second.Id))
	active, err = service.Active(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, second.Id, active.Id)

	former, err := service.Get(ctx, "alice", first.Id)
	require.NoError(t, err)
	assert.False(t, former.Active)
}

func TestServiceDeleteActiveClearsPointer(t *testing.T) {
	service := newService(t)
	ctx := context.Background()

	created, err := service.Create(ctx, "alice", "Tutor", "Explain step by step.")
	require.NoError(t, err)
	require.NoError(t, service.Activate(ctx, "alice", created.Id))

	require.NoError(t, service.Delete(ctx, "alice", created.Id))

	_, err = service.Get(ctx, "alice", created.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = service.Active(ctx, "alice")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	personas, err := service.List(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, personas)
}
