package tenant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nacoslite/nacoslite/pkg/storage"
	"github.com/nacoslite/nacoslite/pkg/types"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	store, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewManager(store)
}

// TestCreateWithCustomID tests namespace creation with an explicit id
func TestCreateWithCustomID(t *testing.T) {
	m := newTestManager(t)

	id, err := m.Create(context.Background(), "dev", "Development", "dev stage")
	require.NoError(t, err)
	assert.Equal(t, "dev", id)

	ns, err := m.Get(context.Background(), "dev")
	require.NoError(t, err)
	assert.Equal(t, "Development", ns.Name)
	assert.Equal(t, "console", ns.CreateSource)
}

// TestCreateGeneratesID tests the UUID fallback for a blank custom id
func TestCreateGeneratesID(t *testing.T) {
	m := newTestManager(t)

	id, err := m.Create(context.Background(), "", "Auto", "")
	require.NoError(t, err)
	assert.Len(t, id, 36)
}

// TestPublicNamespaceReserved tests that the builtin namespace resists
// create, update and delete
func TestPublicNamespaceReserved(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.Create(ctx, types.DefaultNamespace, "nope", "")
	assert.ErrorIs(t, err, ErrReserved)
	assert.ErrorIs(t, m.Update(ctx, types.DefaultNamespace, "nope", ""), ErrReserved)
	assert.ErrorIs(t, m.Delete(ctx, types.DefaultNamespace), ErrReserved)
	assert.ErrorIs(t, m.Delete(ctx, ""), ErrReserved)
}

// TestUpdateAndDelete tests the rename and removal paths
func TestUpdateAndDelete(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.Create(ctx, "stage", "Staging", "")
	require.NoError(t, err)

	require.NoError(t, m.Update(ctx, "stage", "Staging 2", "second"))
	ns, err := m.Get(ctx, "stage")
	require.NoError(t, err)
	assert.Equal(t, "Staging 2", ns.Name)

	require.NoError(t, m.Delete(ctx, "stage"))
	_, err = m.Get(ctx, "stage")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
