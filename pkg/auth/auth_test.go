package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nacoslite/nacoslite/pkg/storage"
	"github.com/nacoslite/nacoslite/pkg/types"
)

func newTestManager(t *testing.T) (*Manager, storage.Store) {
	t.Helper()
	store, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	m := NewManager(store)
	require.NoError(t, m.EnsureDefaultUser(context.Background()))
	return m, store
}

// TestLoginDefaultUser tests the seeded nacos/nacos account
func TestLoginDefaultUser(t *testing.T) {
	m, _ := newTestManager(t)

	token, err := m.Login(context.Background(), DefaultUsername, "nacos")
	require.NoError(t, err)
	assert.NotEmpty(t, token.Token)
	assert.NotContains(t, token.Token, "-")
	assert.Equal(t, int64(18000), token.ExpiresAt-token.CreatedAt)

	username, err := m.Validate(context.Background(), token.Token)
	require.NoError(t, err)
	assert.Equal(t, DefaultUsername, username)
}

// TestLoginRejectsBadCredentials tests wrong password and unknown user
func TestLoginRejectsBadCredentials(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Login(ctx, DefaultUsername, "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = m.Login(ctx, "nobody", "nacos")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

// TestValidateRejectsBadTokens tests empty, unknown and expired tokens
func TestValidateRejectsBadTokens(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	_, err := m.Validate(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.Validate(ctx, "no-such-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := &types.Token{
		Token:     "stale",
		Username:  DefaultUsername,
		CreatedAt: time.Now().Add(-6 * time.Hour).Unix(),
		ExpiresAt: time.Now().Add(-time.Hour).Unix(),
	}
	require.NoError(t, store.CreateToken(ctx, expired))

	_, err = m.Validate(ctx, "stale")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// Validation dropped the expired row.
	_, err = store.GetToken(ctx, "stale")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

// TestRefreshInvalidatesOldToken tests the token exchange
func TestRefreshInvalidatesOldToken(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	old, err := m.Login(ctx, DefaultUsername, "nacos")
	require.NoError(t, err)

	fresh, err := m.Refresh(ctx, old.Token)
	require.NoError(t, err)
	assert.NotEqual(t, old.Token, fresh.Token)

	_, err = m.Validate(ctx, old.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	username, err := m.Validate(ctx, fresh.Token)
	require.NoError(t, err)
	assert.Equal(t, DefaultUsername, username)
}
