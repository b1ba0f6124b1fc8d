package tenant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nacoslite/nacoslite/pkg/log"
	"github.com/nacoslite/nacoslite/pkg/storage"
	"github.com/nacoslite/nacoslite/pkg/types"
)

// ErrReserved is returned for mutations addressing the public namespace
var ErrReserved = errors.New("namespace is reserved")

// Manager handles namespace CRUD over the store
type Manager struct {
	store storage.Store
}

// NewManager creates a namespace manager
func NewManager(store storage.Store) *Manager {
	return &Manager{store: store}
}

// List returns all namespaces with their config counts
func (m *Manager) List(ctx context.Context) ([]*types.Namespace, error) {
	return m.store.ListNamespaces(ctx)
}

// Get returns one namespace by id
func (m *Manager) Get(ctx context.Context, id string) (*types.Namespace, error) {
	return m.store.GetNamespace(ctx, types.NormalizeTenant(id))
}

// Create adds a namespace. An empty customID generates a UUID for the
// tenant id, the console's behavior when the user leaves the field blank.
func (m *Manager) Create(ctx context.Context, customID, name, desc string) (string, error) {
	id := customID
	if id == "" {
		id = uuid.New().String()
	}
	if id == types.DefaultNamespace {
		return "", ErrReserved
	}
	now := time.Now().Unix()
	ns := &types.Namespace{
		ID:           id,
		Name:         name,
		Desc:         desc,
		CreateSource: "console",
		Created:      now,
		Modified:     now,
	}
	if err := m.store.CreateNamespace(ctx, ns); err != nil {
		return "", fmt.Errorf("create namespace %s: %w", id, err)
	}
	return id, nil
}

// Update renames a namespace
func (m *Manager) Update(ctx context.Context, id, name, desc string) error {
	if id == types.DefaultNamespace {
		return ErrReserved
	}
	ns := &types.Namespace{ID: id, Name: name, Desc: desc, Modified: time.Now().Unix()}
	return m.store.UpdateNamespace(ctx, ns)
}

// Delete removes a namespace and everything in it. The public namespace
// is never deletable.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if id == "" || id == types.DefaultNamespace {
		return ErrReserved
	}
	if err := m.store.DeleteNamespace(ctx, id); err != nil {
		return err
	}
	logger := log.WithComponent("tenant")
	logger.Info().Str("namespace", id).Msg("namespace deleted")
	return nil
}
