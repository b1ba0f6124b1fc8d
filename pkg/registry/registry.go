package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nacoslite/nacoslite/pkg/storage"
	"github.com/nacoslite/nacoslite/pkg/types"
)

// ErrServiceMissing is returned when an instance addresses a service
// that was never created
var ErrServiceMissing = errors.New("service not found")

// ClientBeatInterval is the heartbeat interval suggested to clients, ms
const ClientBeatInterval = 5000

// Manager orchestrates the service registry over the store
type Manager struct {
	store storage.Store
}

// NewManager creates a registry manager
func NewManager(store storage.Store) *Manager {
	return &Manager{store: store}
}

// --- Services ---

// CreateService registers service metadata
func (m *Manager) CreateService(ctx context.Context, svc *types.Service) error {
	svc.NamespaceID = types.NormalizeTenant(svc.NamespaceID)
	svc.GroupName = types.NormalizeGroup(svc.GroupName)
	now := time.Now().Unix()
	svc.Created = now
	svc.Modified = now
	return m.store.CreateService(ctx, svc)
}

// GetService returns the service row
func (m *Manager) GetService(ctx context.Context, namespaceID, group, name string) (*types.Service, error) {
	return m.store.GetService(ctx, namespaceID, group, name)
}

// UpdateService merges the update into the existing row. Metadata is
// merged key-level: new keys win, absent keys survive.
func (m *Manager) UpdateService(ctx context.Context, upd *types.Service) error {
	existing, err := m.store.GetService(ctx, upd.NamespaceID, upd.GroupName, upd.Name)
	if err != nil {
		return err
	}
	existing.ProtectThreshold = upd.ProtectThreshold
	if upd.SelectorType != "" {
		existing.SelectorType = upd.SelectorType
	}
	if upd.Selector != "" {
		existing.Selector = upd.Selector
	}
	for k, v := range upd.Metadata {
		if existing.Metadata == nil {
			existing.Metadata = map[string]string{}
		}
		existing.Metadata[k] = v
	}
	existing.Modified = time.Now().Unix()
	return m.store.UpdateService(ctx, existing)
}

// DeleteService removes the service and all of its instances
func (m *Manager) DeleteService(ctx context.Context, namespaceID, group, name string) error {
	return m.store.DeleteService(ctx, namespaceID, group, name)
}

// ListServices pages through service names in a namespace
func (m *Manager) ListServices(ctx context.Context, namespaceID, group, nameFilter string, pageNo, pageSize int) ([]*types.Service, int64, error) {
	return m.store.ListServices(ctx, namespaceID, group, nameFilter, pageNo, pageSize)
}

// --- Instances ---

// Register upserts an instance. The service row must already exist.
func (m *Manager) Register(ctx context.Context, ins *types.Instance) error {
	ins.NamespaceID = types.NormalizeTenant(ins.NamespaceID)
	ins.GroupName = types.NormalizeGroup(ins.GroupName)
	ins.ClusterName = types.NormalizeCluster(ins.ClusterName)
	if ins.InstanceID == "" {
		ins.InstanceID = types.BuildInstanceID(ins.IP, ins.Port, ins.ClusterName, ins.GroupName)
	}
	if ins.Weight == 0 {
		ins.Weight = 1
	}

	if _, err := m.store.GetService(ctx, ins.NamespaceID, ins.GroupName, ins.ServiceName); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s@@%s", ErrServiceMissing, ins.GroupName, ins.ServiceName)
		}
		return err
	}

	now := time.Now().Unix()
	ins.Created = now
	ins.Modified = now
	return m.store.UpsertInstance(ctx, ins)
}

// Deregister removes an instance; removing a missing instance succeeds
func (m *Manager) Deregister(ctx context.Context, namespaceID, group, service, ip string, port int, cluster string) error {
	group = types.NormalizeGroup(group)
	cluster = types.NormalizeCluster(cluster)
	id := types.BuildInstanceID(ip, port, cluster, group)
	return m.store.DeleteInstance(ctx, namespaceID, group, service, id)
}

// GetInstance returns one instance by address
func (m *Manager) GetInstance(ctx context.Context, namespaceID, group, service, ip string, port int, cluster string) (*types.Instance, error) {
	group = types.NormalizeGroup(group)
	cluster = types.NormalizeCluster(cluster)
	id := types.BuildInstanceID(ip, port, cluster, group)
	return m.store.GetInstance(ctx, namespaceID, group, service, id)
}

// InstancePatch carries the optional fields of a PATCH; nil pointers
// leave the stored value alone.
type InstancePatch struct {
	Weight   *float64
	Enabled  *bool
	Healthy  *bool
	Metadata map[string]string
}

// Patch merges the patch into an existing instance. A missing instance
// is the caller's error (404), unlike deregister.
func (m *Manager) Patch(ctx context.Context, namespaceID, group, service, ip string, port int, cluster string, patch InstancePatch) (*types.Instance, error) {
	ins, err := m.GetInstance(ctx, namespaceID, group, service, ip, port, cluster)
	if err != nil {
		return nil, err
	}
	if patch.Weight != nil {
		ins.Weight = *patch.Weight
	}
	if patch.Enabled != nil {
		ins.Enabled = *patch.Enabled
	}
	if patch.Healthy != nil {
		ins.Healthy = *patch.Healthy
	}
	for k, v := range patch.Metadata {
		if ins.Metadata == nil {
			ins.Metadata = map[string]string{}
		}
		ins.Metadata[k] = v
	}
	ins.Modified = time.Now().Unix()
	if err := m.store.UpsertInstance(ctx, ins); err != nil {
		return nil, err
	}
	return ins, nil
}

// ListInstances returns the service's instances, optionally restricted
// to the named clusters and to healthy ones. Filtering happens here so
// response sizes stay small.
func (m *Manager) ListInstances(ctx context.Context, namespaceID, group, service string, clusters []string, healthyOnly bool) ([]*types.Instance, error) {
	all, err := m.store.ListInstances(ctx, namespaceID, group, service)
	if err != nil {
		return nil, err
	}
	clusterSet := map[string]bool{}
	for _, c := range clusters {
		if c != "" {
			clusterSet[c] = true
		}
	}
	var out []*types.Instance
	for _, ins := range all {
		if len(clusterSet) > 0 && !clusterSet[ins.ClusterName] {
			continue
		}
		if healthyOnly && !ins.Healthy {
			continue
		}
		out = append(out, ins)
	}
	return out, nil
}

// Heartbeat refreshes an instance's soft state. Reports whether the
// instance existed; a miss is not an error — the client re-registers.
func (m *Manager) Heartbeat(ctx context.Context, namespaceID, group, service, ip string, port int, cluster string) (bool, error) {
	ins, err := m.GetInstance(ctx, namespaceID, group, service, ip, port, cluster)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	ins.Healthy = true
	ins.Modified = time.Now().Unix()
	if err := m.store.UpsertInstance(ctx, ins); err != nil {
		return false, err
	}
	return true, nil
}

// UpdateHealth sets the health flag directly (console override)
func (m *Manager) UpdateHealth(ctx context.Context, namespaceID, group, service, ip string, port int, cluster string, healthy bool) error {
	ins, err := m.GetInstance(ctx, namespaceID, group, service, ip, port, cluster)
	if err != nil {
		return err
	}
	ins.Healthy = healthy
	ins.Modified = time.Now().Unix()
	return m.store.UpsertInstance(ctx, ins)
}

// BatchUpdateMetadata merges the metadata map into every addressed
// instance that exists, returning the ids it touched.
func (m *Manager) BatchUpdateMetadata(ctx context.Context, namespaceID, group, service string, targets []*types.Instance, metadata map[string]string) ([]string, error) {
	var updated []string
	for _, t := range targets {
		cluster := types.NormalizeCluster(t.ClusterName)
		ins, err := m.GetInstance(ctx, namespaceID, group, service, t.IP, t.Port, cluster)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, err
		}
		for k, v := range metadata {
			if ins.Metadata == nil {
				ins.Metadata = map[string]string{}
			}
			ins.Metadata[k] = v
		}
		ins.Modified = time.Now().Unix()
		if err := m.store.UpsertInstance(ctx, ins); err != nil {
			return nil, err
		}
		updated = append(updated, ins.InstanceID)
	}
	return updated, nil
}

// BatchDeleteMetadata removes the named keys from every addressed
// instance that exists
func (m *Manager) BatchDeleteMetadata(ctx context.Context, namespaceID, group, service string, targets []*types.Instance, keys []string) ([]string, error) {
	var updated []string
	for _, t := range targets {
		cluster := types.NormalizeCluster(t.ClusterName)
		ins, err := m.GetInstance(ctx, namespaceID, group, service, t.IP, t.Port, cluster)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, err
		}
		for _, k := range keys {
			delete(ins.Metadata, k)
		}
		ins.Modified = time.Now().Unix()
		if err := m.store.UpsertInstance(ctx, ins); err != nil {
			return nil, err
		}
		updated = append(updated, ins.InstanceID)
	}
	return updated, nil
}

// Statuses returns the "ip:port_healthy" projection for a service
func (m *Manager) Statuses(ctx context.Context, namespaceID, group, service string) ([]string, error) {
	all, err := m.store.ListInstances(ctx, namespaceID, group, service)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(all))
	for _, ins := range all {
		out = append(out, fmt.Sprintf("%s:%d_%t", ins.IP, ins.Port, ins.Healthy))
	}
	return out, nil
}

// ReachProtectionThreshold reports whether the healthy fraction of the
// listed instances has fallen below the service's protect threshold.
func ReachProtectionThreshold(svc *types.Service, instances []*types.Instance) bool {
	if svc == nil || svc.ProtectThreshold <= 0 || len(instances) == 0 {
		return false
	}
	healthy := 0
	for _, ins := range instances {
		if ins.Healthy {
			healthy++
		}
	}
	return float64(healthy)/float64(len(instances)) < svc.ProtectThreshold
}
