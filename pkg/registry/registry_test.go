package registry

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

func createService(t *testing.T, m *Manager, name string) {
	t.Helper()
	require.NoError(t, m.CreateService(context.Background(), &types.Service{
		NamespaceID: "public", GroupName: types.DefaultGroup, Name: name,
	}))
}

func testInstance(service, ip string, port int) *types.Instance {
	return &types.Instance{
		NamespaceID: "public",
		GroupName:   types.DefaultGroup,
		ServiceName: service,
		IP:          ip,
		Port:        port,
		Healthy:     true,
		Enabled:     true,
		Ephemeral:   true,
	}
}

// TestRegisterRequiresService tests that registering against an
// unknown service is refused
func TestRegisterRequiresService(t *testing.T) {
	m := newTestManager(t)

	err := m.Register(context.Background(), testInstance("ghost", "10.0.0.1", 8080))
	assert.ErrorIs(t, err, ErrServiceMissing)
}

// TestRegisterDefaults tests id construction and the weight default
func TestRegisterDefaults(t *testing.T) {
	m := newTestManager(t)
	createService(t, m, "orders")

	ins := testInstance("orders", "10.0.0.1", 8080)
	require.NoError(t, m.Register(context.Background(), ins))

	got, err := m.GetInstance(context.Background(), "public", types.DefaultGroup, "orders",
		"10.0.0.1", 8080, "")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1#8080#DEFAULT#DEFAULT_GROUP", got.InstanceID)
	assert.Equal(t, float64(1), got.Weight)
	assert.Equal(t, types.DefaultCluster, got.ClusterName)
}

// TestDeregisterIsIdempotent tests that removing a missing instance succeeds
func TestDeregisterIsIdempotent(t *testing.T) {
	m := newTestManager(t)
	createService(t, m, "orders")

	err := m.Deregister(context.Background(), "public", types.DefaultGroup, "orders",
		"10.0.0.1", 8080, "")
	assert.NoError(t, err)
}

// TestHeartbeat tests that a beat revives health and a miss is not an error
func TestHeartbeat(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	createService(t, m, "orders")

	ins := testInstance("orders", "10.0.0.1", 8080)
	ins.Healthy = false
	require.NoError(t, m.Register(ctx, ins))

	found, err := m.Heartbeat(ctx, "public", types.DefaultGroup, "orders", "10.0.0.1", 8080, "")
	require.NoError(t, err)
	assert.True(t, found)

	got, err := m.GetInstance(ctx, "public", types.DefaultGroup, "orders", "10.0.0.1", 8080, "")
	require.NoError(t, err)
	assert.True(t, got.Healthy)

	found, err = m.Heartbeat(ctx, "public", types.DefaultGroup, "orders", "10.9.9.9", 1, "")
	require.NoError(t, err)
	assert.False(t, found)
}

// TestPatchMergesFields tests partial updates with key-level metadata merge
func TestPatchMergesFields(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	createService(t, m, "orders")

	ins := testInstance("orders", "10.0.0.1", 8080)
	ins.Weight = 2
	ins.Metadata = map[string]string{"zone": "a", "version": "1"}
	require.NoError(t, m.Register(ctx, ins))

	weight := 5.0
	enabled := false
	got, err := m.Patch(ctx, "public", types.DefaultGroup, "orders", "10.0.0.1", 8080, "",
		InstancePatch{
			Weight:   &weight,
			Enabled:  &enabled,
			Metadata: map[string]string{"version": "2", "region": "eu"},
		})
	require.NoError(t, err)
	assert.Equal(t, 5.0, got.Weight)
	assert.False(t, got.Enabled)
	assert.True(t, got.Healthy) // untouched
	assert.Equal(t, map[string]string{"zone": "a", "version": "2", "region": "eu"}, got.Metadata)
}

// TestPatchMissingInstance tests the 404-style miss
func TestPatchMissingInstance(t *testing.T) {
	m := newTestManager(t)
	createService(t, m, "orders")

	_, err := m.Patch(context.Background(), "public", types.DefaultGroup, "orders",
		"10.0.0.1", 8080, "", InstancePatch{})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

// TestListInstancesFilters tests cluster and healthy-only filtering
func TestListInstancesFilters(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	createService(t, m, "orders")

	a := testInstance("orders", "10.0.0.1", 8080)
	b := testInstance("orders", "10.0.0.2", 8080)
	b.ClusterName = "edge"
	c := testInstance("orders", "10.0.0.3", 8080)
	c.Healthy = false
	for _, ins := range []*types.Instance{a, b, c} {
		require.NoError(t, m.Register(ctx, ins))
	}

	all, err := m.ListInstances(ctx, "public", types.DefaultGroup, "orders", nil, false)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	healthy, err := m.ListInstances(ctx, "public", types.DefaultGroup, "orders", nil, true)
	require.NoError(t, err)
	assert.Len(t, healthy, 2)

	edge, err := m.ListInstances(ctx, "public", types.DefaultGroup, "orders", []string{"edge"}, false)
	require.NoError(t, err)
	require.Len(t, edge, 1)
	assert.Equal(t, "10.0.0.2", edge[0].IP)
}

// TestBatchMetadata tests the merge and delete batch operations
func TestBatchMetadata(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	createService(t, m, "orders")

	ins := testInstance("orders", "10.0.0.1", 8080)
	ins.Metadata = map[string]string{"zone": "a"}
	require.NoError(t, m.Register(ctx, ins))

	targets := []*types.Instance{
		{IP: "10.0.0.1", Port: 8080},
		{IP: "10.0.0.2", Port: 8080}, // unknown instances are skipped
	}
	updated, err := m.BatchUpdateMetadata(ctx, "public", types.DefaultGroup, "orders",
		targets, map[string]string{"version": "2"})
	require.NoError(t, err)
	assert.Len(t, updated, 1)

	got, err := m.GetInstance(ctx, "public", types.DefaultGroup, "orders", "10.0.0.1", 8080, "")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"zone": "a", "version": "2"}, got.Metadata)

	deleted, err := m.BatchDeleteMetadata(ctx, "public", types.DefaultGroup, "orders",
		targets, []string{"zone"})
	require.NoError(t, err)
	assert.Len(t, deleted, 1)

	got, err = m.GetInstance(ctx, "public", types.DefaultGroup, "orders", "10.0.0.1", 8080, "")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"version": "2"}, got.Metadata)
}

// TestStatuses tests the "ip:port_healthy" projection
func TestStatuses(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	createService(t, m, "orders")

	a := testInstance("orders", "10.0.0.1", 8080)
	b := testInstance("orders", "10.0.0.2", 8081)
	b.Healthy = false
	require.NoError(t, m.Register(ctx, a))
	require.NoError(t, m.Register(ctx, b))

	ips, err := m.Statuses(ctx, "public", types.DefaultGroup, "orders")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"10.0.0.1:8080_true", "10.0.0.2:8081_false"}, ips)
}

// TestUpdateServiceMergesMetadata tests the service update semantics
func TestUpdateServiceMergesMetadata(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	require.NoError(t, m.CreateService(ctx, &types.Service{
		NamespaceID: "public", GroupName: types.DefaultGroup, Name: "orders",
		Metadata: map[string]string{"team": "core", "tier": "1"},
	}))

	require.NoError(t, m.UpdateService(ctx, &types.Service{
		NamespaceID: "public", GroupName: types.DefaultGroup, Name: "orders",
		ProtectThreshold: 0.5,
		Metadata:         map[string]string{"tier": "2"},
	}))

	got, err := m.GetService(ctx, "public", types.DefaultGroup, "orders")
	require.NoError(t, err)
	assert.Equal(t, 0.5, got.ProtectThreshold)
	assert.Equal(t, map[string]string{"team": "core", "tier": "2"}, got.Metadata)
}

// TestReachProtectionThreshold tests the healthy-fraction computation
func TestReachProtectionThreshold(t *testing.T) {
	healthy := &types.Instance{Healthy: true}
	down := &types.Instance{Healthy: false}

	tests := []struct {
		name      string
		threshold float64
		instances []*types.Instance
		expected  bool
	}{
		{"zero threshold never trips", 0, []*types.Instance{down}, false},
		{"all healthy stays below", 0.5, []*types.Instance{healthy, healthy}, false},
		{"half healthy at threshold", 0.5, []*types.Instance{healthy, down}, false},
		{"mostly down trips", 0.6, []*types.Instance{healthy, down, down}, true},
		{"no instances never trips", 0.9, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &types.Service{ProtectThreshold: tt.threshold}
			assert.Equal(t, tt.expected, ReachProtectionThreshold(svc, tt.instances))
		})
	}
}
