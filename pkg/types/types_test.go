package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestNormalization tests the ingress rewriting of empty identifiers
func TestNormalization(t *testing.T) {
	tests := []struct {
		name     string
		fn       func(string) string
		in       string
		expected string
	}{
		{"empty tenant becomes public", NormalizeTenant, "", "public"},
		{"custom tenant kept", NormalizeTenant, "dev", "dev"},
		{"empty group becomes DEFAULT_GROUP", NormalizeGroup, "", "DEFAULT_GROUP"},
		{"custom group kept", NormalizeGroup, "APP", "APP"},
		{"empty cluster becomes DEFAULT", NormalizeCluster, "", "DEFAULT"},
		{"custom cluster kept", NormalizeCluster, "c1", "c1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.fn(tt.in))
		})
	}
}

// TestConfigKeyNormalized tests triple normalization
func TestConfigKeyNormalized(t *testing.T) {
	key := ConfigKey{DataID: "app.yaml"}.Normalized()
	assert.Equal(t, "app.yaml", key.DataID)
	assert.Equal(t, DefaultGroup, key.Group)
	assert.Equal(t, DefaultNamespace, key.Tenant)
}

// TestBuildInstanceID tests the canonical instance id format
func TestBuildInstanceID(t *testing.T) {
	id := BuildInstanceID("10.0.0.1", 8080, "DEFAULT", "DEFAULT_GROUP")
	assert.Equal(t, "10.0.0.1#8080#DEFAULT#DEFAULT_GROUP", id)
}

// TestGroupedName tests the wire form of a service name
func TestGroupedName(t *testing.T) {
	svc := &Service{GroupName: "DEFAULT_GROUP", Name: "orders"}
	assert.Equal(t, "DEFAULT_GROUP@@orders", svc.GroupedName())
}
