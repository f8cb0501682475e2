package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	p, err := Parse([]byte("model_name: bench-node\nunique_id: 0a0b0c0d0e0f\n"))
	require.NoError(t, err)
	assert.Equal(t, "bench-node", p.ModelName)
	assert.Equal(t, 15, p.AddressEntries, "defaults fill unset fields")

	id, err := p.UniqueIDBytes()
	require.NoError(t, err)
	assert.Equal(t, [6]byte{0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F}, id)
}

func TestParseRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"BadUniqueID", "model_name: x\nunique_id: zz\n"},
		{"ShortUniqueID", "model_name: x\nunique_id: 0a0b\n"},
		{"NoModelName", "model_name: \"\"\nunique_id: 0a0b0c0d0e0f\n"},
		{"AddressTableTooBig", "model_name: x\nunique_id: 0a0b0c0d0e0f\naddress_entries: 255\n"},
		{"NegativeDatapoints", "model_name: x\nunique_id: 0a0b0c0d0e0f\ndatapoints: -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"model_name: relay-agent\nunique_id: 010203040506\nwrite_protected: true\n"), 0644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.True(t, p.WriteProtected)
	assert.Equal(t, "relay-agent", p.ModelName)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
