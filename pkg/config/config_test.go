package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGovernorDefaults(t *testing.T) {
	cfg := GovernorDefaults()
	assert.Equal(t, "127.0.0.1", cfg.BindHost)
	assert.Equal(t, 54323, cfg.Port)
	assert.Equal(t, 24, cfg.WorkingTTLHours)
	assert.Equal(t, "room", cfg.RoomsScope)
}

func TestLoadGovernorConfigEnvOverridesDefaults(t *testing.T) {
	t.Setenv("MG_PORT", "9999")
	t.Setenv("MG_BIND_HOST", "0.0.0.0")
	cfg, err := LoadGovernorConfig("")
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Port)
	assert.Equal(t, "0.0.0.0", cfg.BindHost)
}

func TestLoadGovernorConfigParsesConsolidateScopes(t *testing.T) {
	t.Setenv("MG_CONSOLIDATE_SCOPES", "room:a,room:b")
	cfg, err := LoadGovernorConfig("")
	require.NoError(t, err)
	assert.Equal(t, []string{"room:a", "room:b"}, cfg.ConsolidateScopes)
}

func TestHippocampusDefaults(t *testing.T) {
	cfg := HippocampusDefaults()
	assert.Equal(t, "memory", cfg.Backend)
	assert.Equal(t, "X-API-Key", cfg.APIKeyHeader)
}
