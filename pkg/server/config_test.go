package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "WebMUSH", cfg.MudName)
	assert.Equal(t, 2500, cfg.FunctionInvokeLimit)
	assert.Equal(t, ":8080", cfg.WebAddr)
	assert.False(t, cfg.SQLEnabled)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "webmush.yaml")
	data := `
mud_name: TestMUSH
starting_room: 7
function_invoke_limit: 500
web_addr: ":9999"
cors_origins:
  - https://play.example.com
sql_enabled: true
sql_database: side.db
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "TestMUSH", cfg.MudName)
	assert.Equal(t, 7, cfg.StartingRoom)
	assert.Equal(t, 500, cfg.FunctionInvokeLimit)
	assert.Equal(t, ":9999", cfg.WebAddr)
	assert.Equal(t, []string{"https://play.example.com"}, cfg.CORSOrigins)
	assert.True(t, cfg.SQLEnabled)
	assert.Equal(t, "side.db", cfg.SQLDatabase)

	// Unmentioned keys keep their defaults.
	assert.Equal(t, 300, cfg.CheckpointInterval)
	assert.Equal(t, 150, cfg.StartingMoney)
}

func TestLoadConfigRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mud_name: [unclosed"), 0o644))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestApplyConfigUpdatesRuntimeSettings(t *testing.T) {
	g := NewGame(nil, nil, nil, nil)
	next := DefaultConfig()
	next.MudName = "Renamed"
	next.FunctionInvokeLimit = 123
	g.ApplyConfig(next)

	assert.Equal(t, "Renamed", g.MudName())
	assert.Equal(t, 123, g.Conf.FunctionInvokeLimit)
}
