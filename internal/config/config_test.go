package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
	assert.Greater(t, cfg.Workers, 0)
	assert.Greater(t, cfg.ChunkEntities, 0)
	assert.NotEmpty(t, cfg.SignalDir)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir: /srv/panel
workers: 4
postgres:
  dsn: postgres://localhost/signals?sslmode=disable
  table: signals
  batch_size: 1000
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/panel", cfg.DataDir)
	assert.Equal(t, 4, cfg.Workers)
	require.NotNil(t, cfg.Postgres)
	assert.Equal(t, 1000, cfg.Postgres.BatchSize)
	// unset fields keep their defaults
	assert.Equal(t, Default().OutputDir, cfg.OutputDir)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Workers = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.ChunkEntities = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Postgres = &PostgresConfig{Table: "signals"}
	assert.Error(t, cfg.Validate(), "postgres sink without dsn")
}
