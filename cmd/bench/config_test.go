package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(256<<20), cfg.Capacity)
	assert.Equal(t, 10*time.Second, cfg.Duration.Duration)
	assert.Equal(t, 0.5, cfg.HighPriPoolRatio)
}

func TestLoadConfig_FileThenFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
capacity = 1048576
strict_capacity_limit = true
high_pri_pool_ratio = 0.25
duration = "3s"
read_pct = 50
`), 0o600))

	cfg, err := loadConfig([]string{"--config", path, "--reads", "90", "-w", "3"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<20), cfg.Capacity)
	assert.True(t, cfg.Strict)
	assert.Equal(t, 0.25, cfg.HighPriPoolRatio)
	assert.Equal(t, 3*time.Second, cfg.Duration.Duration)
	assert.Equal(t, 90, cfg.ReadPct, "explicit flags override the file")
	assert.Equal(t, 3, cfg.Workers)
}

func TestLoadConfig_Rejects(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("no_such_key = 1\n"), 0o600))
	_, err := loadConfig([]string{"--config", path})
	assert.ErrorContains(t, err, "no_such_key")

	_, err = loadConfig([]string{"--reads", "101", "--high-pri-ratio", "2"})
	assert.ErrorContains(t, err, "reads")
	assert.ErrorContains(t, err, "high-pri-ratio")
}
