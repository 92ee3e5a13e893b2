package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 6379, cfg.Redis.Port)
	assert.Greater(t, cfg.Performance.Workers, 0)
}

func TestLoadWithoutConfigFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Redis.Port, cfg.Redis.Port)
}

func TestLoadMergesTomlFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte("[redis]\nport = 7000\n\n[bloom]\nsave_dir = \"/data/bloom\"\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), content, 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Redis.Port)
	assert.Equal(t, "/data/bloom", cfg.Bloom.SaveDir)
}

func TestLoadSearchesParentDirectories(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	content := []byte("[performance]\nworkers = 8\n")
	require.NoError(t, os.WriteFile(filepath.Join(root, ConfigFileName), content, 0o644))

	cfg, err := Load(nested)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Performance.Workers)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("NEARSIFT_REDIS_PORT", "9999")
	cfg := DefaultConfig()
	applyEnvOverrides(cfg)
	assert.Equal(t, 9999, cfg.Redis.Port)
}
