package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// nearsiftTomlConfig mirrors NearsiftConfig's shape for TOML unmarshaling;
// pointer fields would be needed to distinguish "unset" from "zero" on a
// richer config, but every field here already has a meaningful zero value
// guarded by the merge step picking defaults first.
type nearsiftTomlConfig struct {
	Output      OutputConfig      `toml:"output"`
	Redis       RedisConfig       `toml:"redis"`
	Bloom       BloomConfig       `toml:"bloom"`
	Performance PerformanceConfig `toml:"performance"`
}

// ConfigFileName is the dedicated config file this tool searches for.
const ConfigFileName = ".nearsift.toml"

// Load resolves configuration starting from defaults, overlaying a
// discovered .nearsift.toml (searched from targetPath upward), then
// overlaying environment variables via viper (NEARSIFT_* prefix).
func Load(targetPath string) (*NearsiftConfig, error) {
	cfg := DefaultConfig()

	if path, err := findConfigFile(targetPath); err == nil {
		if err := mergeTomlFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func mergeTomlFile(cfg *NearsiftConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var parsed nearsiftTomlConfig
	if err := toml.Unmarshal(data, &parsed); err != nil {
		return err
	}

	if parsed.Output.Directory != "" {
		cfg.Output.Directory = parsed.Output.Directory
	}
	if parsed.Redis.Addr != "" {
		cfg.Redis.Addr = parsed.Redis.Addr
	}
	if parsed.Redis.Port != 0 {
		cfg.Redis.Port = parsed.Redis.Port
	}
	if parsed.Bloom.SaveDir != "" {
		cfg.Bloom.SaveDir = parsed.Bloom.SaveDir
	}
	if parsed.Performance.Workers != 0 {
		cfg.Performance.Workers = parsed.Performance.Workers
	}
	if parsed.Performance.TimeoutSeconds != 0 {
		cfg.Performance.TimeoutSeconds = parsed.Performance.TimeoutSeconds
	}
	if parsed.Performance.BackendRetries != 0 {
		cfg.Performance.BackendRetries = parsed.Performance.BackendRetries
	}
	return nil
}

// findConfigFile walks up the directory tree from startPath looking for
// .nearsift.toml.
func findConfigFile(startPath string) (string, error) {
	dir := startPath
	if dir == "" {
		dir = "."
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(absDir); err == nil && !info.IsDir() {
		absDir = filepath.Dir(absDir)
	}

	for {
		candidate := filepath.Join(absDir, ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(absDir)
		if parent == absDir {
			break
		}
		absDir = parent
	}
	return "", os.ErrNotExist
}

// applyEnvOverrides layers environment variables on top of file-derived
// config, using viper purely as a lookup (no file watching, no config
// tree of its own).
func applyEnvOverrides(cfg *NearsiftConfig) {
	v := viper.New()
	v.SetEnvPrefix("NEARSIFT")
	v.AutomaticEnv()

	if addr := v.GetString("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if port := v.GetInt("REDIS_PORT"); port != 0 {
		cfg.Redis.Port = port
	}
	if dir := v.GetString("BLOOM_SAVE_DIR"); dir != "" {
		cfg.Bloom.SaveDir = dir
	}
	if workers := v.GetInt("WORKERS"); workers != 0 {
		cfg.Performance.Workers = workers
	}
}
