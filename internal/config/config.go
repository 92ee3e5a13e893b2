// Package config loads .nearsift.toml configuration, merged with explicit
// CLI flag overrides (flags win) and environment variable overrides via
// viper.
package config

import (
	"github.com/nearsift/nearsift/internal/constants"
)

// NearsiftConfig is the fully-resolved configuration for a dedup run.
type NearsiftConfig struct {
	Output      OutputConfig
	Redis       RedisConfig
	Bloom       BloomConfig
	Performance PerformanceConfig
}

// OutputConfig covers the [output] section.
type OutputConfig struct {
	Directory string `toml:"directory"`
}

// RedisConfig covers the [redis] section.
type RedisConfig struct {
	Addr string `toml:"addr"`
	Port int    `toml:"port"`
}

// BloomConfig covers the [bloom] section.
type BloomConfig struct {
	SaveDir string `toml:"save_dir"`
}

// PerformanceConfig covers the [performance] section.
type PerformanceConfig struct {
	Workers        int `toml:"workers"`
	TimeoutSeconds int `toml:"timeout_seconds"`
	BackendRetries int `toml:"backend_retries"`
}

// DefaultConfig returns the built-in defaults, overridden in layers by any
// discovered .nearsift.toml and then by explicit CLI flags.
func DefaultConfig() *NearsiftConfig {
	return &NearsiftConfig{
		Output: OutputConfig{
			Directory: constants.DefaultOutputDir,
		},
		Redis: RedisConfig{
			Addr: "localhost",
			Port: constants.DefaultRedisPort,
		},
		Bloom: BloomConfig{},
		Performance: PerformanceConfig{
			Workers:        constants.DefaultWorkerCount,
			TimeoutSeconds: constants.DefaultBackendTimeoutSeconds,
			BackendRetries: constants.DefaultBackendRetries,
		},
	}
}
