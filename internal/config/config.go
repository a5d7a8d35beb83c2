package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	HTTPAddr        string       `json:"httpAddr" yaml:"httpAddr"`
	DataDir         string       `json:"dataDir" yaml:"dataDir"`
	Fsync           string       `json:"fsync" yaml:"fsync"` // always|interval|never
	FsyncIntervalMs int          `json:"fsyncIntervalMs" yaml:"fsyncIntervalMs"`
	Log             LogConfig    `json:"log" yaml:"log"`
	Stream          StreamConfig `json:"stream" yaml:"stream"`
	Presence        Presence     `json:"presence" yaml:"presence"`
	Retry           RetryConfig  `json:"retry" yaml:"retry"`
	RateLimit       RateLimit    `json:"rateLimit" yaml:"rateLimit"`
}

// LogConfig selects logger level and format.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// StreamConfig tunes the per-connection fan-out loop.
type StreamConfig struct {
	// TickMs is the poll/push interval for open streaming connections.
	TickMs int `json:"tickMs" yaml:"tickMs"`
	// MaxQuestionLen bounds submitted question text.
	MaxQuestionLen int `json:"maxQuestionLen" yaml:"maxQuestionLen"`
}

// Presence tunes heartbeat-based liveness.
type Presence struct {
	// StaleThresholdMs is the maximum heartbeat silence before eviction.
	StaleThresholdMs int `json:"staleThresholdMs" yaml:"staleThresholdMs"`
}

// RetryConfig bounds the optimistic-concurrency write loop.
type RetryConfig struct {
	MaxAttempts   int `json:"maxAttempts" yaml:"maxAttempts"`
	BackoffBaseMs int `json:"backoffBaseMs" yaml:"backoffBaseMs"`
}

// RateLimit bounds per-IP mutation traffic.
type RateLimit struct {
	PerMinute int `json:"perMinute" yaml:"perMinute"`
	Burst     int `json:"burst" yaml:"burst"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		HTTPAddr: ":8080",
		Fsync:    "always",
		Log:      LogConfig{Level: "info", Format: "text"},
		Stream: StreamConfig{
			TickMs:         2000,
			MaxQuestionLen: 500,
		},
		Presence: Presence{StaleThresholdMs: 30000},
		Retry: RetryConfig{
			MaxAttempts:   5,
			BackoffBaseMs: 100,
		},
		RateLimit: RateLimit{
			PerMinute: 60,
			Burst:     10,
		},
	}
}

// Load reads configuration from a JSON or YAML file (by extension). If path
// is empty, returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	return cfg, nil
}
