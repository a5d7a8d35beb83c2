package config

import (
	"os"
	"strconv"
)

// FromEnv overlays QAE_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("QAE_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("QAE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("QAE_FSYNC"); v != "" {
		cfg.Fsync = v
	}
	if v := os.Getenv("QAE_FSYNC_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.FsyncIntervalMs = n
		}
	}
	if v := os.Getenv("QAE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("QAE_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("QAE_STREAM_TICK_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Stream.TickMs = n
		}
	}
	if v := os.Getenv("QAE_MAX_QUESTION_LEN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Stream.MaxQuestionLen = n
		}
	}
	if v := os.Getenv("QAE_PRESENCE_STALE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Presence.StaleThresholdMs = n
		}
	}
	if v := os.Getenv("QAE_RETRY_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Retry.MaxAttempts = n
		}
	}
	if v := os.Getenv("QAE_RETRY_BACKOFF_BASE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Retry.BackoffBaseMs = n
		}
	}
	if v := os.Getenv("QAE_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.PerMinute = n
		}
	}
	if v := os.Getenv("QAE_RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.Burst = n
		}
	}
}
