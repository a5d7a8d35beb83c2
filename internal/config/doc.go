// Package config loads server configuration from defaults, an optional JSON
// or YAML file, and QAE_* environment overlays, in that order.
package config
