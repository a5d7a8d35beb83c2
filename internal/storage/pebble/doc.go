// Package pebblestore wraps a Pebble database with the fsync policy and the
// small read/write surface the versioned KV layer needs.
package pebblestore
