// Package runtime wires storage and config into a single handle the
// transports and repositories are constructed from.
package runtime
