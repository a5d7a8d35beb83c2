// Package kv defines the versioned blob-store contract the repositories
// coordinate through: get, get-with-version, conditional put, delete.
//
// There are no field-level transactions; every mutation is a whole-value
// compare-and-swap keyed on an opaque version tag. A mismatched tag reports
// modified=false (a concurrent writer committed first), never an error.
package kv
