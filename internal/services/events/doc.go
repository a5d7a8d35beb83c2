// Package eventsvc manages event metadata: creation of a board with its
// empty question list, and metadata lookup.
package eventsvc
