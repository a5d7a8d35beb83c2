// Package presencesvc tracks who is currently watching an event. Entries
// carry a last-seen timestamp and are evicted once they go stale; every
// operation is best-effort and never surfaces a store failure to callers.
package presencesvc
