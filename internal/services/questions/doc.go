// Package questionsvc implements the question repository: the per-event
// ordered question list with optimistic-concurrency read-modify-write and
// bounded retries.
package questionsvc
