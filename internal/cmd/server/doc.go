// Package serverrun boots the Q&A board server: storage, services, and the
// HTTP/SSE surface, with graceful shutdown on signals.
package serverrun
