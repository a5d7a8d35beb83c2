// Package httpserver exposes the REST and SSE surface of the Q&A board.
package httpserver
