// Package client is the Go client for the Q&A board service: a thin REST
// wrapper plus a reconnecting consumer for the live event stream.
package client
