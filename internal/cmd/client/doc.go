// Package clientcmd implements the CLI commands that talk to a running
// server over its HTTP API.
package clientcmd
