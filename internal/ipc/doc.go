// Package ipc provides JSON-RPC control of the daemon over a Unix domain
// socket, plus the client used by the CLI.
package ipc
