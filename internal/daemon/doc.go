// Package daemon coordinates the scheduler, arbiter, and relation matcher
// behind a single lifecycle, and enforces single-instance execution through a
// lock file. It is the surface the IPC layer calls into.
package daemon
