// Package arbiter decides what to do with a detected change: apply it
// automatically, queue it for human review, or drop it. It also performs the
// approve and reject transitions on queued entries.
package arbiter
