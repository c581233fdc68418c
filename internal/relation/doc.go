// Package relation matches unlinked listings against the tracked catalog and
// emits sequel, edition, and DLC candidates for human resolution.
package relation
