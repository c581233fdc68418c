// Package catalog persists tracked releases, their update history, pending
// updates awaiting review, and relation candidates, backed by SQLite.
//
// Update history is append-only: records are written inside the same
// transaction that advances the release's current version/build state, so a
// crash can never leave one without the other. Pending updates are
// deduplicated by (release, version, method); a dismissed row is retained and
// permanently suppresses re-queueing of the same key.
package catalog
