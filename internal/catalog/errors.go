package catalog

import "errors"

var (
	// ErrNotFound indicates the requested row does not exist or was already
	// resolved.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateKey indicates an insert collided with a dedup constraint.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrSchemaMismatch indicates the database schema version doesn't match
	// the expected version.
	ErrSchemaMismatch = errors.New("schema version mismatch")
)
