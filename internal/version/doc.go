// Package version extracts version and build identifiers from free-form
// release titles and compares normalized values.
//
// Detection runs an ordered list of named rules over a title; the first rule
// that matches a given field wins. Normalization is idempotent: normalizing an
// already-normalized value returns the same value. Comparison treats versions
// as integer segment lists (so "1.2.10" sorts after "1.2.3") and builds as
// plain integers.
package version
