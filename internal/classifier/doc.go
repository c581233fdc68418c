// Package classifier provides the optional external confidence classifier.
//
// The classifier offers a second opinion on ambiguous update detections over
// an OpenAI-compatible chat API. It is strictly best-effort: when disabled,
// unreachable, or returning garbage, callers fall back to pattern-only
// confidence and the poll cycle continues.
package classifier
