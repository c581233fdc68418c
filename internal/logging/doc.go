// Package logging builds slog loggers for patchwatch with console and JSON
// output, shared attribute helpers, and standardized field names so engine
// components emit uniform records.
package logging
