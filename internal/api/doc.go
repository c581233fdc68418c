// Package api defines transport-friendly DTOs for catalog entities and the
// conversions from the storage models. The IPC layer and CLI consume these
// instead of reaching into internal storage types.
package api
