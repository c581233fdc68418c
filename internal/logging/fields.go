package logging

// Standardized attribute keys used across engine components.
const (
	FieldComponent = "component"
	FieldEventType = "event_type"
	FieldAccount   = "account"
	FieldReleaseID = "release_id"
	FieldPendingID = "pending_id"
	FieldSource    = "source"
	FieldErrorHint = "error_hint"
)
