package log

// Canonical field names for structured logging.
const (
	FieldService   = "service"
	FieldComponent = "component"
	FieldEvent     = "event"
	FieldRequestID = "request_id"
	FieldSessionID = "session_id"
	FieldFieldID   = "field_id"
	FieldStatus    = "status"
	FieldDuration  = "duration_ms"
)
