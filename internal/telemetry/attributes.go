package telemetry

import "go.opentelemetry.io/otel/attribute"

const (
	SessionIDKey        = "formfiller.session_id"
	OperationKey        = "formfiller.operation"
	StatusKey           = "formfiller.status"
	MissingRequiredKey  = "formfiller.missing_required"
	PendingFocusKey     = "formfiller.pending_focus"
	ExtractionFailedKey = "formfiller.extraction_failed"
	FieldsChangedKey    = "formfiller.fields_changed"
)

// TurnAttributes describes the outcome of one form turn.
func TurnAttributes(sessionID, status, focus string, missing, changed int, extractionFailed bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(SessionIDKey, sessionID),
		attribute.String(StatusKey, status),
		attribute.String(PendingFocusKey, focus),
		attribute.Int(MissingRequiredKey, missing),
		attribute.Int(FieldsChangedKey, changed),
		attribute.Bool(ExtractionFailedKey, extractionFailed),
	}
}
