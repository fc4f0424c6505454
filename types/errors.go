package types

import "errors"

var (
	// ErrSchemaInvalid rejects a form whose field ids are empty or repeated.
	ErrSchemaInvalid = errors.New("form schema invalid")
	// ErrEmptyUtterance rejects a turn without user text.
	ErrEmptyUtterance = errors.New("utterance is empty")
	// ErrExtractionFailure marks a failed or timed out extraction call.
	// A turn that hits it carries on without new values.
	ErrExtractionFailure = errors.New("extraction failed")
	ErrSessionNotFound   = errors.New("session not found")
	// ErrSessionComplete is returned for turns sent to a finished session.
	ErrSessionComplete = errors.New("session already complete")
	// ErrStoreUnavailable wraps session store failures; callers may retry.
	ErrStoreUnavailable = errors.New("session store unavailable")
)
