// Package flow runs conversation turns: extract, merge, route, ask, persist.
package flow

import (
	"github.com/google/uuid"

	"github.com/tbxark/formfiller/patch"
	"github.com/tbxark/formfiller/types"
)

// StartRequest opens a session. Values are client supplied answers that are
// merged as confirmed before the first utterance is read.
type StartRequest struct {
	Utterance string            `json:"utterance"`
	Fields    []types.FieldSpec `json:"form_fields"`
	Values    map[string]string `json:"values,omitempty"`
}

type ContinueRequest struct {
	SessionID string `json:"session_id"`
	Utterance string `json:"utterance"`
}

// Result is what one turn reports back to the caller.
type Result struct {
	SessionID        string            `json:"session_id"`
	Status           types.Status      `json:"status"`
	Filled           map[string]string `json:"filled"`
	MissingRequired  []string          `json:"missing_required_ids"`
	PendingFocus     string            `json:"pending_focus,omitempty"`
	QuestionText     string            `json:"question_text,omitempty"`
	Changes          []patch.Operation `json:"changes,omitempty"`
	ExtractionFailed bool              `json:"extraction_failed,omitempty"`
}

// IDGenerator mints session ids.
type IDGenerator interface {
	NewID() (string, error)
}

type IDGeneratorFunc func() (string, error)

func (f IDGeneratorFunc) NewID() (string, error) {
	return f()
}

// UUIDv7 generates time ordered ids, so store listings roughly follow creation order.
func UUIDv7() IDGenerator {
	return IDGeneratorFunc(func() (string, error) {
		id, err := uuid.NewV7()
		if err != nil {
			return "", err
		}
		return id.String(), nil
	})
}
