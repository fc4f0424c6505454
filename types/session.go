package types

import (
	"strings"
	"time"
)

type Status string

const (
	StatusAwaitingInfo Status = "awaiting_info"
	StatusComplete     Status = "complete"
)

type Provenance string

const (
	// ProvenanceExtracted values were read out of a user utterance.
	ProvenanceExtracted Provenance = "extracted"
	// ProvenanceConfirmed values were handed in explicitly by the client.
	ProvenanceConfirmed Provenance = "confirmed"
)

type FilledValue struct {
	FieldID string     `json:"field_id"`
	Value   string     `json:"value"`
	Source  Provenance `json:"source"`
}

// IsBlank reports whether the value counts as missing.
func (v FilledValue) IsBlank() bool {
	return strings.TrimSpace(v.Value) == ""
}

type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerAgent Speaker = "agent"
)

type Turn struct {
	Speaker Speaker   `json:"speaker"`
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

// SessionState is the persisted record of one form-filling conversation.
// SessionID and Schema are fixed at creation. Status and PendingFocus change
// only through Settle.
type SessionState struct {
	SessionID    string                 `json:"session_id"`
	Schema       *FormSchema            `json:"schema"`
	Filled       map[string]FilledValue `json:"filled"`
	History      []Turn                 `json:"history"`
	Status       Status                 `json:"status"`
	PendingFocus string                 `json:"pending_focus,omitempty"`
	Turns        int                    `json:"turns"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

func NewSessionState(id string, schema *FormSchema, now time.Time) *SessionState {
	return &SessionState{
		SessionID: id,
		Schema:    schema,
		Filled:    map[string]FilledValue{},
		History:   []Turn{},
		Status:    StatusAwaitingInfo,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a copy that shares only the immutable schema.
func (s *SessionState) Clone() *SessionState {
	if s == nil {
		return nil
	}
	out := *s
	out.Filled = make(map[string]FilledValue, len(s.Filled))
	for k, v := range s.Filled {
		out.Filled[k] = v
	}
	out.History = make([]Turn, len(s.History))
	copy(out.History, s.History)
	return &out
}

func (s *SessionState) AppendTurn(speaker Speaker, text string, at time.Time) {
	s.History = append(s.History, Turn{Speaker: speaker, Text: text, At: at})
}

// LastQuestion returns the most recent agent turn, if any.
func (s *SessionState) LastQuestion() string {
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].Speaker == SpeakerAgent {
			return s.History[i].Text
		}
	}
	return ""
}

// Settle derives status and focus from the ordered list of missing required ids.
func (s *SessionState) Settle(missing []string) {
	if len(missing) == 0 {
		s.Status = StatusComplete
		s.PendingFocus = ""
		return
	}
	s.Status = StatusAwaitingInfo
	s.PendingFocus = missing[0]
}

func (s *SessionState) IsComplete() bool {
	return s.Status == StatusComplete
}

// Values flattens Filled to id -> value.
func (s *SessionState) Values() map[string]string {
	out := make(map[string]string, len(s.Filled))
	for k, v := range s.Filled {
		out[k] = v.Value
	}
	return out
}
