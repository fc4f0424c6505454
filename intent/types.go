// Package intent decides whether a message answers the form or asks to
// abandon it.
package intent

import "context"

type Intent string

const (
	// Cancel abandons the form in progress.
	Cancel Intent = "cancel"
	// Fill is any message that may carry form values.
	Fill Intent = "fill"
)

type Request struct {
	Utterance string
	// LastQuestion is the agent's previous message, if any.
	LastQuestion string
}

type Recognizer interface {
	RecognizeIntent(ctx context.Context, req *Request) (Intent, error)
}
