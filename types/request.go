package types

// ExtractRequest is the input of one extraction call.
type ExtractRequest struct {
	Schema       *FormSchema
	History      []Turn
	Utterance    string
	PendingFocus string
	Filled       map[string]FilledValue
}

// ComposeRequest asks for a question about Field.
type ComposeRequest struct {
	Schema  *FormSchema
	Field   FieldSpec
	History []Turn
	Filled  map[string]FilledValue
	Missing []FieldSpec
}
