// Package route decides whether a form is complete and which field to ask for next.
package route

import "github.com/tbxark/formfiller/types"

// Decision is the outcome of Route. An empty Missing list means the form is complete.
type Decision struct {
	Missing []string `json:"missing_required_ids"`
}

func (d Decision) Complete() bool {
	return len(d.Missing) == 0
}

// Next returns the field the next question should target, or "" when complete.
func (d Decision) Next() string {
	if len(d.Missing) == 0 {
		return ""
	}
	return d.Missing[0]
}

// Route lists the required fields of schema that have no non-blank value in
// filled, in schema order. Optional fields never appear. Route has no side
// effects and depends only on its arguments.
func Route(schema *types.FormSchema, filled map[string]types.FilledValue) Decision {
	missing := make([]string, 0)
	for _, f := range schema.Fields() {
		if !f.Required {
			continue
		}
		v, ok := filled[f.FieldID]
		if !ok || v.IsBlank() {
			missing = append(missing, f.FieldID)
		}
	}
	return Decision{Missing: missing}
}
