package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormSchema is the ordered, immutable set of fields a session fills.
// Build it with NewFormSchema; the zero value is an empty form.
type FormSchema struct {
	fields []FieldSpec
	index  map[string]int
}

func NewFormSchema(fields ...FieldSpec) (*FormSchema, error) {
	s := &FormSchema{
		fields: make([]FieldSpec, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		f.FieldID = strings.TrimSpace(f.FieldID)
		if f.FieldID == "" {
			return nil, fmt.Errorf("%w: field %d has an empty field_id", ErrSchemaInvalid, i)
		}
		if _, dup := s.index[f.FieldID]; dup {
			return nil, fmt.Errorf("%w: duplicate field_id %q", ErrSchemaInvalid, f.FieldID)
		}
		if f.Type == "" {
			f.Type = FieldText
		}
		if len(f.Options) > 0 {
			f.Options = append([]string(nil), f.Options...)
		}
		s.index[f.FieldID] = len(s.fields)
		s.fields = append(s.fields, f)
	}
	return s, nil
}

// Fields returns a copy of the fields in declaration order.
func (s *FormSchema) Fields() []FieldSpec {
	if s == nil {
		return nil
	}
	out := make([]FieldSpec, len(s.fields))
	copy(out, s.fields)
	return out
}

func (s *FormSchema) Len() int {
	if s == nil {
		return 0
	}
	return len(s.fields)
}

func (s *FormSchema) Field(id string) (FieldSpec, bool) {
	if s == nil {
		return FieldSpec{}, false
	}
	i, ok := s.index[id]
	if !ok {
		return FieldSpec{}, false
	}
	return s.fields[i], true
}

func (s *FormSchema) Has(id string) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[id]
	return ok
}

// FieldsByID resolves ids to specs, skipping ids outside the schema.
func (s *FormSchema) FieldsByID(ids []string) []FieldSpec {
	out := make([]FieldSpec, 0, len(ids))
	for _, id := range ids {
		if f, ok := s.Field(id); ok {
			out = append(out, f)
		}
	}
	return out
}

func (s *FormSchema) MarshalJSON() ([]byte, error) {
	if s == nil || s.fields == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.fields)
}

func (s *FormSchema) UnmarshalJSON(data []byte) error {
	var fields []FieldSpec
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decode form schema: %w", err)
	}
	parsed, err := NewFormSchema(fields...)
	if err != nil {
		return err
	}
	*s = *parsed
	return nil
}
