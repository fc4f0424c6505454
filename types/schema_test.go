package types

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFormSchema(t *testing.T) {
	tests := []struct {
		name    string
		fields  []FieldSpec
		wantErr bool
	}{
		{name: "empty form", fields: nil},
		{name: "unique ids", fields: []FieldSpec{{FieldID: "name"}, {FieldID: "email"}}},
		{name: "duplicate ids", fields: []FieldSpec{{FieldID: "name"}, {FieldID: "name"}}, wantErr: true},
		{name: "blank id", fields: []FieldSpec{{FieldID: "  "}}, wantErr: true},
		{name: "ids equal after trimming", fields: []FieldSpec{{FieldID: "a"}, {FieldID: " a "}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewFormSchema(tt.fields...)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrSchemaInvalid))
				assert.Nil(t, s)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.fields), s.Len())
		})
	}
}

func TestFormSchema_OrderAndDefaults(t *testing.T) {
	s, err := NewFormSchema(
		FieldSpec{FieldID: "name", Label: "Name", Required: true},
		FieldSpec{FieldID: "email", Type: FieldEmail, Required: true},
		FieldSpec{FieldID: "phone", Type: FieldPhone},
	)
	require.NoError(t, err)

	fields := s.Fields()
	require.Len(t, fields, 3)
	assert.Equal(t, "name", fields[0].FieldID)
	assert.Equal(t, FieldText, fields[0].Type)
	assert.Equal(t, "email", fields[1].DisplayName())

	fields[0].FieldID = "mutated"
	f, ok := s.Field("name")
	require.True(t, ok)
	assert.Equal(t, "Name", f.Label)
	assert.False(t, s.Has("mutated"))

	got := s.FieldsByID([]string{"phone", "unknown", "name"})
	require.Len(t, got, 2)
	assert.Equal(t, "phone", got[0].FieldID)
	assert.Equal(t, "name", got[1].FieldID)
}

func TestFormSchema_JSON(t *testing.T) {
	s, err := NewFormSchema(
		FieldSpec{FieldID: "country", Type: FieldSelect, Options: []string{"CA", "US"}, Required: true},
		FieldSpec{FieldID: "notes", Type: FieldTextarea},
	)
	require.NoError(t, err)

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var decoded FormSchema
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, s.Fields(), decoded.Fields())

	var dup FormSchema
	err = json.Unmarshal([]byte(`[{"field_id":"a"},{"field_id":"a"}]`), &dup)
	assert.ErrorIs(t, err, ErrSchemaInvalid)
}
