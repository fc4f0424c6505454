package patch

import (
	"fmt"

	"github.com/tbxark/formfiller/types"
)

// Merge folds extracted candidates into filled and returns the new map with
// the operations that produced it. filled itself is not modified.
func Merge(schema *types.FormSchema, filled map[string]types.FilledValue, partial map[string]string, source types.Provenance) (map[string]types.FilledValue, []Operation, error) {
	ops := Diff(filled, partial, source)
	if err := ValidateOperations(ops, schema); err != nil {
		return nil, nil, fmt.Errorf("merge rejected: %w", err)
	}
	next, err := ApplyRFC6902(filled, ops)
	if err != nil {
		return nil, nil, err
	}
	return next, ops, nil
}
