package patch

import (
	"fmt"

	"github.com/tbxark/formfiller/types"
)

// ValidateOperations checks that every operation targets a top-level field of
// schema and never removes a value.
func ValidateOperations(ops []Operation, schema *types.FormSchema) error {
	for i, op := range ops {
		switch op.Op {
		case OperationAdd, OperationReplace:
		default:
			return fmt.Errorf("operation %d: op %q is not allowed", i, op.Op)
		}
		id, ok := FieldIDFromPath(op.Path)
		if !ok {
			return fmt.Errorf("operation %d: path %q is not a field path", i, op.Path)
		}
		if !schema.Has(id) {
			return fmt.Errorf("operation %d: field %q is not in the form", i, id)
		}
	}
	return nil
}
