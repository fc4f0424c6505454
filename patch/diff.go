package patch

import (
	"sort"
	"strings"

	"github.com/tbxark/formfiller/types"
)

// Diff turns extracted candidates into operations following the merge policy:
// blank candidates are ignored, absent fields are added, present fields are
// replaced only by a different value, and nothing is removed. Operations are
// sorted by path so the result is deterministic.
func Diff(filled map[string]types.FilledValue, partial map[string]string, source types.Provenance) []Operation {
	ids := make([]string, 0, len(partial))
	for id := range partial {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	ops := make([]Operation, 0, len(ids))
	for _, id := range ids {
		value := partial[id]
		if strings.TrimSpace(value) == "" {
			continue
		}
		next := types.FilledValue{FieldID: id, Value: value, Source: source}
		current, exists := filled[id]
		if !exists {
			ops = append(ops, Operation{Op: OperationAdd, Path: FieldPath(id), Value: next})
			continue
		}
		if value == current.Value {
			continue
		}
		ops = append(ops, Operation{Op: OperationReplace, Path: FieldPath(id), Value: next})
	}
	return ops
}
