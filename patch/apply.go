package patch

import (
	"fmt"

	"github.com/bytedance/sonic"
	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/tbxark/formfiller/types"
)

// ApplyRFC6902 applies ops to a copy of filled and returns the result.
func ApplyRFC6902(filled map[string]types.FilledValue, ops []Operation) (map[string]types.FilledValue, error) {
	if filled == nil {
		filled = map[string]types.FilledValue{}
	}
	if len(ops) == 0 {
		out := make(map[string]types.FilledValue, len(filled))
		for k, v := range filled {
			out[k] = v
		}
		return out, nil
	}

	currentJSON, err := sonic.Marshal(filled)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal filled values: %w", err)
	}

	ops = FixOperation(filled, ops)

	patchJSON, err := sonic.Marshal(ops)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal patch operations: %w", err)
	}

	p, err := jsonpatch.DecodePatch(patchJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode patch: %w", err)
	}

	modifiedJSON, err := p.Apply(currentJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to apply patch: %w", err)
	}

	result := map[string]types.FilledValue{}
	if err := sonic.Unmarshal(modifiedJSON, &result); err != nil {
		return nil, fmt.Errorf("patched document is not a filled-values map: %w", err)
	}
	return result, nil
}

// FixOperation downgrades replace to add for absent fields and drops removals
// of absent fields, so a stale patch still applies.
func FixOperation(filled map[string]types.FilledValue, ops []Operation) []Operation {
	fixed := make([]Operation, 0, len(ops))
	for _, op := range ops {
		id, _ := FieldIDFromPath(op.Path)
		_, exists := filled[id]
		switch op.Op {
		case OperationReplace:
			if !exists {
				op.Op = OperationAdd
			}
			fixed = append(fixed, op)
		case OperationRemove:
			if exists {
				fixed = append(fixed, op)
			}
		default:
			fixed = append(fixed, op)
		}
	}
	return fixed
}
