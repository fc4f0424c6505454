// Package extract reads candidate field values out of user utterances.
package extract

import (
	"context"

	"github.com/tbxark/formfiller/types"
)

// Inferer is the language capability behind extraction. It maps field ids to
// raw candidate values and may return ids or values the Extractor drops.
type Inferer interface {
	Infer(ctx context.Context, req *types.ExtractRequest) (map[string]string, error)
}

// InfererFunc adapts a function to Inferer.
type InfererFunc func(ctx context.Context, req *types.ExtractRequest) (map[string]string, error)

func (f InfererFunc) Infer(ctx context.Context, req *types.ExtractRequest) (map[string]string, error) {
	return f(ctx, req)
}
