// Package dialogue words the next question for a missing field.
package dialogue

import (
	"context"

	"github.com/tbxark/formfiller/types"
)

// Composer produces the question asking for req.Field.
type Composer interface {
	Compose(ctx context.Context, req *types.ComposeRequest) (string, error)
}

// ComposerFunc adapts a function to Composer.
type ComposerFunc func(ctx context.Context, req *types.ComposeRequest) (string, error)

func (f ComposerFunc) Compose(ctx context.Context, req *types.ComposeRequest) (string, error) {
	return f(ctx, req)
}
