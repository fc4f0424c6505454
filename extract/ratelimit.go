package extract

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/tbxark/formfiller/types"
)

// RateLimitedInferer bounds how often the wrapped inferer is called. Waiting
// counts against the caller's deadline.
type RateLimitedInferer struct {
	next    Inferer
	limiter *rate.Limiter
}

// NewRateLimitedInferer allows perSecond calls with the given burst. A
// non-positive perSecond disables limiting.
func NewRateLimitedInferer(next Inferer, perSecond float64, burst int) *RateLimitedInferer {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedInferer{
		next:    next,
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (r *RateLimitedInferer) Infer(ctx context.Context, req *types.ExtractRequest) (map[string]string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return r.next.Infer(ctx, req)
}
