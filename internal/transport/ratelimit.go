// ABOUTME: Outbound rate limiting for transports using golang.org/x/time/rate
// ABOUTME: Wraps any Sender so replies wait for a token before being delivered

package transport

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited delays sends so they stay within a token-bucket budget.
type RateLimited struct {
	Sender
	limiter *rate.Limiter
}

// NewRateLimited wraps s. A non-positive perSecond disables limiting; burst
// is raised to 1 when smaller.
func NewRateLimited(s Sender, perSecond float64, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	return &RateLimited{
		Sender:  s,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Send waits for the limiter, then delegates. It returns early if ctx ends
// while waiting.
func (r *RateLimited) Send(ctx context.Context, channelID, text string) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for send budget: %w", err)
	}
	return r.Sender.Send(ctx, channelID, text)
}
