package ratelimit

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/oicur0t/ratelog/pkg/clock"
)

// Refill is a continuous token bucket holding at most limit tokens and
// regaining limit tokens per window. Time comes from the injected clock.
type Refill struct {
	clock   clock.Clock
	limiter *rate.Limiter
}

// NewRefill creates a refill limiter with a full bucket
func NewRefill(clk clock.Clock, limit int, window time.Duration) *Refill {
	perSecond := rate.Limit(float64(limit) / window.Seconds())
	return &Refill{
		clock:   clk,
		limiter: rate.NewLimiter(perSecond, limit),
	}
}

// Allow takes one token if available
func (r *Refill) Allow() bool {
	return r.limiter.AllowN(r.clock.Now(), 1)
}

// Remaining returns the whole tokens currently in the bucket
func (r *Refill) Remaining() int {
	tokens := r.limiter.TokensAt(r.clock.Now())
	if tokens < 0 {
		return 0
	}
	return int(tokens)
}

// Reset refills the bucket to capacity
func (r *Refill) Reset() {
	r.limiter = rate.NewLimiter(r.limiter.Limit(), r.limiter.Burst())
}
