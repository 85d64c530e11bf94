package ratelimit

import (
	"errors"
	"fmt"
	"time"

	"github.com/oicur0t/ratelog/pkg/clock"
)

// Policy names an admission strategy
type Policy string

const (
	// PolicyWindow resets the full budget once per elapsed window
	PolicyWindow Policy = "window"
	// PolicyRefill refills the budget continuously
	PolicyRefill Policy = "refill"
	// PolicyOff admits everything
	PolicyOff Policy = "off"
)

const (
	// DefaultLimit is the number of lines admitted per window
	DefaultLimit = 500
	// DefaultWindow is the budget measurement interval
	DefaultWindow = time.Second
)

// ErrUnknownPolicy is returned by New for an unrecognized policy name
var ErrUnknownPolicy = errors.New("unknown rate limit policy")

// Limiter decides whether a single line may be admitted.
// Implementations are not safe for concurrent use; the owner serializes calls.
type Limiter interface {
	// Allow consumes one unit of budget if any is left
	Allow() bool
	// Remaining reports the budget left at the current time, or -1 if unlimited
	Remaining() int
	// Reset restores the full budget as of now
	Reset()
}

// New builds the limiter for policy. Non-positive limit or window fall back to defaults.
func New(policy Policy, clk clock.Clock, limit int, window time.Duration) (Limiter, error) {
	if clk == nil {
		clk = clock.System
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}

	switch policy {
	case PolicyWindow, "":
		return NewWindow(clk, limit, window), nil
	case PolicyRefill:
		return NewRefill(clk, limit, window), nil
	case PolicyOff:
		return Unlimited{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}
}

// Unlimited admits every line
type Unlimited struct{}

// Allow always returns true
func (Unlimited) Allow() bool { return true }

// Remaining always returns -1
func (Unlimited) Remaining() int { return -1 }

// Reset does nothing
func (Unlimited) Reset() {}
