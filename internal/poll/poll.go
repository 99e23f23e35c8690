// Package poll implements the cooperative poll-with-deadline loop shared by
// sensor calibration and the basket interlock loops.
package poll

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
)

type Outcome int

const (
	// Done means the done predicate became true within the budget.
	Done Outcome = iota
	Cancelled
	Expired
)

func (o Outcome) String() string {
	switch o {
	case Done:
		return "done"
	case Cancelled:
		return "cancelled"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// Options parameterize a poll. Nil predicates are treated as always false.
type Options struct {
	Tick time.Duration
	// MaxTicks bounds the number of waits; zero means unbounded.
	MaxTicks int
	// Done ends the poll successfully.
	Done func() bool
	// Cancelled ends the poll early and takes priority over Done.
	Cancelled func() bool
	// Step runs once per iteration, after the checks and before the wait.
	Step func()
}

// Until runs the poll on clk. Checks are evaluated in the order cancelled,
// budget, done, so a predicate that turns true on the final tick counts as
// expiry. Cancelling ctx ends the poll with Cancelled.
func Until(ctx context.Context, clk clock.Clock, opts Options) Outcome {
	for ticks := 0; ; ticks++ {
		if ctx.Err() != nil || (opts.Cancelled != nil && opts.Cancelled()) {
			return Cancelled
		}
		if opts.MaxTicks > 0 && ticks >= opts.MaxTicks {
			return Expired
		}
		if opts.Done != nil && opts.Done() {
			return Done
		}
		if opts.Step != nil {
			opts.Step()
		}

		select {
		case <-ctx.Done():
			return Cancelled
		case <-clk.After(opts.Tick):
		}
	}
}
