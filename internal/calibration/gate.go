// Package calibration runs the bounded, cancellable orientation sensor
// calibration that must pass before autonomous drive is trusted.
package calibration

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"robot-service/internal/hardware"
	"robot-service/internal/logger"
	"robot-service/internal/poll"
	"robot-service/internal/types"
)

const (
	PollTick = 50 * time.Millisecond
	// DefaultMaxWaitTicks waits no longer than three seconds.
	DefaultMaxWaitTicks = int(3 * time.Second / PollTick)
)

type Outcome int

const (
	Completed Outcome = iota
	Cancelled
	TimedOut
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	default:
		return "timed-out"
	}
}

type Gate struct {
	imu      hardware.Inertial
	clk      clock.Clock
	notifier types.Notifier
	logger   *logger.Logger
}

func NewGate(imu hardware.Inertial, clk clock.Clock, notifier types.Notifier, l *logger.Logger) *Gate {
	return &Gate{
		imu:      imu,
		clk:      clk,
		notifier: notifier,
		logger:   l.WithTag("Calibration"),
	}
}

// Calibrate starts the calibration and waits up to maxWaitTicks poll ticks
// for it to finish. cancelled is checked once per tick.
func (g *Gate) Calibrate(ctx context.Context, maxWaitTicks int, cancelled func() bool) Outcome {
	g.notifier.Notify(types.NoticeCalibrating)

	if err := g.imu.Calibrate(ctx); err != nil {
		g.logger.Errorf("Failed to start calibration: %v", err)
		g.notifier.Notify(types.NoticeCalibrationFailed)
		return TimedOut
	}

	outcome := TimedOut
	switch {
	case cancelled():
		outcome = Cancelled
	case maxWaitTicks > 0:
		outcome = fromPoll(poll.Until(ctx, g.clk, poll.Options{
			Tick:      PollTick,
			MaxTicks:  maxWaitTicks,
			Done:      func() bool { return !g.calibrating(ctx) },
			Cancelled: cancelled,
		}))
	}

	g.logger.Infof("Calibration %s", outcome)
	switch outcome {
	case Completed:
		g.notifier.Notify(types.NoticeCalibrated)
	case Cancelled:
		g.notifier.Notify(types.NoticeCalibrationCancelled)
	default:
		g.notifier.Notify(types.NoticeCalibrationTimedOut)
	}
	return outcome
}

func (g *Gate) calibrating(ctx context.Context) bool {
	busy, err := g.imu.IsCalibrating(ctx)
	if err != nil {
		g.logger.Warnf("Failed to query calibration state: %v", err)
		return true
	}
	return busy
}

func fromPoll(o poll.Outcome) Outcome {
	switch o {
	case poll.Done:
		return Completed
	case poll.Cancelled:
		return Cancelled
	default:
		return TimedOut
	}
}
