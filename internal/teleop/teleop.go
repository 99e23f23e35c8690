// Package teleop provides the manual tank-drive control loop.
package teleop

import (
	"context"
	"math"
	"time"

	"github.com/benbjohnson/clock"

	"robot-service/internal/hardware"
	"robot-service/internal/logger"
	"robot-service/internal/types"
)

const (
	CyclePeriod = 50 * time.Millisecond
	// Tolerance is the stick dead band in percent.
	Tolerance = 5
	// VelocityScale converts stick percent to motor velocity percent.
	VelocityScale = 1.0
)

// Axes reads analog stick positions in [-100, 100].
type Axes interface {
	ReadAxis(axis string) (float64, error)
}

type Loop struct {
	axes   Axes
	left   hardware.Motor
	right  hardware.Motor
	clk    clock.Clock
	logger *logger.Logger
	// onInput is called whenever a stick is outside the dead band
	onInput func()
}

func NewLoop(axes Axes, left, right hardware.Motor, clk clock.Clock, onInput func(), l *logger.Logger) *Loop {
	if onInput == nil {
		onInput = func() {}
	}
	return &Loop{
		axes:    axes,
		left:    left,
		right:   right,
		clk:     clk,
		logger:  l.WithTag("Teleop"),
		onInput: onInput,
	}
}

// Prepare puts both motors into continuous velocity control at zero speed.
func (t *Loop) Prepare(ctx context.Context) {
	for _, m := range []hardware.Motor{t.left, t.right} {
		if err := m.SetVelocity(ctx, types.Pct(0)); err != nil {
			t.logger.Warnf("Failed to zero drive velocity: %v", err)
		}
		if err := m.SetMaxTorque(ctx, 100); err != nil {
			t.logger.Warnf("Failed to set drive torque: %v", err)
		}
		if err := m.Spin(ctx, types.Reverse); err != nil {
			t.logger.Warnf("Failed to start drive motor: %v", err)
		}
	}
}

// Run drives the motors from the sticks every cycle until ctx is cancelled.
func (t *Loop) Run(ctx context.Context) error {
	t.Prepare(ctx)
	t.logger.Infof("Manual drive started at %v period", CyclePeriod)

	ticker := t.clk.Ticker(CyclePeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Infof("Manual drive stopped")
			return ctx.Err()
		case <-ticker.C:
			t.Tick(ctx, Tolerance)
		}
	}
}

// Tick runs one control cycle.
func (t *Loop) Tick(ctx context.Context, tolerance float64) {
	t.update(ctx, hardware.AxisA, t.left, tolerance)
	t.update(ctx, hardware.AxisD, t.right, tolerance)
}

func (t *Loop) update(ctx context.Context, axis string, m hardware.Motor, tolerance float64) {
	pos, err := t.axes.ReadAxis(axis)
	if err != nil {
		t.logger.Warnf("Failed to read %s: %v", axis, err)
		pos = 0
	}

	velocity := 0.0
	if math.Abs(pos) > tolerance {
		velocity = pos * VelocityScale
		t.onInput()
	}
	if err := m.SetVelocity(ctx, types.Pct(velocity)); err != nil {
		t.logger.Warnf("Failed to set %s velocity: %v", axis, err)
	}
}
