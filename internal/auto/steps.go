package auto

import (
	"context"
	"fmt"
	"time"

	"robot-service/internal/types"
)

// Step is one blocking action of a script.
type Step interface {
	Run(ctx context.Context, r *runner) error
	String() string
}

// Drive moves straight. A non-zero Timeout overrides the drivetrain timeout
// for this step only.
type Drive struct {
	Dir      types.Direction
	Distance types.Distance
	Velocity types.Velocity
	Timeout  time.Duration
}

func (d Drive) Run(ctx context.Context, r *runner) error {
	return r.withDriveTimeout(d.Timeout, func() error {
		return r.drive.DriveFor(ctx, d.Dir, d.Distance, d.Velocity)
	})
}

func (d Drive) String() string {
	return fmt.Sprintf("drive %s %v @%v", d.Dir, d.Distance, d.Velocity)
}

// Turn rotates in place. The requested angle is scaled by TurnScale before
// it reaches the drivetrain.
type Turn struct {
	Dir      types.TurnDirection
	Angle    types.Angle
	Velocity types.Velocity
	Timeout  time.Duration
}

func (t Turn) Run(ctx context.Context, r *runner) error {
	return r.withDriveTimeout(t.Timeout, func() error {
		return r.drive.TurnFor(ctx, t.Dir, t.Angle.Scale(TurnScale), t.Velocity)
	})
}

func (t Turn) String() string {
	return fmt.Sprintf("turn %s %v @%v", t.Dir, t.Angle, t.Velocity)
}

// Basket rotates the basket by a fixed amount bounded by Timeout.
type Basket struct {
	Dir     types.Direction
	Amount  types.Angle
	Timeout time.Duration
}

func (b Basket) Run(ctx context.Context, r *runner) error {
	return r.actuators.SpinFor(ctx, b.Dir, b.Amount, b.Timeout)
}

func (b Basket) String() string {
	return fmt.Sprintf("basket %s %v", b.Dir, b.Amount)
}

// Intake starts the intake and returns immediately.
type Intake struct {
	Dir types.Direction
}

func (i Intake) Run(ctx context.Context, r *runner) error {
	if i.Dir == types.Reverse {
		return r.actuators.IntakeReverse(ctx)
	}
	return r.actuators.IntakeForward(ctx)
}

func (i Intake) String() string {
	return "intake " + i.Dir.String()
}

type Wait struct {
	Duration time.Duration
}

func (w Wait) Run(ctx context.Context, r *runner) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.clk.After(w.Duration):
		return nil
	}
}

func (w Wait) String() string {
	return "wait " + w.Duration.String()
}
