package hardware

import (
	"context"
	"errors"
	"time"

	"robot-service/internal/types"
)

var (
	// ErrTimeout is returned by blocking actuator commands that did not finish
	// within the actuator's current timeout.
	ErrTimeout = errors.New("actuator command timed out")

	ErrUnknownChannel = errors.New("unknown channel")
)

// InputCallback receives the new level of a named input: true on press, false on release.
type InputCallback func(channel string, value bool) error

// Inputs exposes buttons, bumpers and analog axes by channel name.
// Only one callback is kept per channel; registering again replaces it.
type Inputs interface {
	ReadDigitalInput(channel string) (bool, error)
	ReadAxis(axis string) (float64, error)
	RegisterInputCallback(channel string, callback InputCallback)
}

// Motor is a single drive motor under velocity control.
type Motor interface {
	SetVelocity(ctx context.Context, v types.Velocity) error
	SetMaxTorque(ctx context.Context, pct float64) error
	Spin(ctx context.Context, dir types.Direction) error
	Stop(ctx context.Context, mode types.BrakeMode) error
}

// MotorGroup drives several motors as one actuator (intake, basket).
type MotorGroup interface {
	Spin(ctx context.Context, dir types.Direction, v types.Velocity) error
	// SpinFor blocks until the rotation completes or the group timeout
	// elapses, in which case it returns ErrTimeout.
	SpinFor(ctx context.Context, dir types.Direction, amount types.Angle, v types.Velocity) error
	Stop(ctx context.Context, mode types.BrakeMode) error
	SetTimeout(d time.Duration)
	Timeout() time.Duration
}

// DriveTrain combines both drive motors for distance and angle moves.
// Blocking moves return ErrTimeout when the drivetrain timeout elapses first.
type DriveTrain interface {
	DriveFor(ctx context.Context, dir types.Direction, d types.Distance, v types.Velocity) error
	TurnFor(ctx context.Context, dir types.TurnDirection, a types.Angle, v types.Velocity) error
	Stop(ctx context.Context, mode types.BrakeMode) error
	SetTimeout(d time.Duration)
	Timeout() time.Duration
}

type Inertial interface {
	Calibrate(ctx context.Context) error
	IsCalibrating(ctx context.Context) (bool, error)
}

type Screen interface {
	SetPenColor(c types.Color) error
	SetFillColor(c types.Color) error
	Clear(c types.Color) error
	Print(line string) error
}

type Battery interface {
	// Capacity returns the remaining charge in percent.
	Capacity(ctx context.Context) (int, error)
}

type HealthLED interface {
	SetColor(c types.Color) error
}
