package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"robot-service/internal/hardware"
	"robot-service/internal/types"
)

// Transport is the slice of RedisClient the remote devices need.
type Transport interface {
	SendCommand(ctx context.Context, list, command string) error
	GetHashField(ctx context.Context, hash, field string) (string, error)
	SetHashField(ctx context.Context, hash, field string, value interface{}) error
	AwaitReply(ctx context.Context, id string, wait time.Duration) (string, error)
}

// actuator addresses one named actuator on the motor controller.
type actuator struct {
	t    Transport
	name string
}

func (a actuator) send(ctx context.Context, verb string, args ...any) error {
	return a.t.SendCommand(ctx, motorList(a.name), encodeCommand(verb, args...))
}

// call sends a bounded command and waits for the controller to finish it.
func (a actuator) call(ctx context.Context, timeout time.Duration, verb string, args ...any) error {
	id := uuid.NewString()
	args = append(args, millis(timeout), id)
	if err := a.send(ctx, verb, args...); err != nil {
		return err
	}
	reply, err := a.t.AwaitReply(ctx, id, timeout+replyGrace)
	if err != nil {
		return fmt.Errorf("%s: waiting for %s: %w", a.name, verb, err)
	}
	if reply == "" {
		return fmt.Errorf("%s: no reply to %s: %w", a.name, verb, hardware.ErrTimeout)
	}
	return parseReply(a.name, reply)
}

// RemoteMotor is a single motor on the motor controller.
type RemoteMotor struct {
	actuator
}

func NewRemoteMotor(t Transport, name string) *RemoteMotor {
	return &RemoteMotor{actuator{t: t, name: name}}
}

func (m *RemoteMotor) SetVelocity(ctx context.Context, v types.Velocity) error {
	return m.send(ctx, "velocity", v)
}

func (m *RemoteMotor) SetMaxTorque(ctx context.Context, pct float64) error {
	return m.send(ctx, "torque", types.Pct(pct))
}

func (m *RemoteMotor) Spin(ctx context.Context, dir types.Direction) error {
	return m.send(ctx, "spin", dir)
}

func (m *RemoteMotor) Stop(ctx context.Context, mode types.BrakeMode) error {
	return m.send(ctx, "stop", mode)
}

// timeout is the per-actuator timeout applied to blocking commands.
type timeout struct {
	mu sync.Mutex
	d  time.Duration
}

func (t *timeout) SetTimeout(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.d = d
}

func (t *timeout) Timeout() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.d
}

// RemoteMotorGroup drives a motor group (intake, basket) as one actuator.
type RemoteMotorGroup struct {
	actuator
	timeout
}

func NewRemoteMotorGroup(t Transport, name string, d time.Duration) *RemoteMotorGroup {
	g := &RemoteMotorGroup{actuator: actuator{t: t, name: name}}
	g.SetTimeout(d)
	return g
}

func (g *RemoteMotorGroup) Spin(ctx context.Context, dir types.Direction, v types.Velocity) error {
	return g.send(ctx, "spin", dir, v)
}

func (g *RemoteMotorGroup) SpinFor(ctx context.Context, dir types.Direction, amount types.Angle, v types.Velocity) error {
	return g.call(ctx, g.Timeout(), "spinfor", dir, amount, v)
}

func (g *RemoteMotorGroup) Stop(ctx context.Context, mode types.BrakeMode) error {
	return g.send(ctx, "stop", mode)
}

// RemoteDriveTrain is the two-motor drivetrain, configured with the robot
// geometry once at construction.
type RemoteDriveTrain struct {
	actuator
	timeout
}

// Geometry of the drivetrain as the controller needs it.
type Geometry struct {
	WheelTravel types.Distance
	TrackWidth  types.Distance
	WheelBase   types.Distance
}

func NewRemoteDriveTrain(ctx context.Context, t Transport, name string, g Geometry, d time.Duration) (*RemoteDriveTrain, error) {
	dt := &RemoteDriveTrain{actuator: actuator{t: t, name: name}}
	dt.SetTimeout(d)
	if err := dt.send(ctx, "config", g.WheelTravel, g.TrackWidth, g.WheelBase); err != nil {
		return nil, fmt.Errorf("failed to configure %s: %w", name, err)
	}
	return dt, nil
}

func (dt *RemoteDriveTrain) DriveFor(ctx context.Context, dir types.Direction, d types.Distance, v types.Velocity) error {
	return dt.call(ctx, dt.Timeout(), "drive", dir, d, v)
}

func (dt *RemoteDriveTrain) TurnFor(ctx context.Context, dir types.TurnDirection, a types.Angle, v types.Velocity) error {
	return dt.call(ctx, dt.Timeout(), "turn", dir, a, v)
}

func (dt *RemoteDriveTrain) Stop(ctx context.Context, mode types.BrakeMode) error {
	return dt.send(ctx, "stop", mode)
}

// RemoteIMU talks to the orientation sensor service.
type RemoteIMU struct {
	t Transport
}

func NewRemoteIMU(t Transport) *RemoteIMU {
	return &RemoteIMU{t: t}
}

// Calibrate marks the sensor as calibrating before asking the service to
// start, so a poll right after never sees the previous idle flag.
func (i *RemoteIMU) Calibrate(ctx context.Context) error {
	if err := i.t.SetHashField(ctx, imuHash, "calibrating", "true"); err != nil {
		return err
	}
	return i.t.SendCommand(ctx, imuList, "calibrate")
}

func (i *RemoteIMU) IsCalibrating(ctx context.Context) (bool, error) {
	v, err := i.t.GetHashField(ctx, imuHash, "calibrating")
	if err != nil {
		return false, err
	}
	return v == "true", nil
}

// Display drives the onboard screen through the display service.
type Display struct {
	t Transport
}

func NewDisplay(t Transport) *Display {
	return &Display{t: t}
}

func (d *Display) send(op string, args ...any) error {
	return d.t.SendCommand(context.Background(), displayList, encodeCommand(op, args...))
}

func (d *Display) SetPenColor(c types.Color) error  { return d.send("pen", c) }
func (d *Display) SetFillColor(c types.Color) error { return d.send("fill", c) }
func (d *Display) Clear(c types.Color) error        { return d.send("clear", c) }
func (d *Display) Print(line string) error          { return d.send("print", line) }

// Battery reads the charge published by the battery service.
type Battery struct {
	t Transport
}

func NewBattery(t Transport) *Battery {
	return &Battery{t: t}
}

func (b *Battery) Capacity(ctx context.Context) (int, error) {
	v, err := b.t.GetHashField(ctx, batteryHash, "charge")
	if err != nil {
		return 0, err
	}
	return parseCharge(v)
}

var (
	_ hardware.Motor      = (*RemoteMotor)(nil)
	_ hardware.MotorGroup = (*RemoteMotorGroup)(nil)
	_ hardware.DriveTrain = (*RemoteDriveTrain)(nil)
	_ hardware.Inertial   = (*RemoteIMU)(nil)
	_ hardware.Screen     = (*Display)(nil)
	_ hardware.Battery    = (*Battery)(nil)
)
