// Package safety moves the basket and intake while the basket bumpers act as
// hard interlocks.
package safety

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"robot-service/internal/hardware"
	"robot-service/internal/logger"
	"robot-service/internal/poll"
	"robot-service/internal/types"
)

const (
	// PollInterval is how long each raise/lower spin runs before the
	// interlock and the held button are checked again.
	PollInterval = 1000 * time.Millisecond

	FullPower = 100
)

// Sensors reads interlock levels by channel.
type Sensors interface {
	ReadDigitalInput(channel string) (bool, error)
}

type ActuatorSafety struct {
	basket   hardware.MotorGroup
	intake   hardware.MotorGroup
	sensors  Sensors
	clk      clock.Clock
	logger   *logger.Logger
	interval time.Duration

	// moving is held by the one raise/lower loop allowed at a time
	moving *atomic.Bool

	// loopMu guards the reservation and the active loop's handles
	loopMu     sync.Mutex
	reserved   bool
	loopCancel context.CancelFunc
	loopDone   chan struct{}

	// motionMu orders a loop spin against a bumper stop
	motionMu sync.Mutex
	bumps    *atomic.Int64
}

func New(basket, intake hardware.MotorGroup, sensors Sensors, clk clock.Clock, l *logger.Logger) *ActuatorSafety {
	return &ActuatorSafety{
		basket:   basket,
		intake:   intake,
		sensors:  sensors,
		clk:      clk,
		logger:   l.WithTag("Safety"),
		interval: PollInterval,
		moving:   atomic.NewBool(false),
		bumps:    atomic.NewInt64(0),
	}
}

// pressed reports the interlock level. A sensor that cannot be read counts
// as pressed so motion stops.
func (s *ActuatorSafety) pressed(channel string) bool {
	v, err := s.sensors.ReadDigitalInput(channel)
	if err != nil {
		s.logger.Errorf("Failed to read %s, treating as pressed: %v", channel, err)
		return true
	}
	return v
}

// Raise lifts the basket while held reports true and the upper bumper is
// released, then lets it coast.
func (s *ActuatorSafety) Raise(ctx context.Context, held func() bool) {
	if s.Reserved() {
		s.logger.Debugf("Basket reserved, ignoring raise")
		return
	}
	if err := s.intake.Stop(ctx, types.Coast); err != nil {
		s.logger.Warnf("Failed to stop intake before raise: %v", err)
	}
	s.move(ctx, "raise", types.Reverse, hardware.ChannelBasketUpBumper, held)
}

// Lower is the mirror of Raise using the lower bumper.
func (s *ActuatorSafety) Lower(ctx context.Context, held func() bool) {
	s.move(ctx, "lower", types.Forward, hardware.ChannelBasketDownBumper, held)
}

func (s *ActuatorSafety) move(ctx context.Context, name string, dir types.Direction, limit string, held func() bool) {
	if !s.moving.CompareAndSwap(false, true) {
		s.logger.Debugf("Basket already moving, ignoring %s", name)
		return
	}

	loopCtx, done, ok := s.startLoop(ctx)
	if !ok {
		s.moving.Store(false)
		s.logger.Debugf("Basket reserved, ignoring %s", name)
		return
	}
	defer func() {
		s.moving.Store(false)
		s.endLoop(done)
	}()

	s.logger.Debugf("Basket %s started", name)
	var seen int64
	outcome := poll.Until(loopCtx, s.clk, poll.Options{
		Tick: s.interval,
		Done: func() bool {
			seen = s.bumps.Load()
			return !held() || s.pressed(limit)
		},
		Step: func() {
			s.motionMu.Lock()
			defer s.motionMu.Unlock()
			// a bumper stop since the check wins over this spin
			if s.bumps.Load() != seen {
				return
			}
			if err := s.basket.Spin(loopCtx, dir, types.Pct(FullPower)); err != nil {
				s.logger.Errorf("Basket %s spin failed: %v", name, err)
			}
		},
	})
	s.coast(ctx)
	s.logger.Debugf("Basket %s finished: %v", name, outcome)
}

// startLoop registers the calling raise/lower loop so Reserve can end it.
// It fails while the basket is reserved.
func (s *ActuatorSafety) startLoop(ctx context.Context) (context.Context, chan struct{}, bool) {
	s.loopMu.Lock()
	defer s.loopMu.Unlock()
	if s.reserved {
		return nil, nil, false
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.loopCancel = cancel
	s.loopDone = make(chan struct{})
	return loopCtx, s.loopDone, true
}

func (s *ActuatorSafety) endLoop(done chan struct{}) {
	s.loopMu.Lock()
	s.loopCancel()
	s.loopCancel = nil
	s.loopDone = nil
	s.loopMu.Unlock()
	close(done)
}

// Reserve hands the basket to a scripted run. Any raise or lower loop is
// ended and has coasted the basket before Reserve returns; new loops are
// refused until Unreserve.
func (s *ActuatorSafety) Reserve() {
	s.loopMu.Lock()
	s.reserved = true
	cancel, done := s.loopCancel, s.loopDone
	s.loopMu.Unlock()

	if cancel != nil {
		s.logger.Infof("Ending operator basket move for scripted run")
		cancel()
		<-done
	}
}

func (s *ActuatorSafety) Reserved() bool {
	s.loopMu.Lock()
	defer s.loopMu.Unlock()
	return s.reserved
}

func (s *ActuatorSafety) Unreserve() {
	s.loopMu.Lock()
	defer s.loopMu.Unlock()
	s.reserved = false
}

// Moving reports whether a raise or lower loop is active.
func (s *ActuatorSafety) Moving() bool {
	return s.moving.Load()
}

func (s *ActuatorSafety) coast(ctx context.Context) {
	if err := s.basket.Stop(ctx, types.Coast); err != nil {
		s.logger.Errorf("Failed to coast basket: %v", err)
	}
}

// Release handles the raise or lower button being let go.
func (s *ActuatorSafety) Release(ctx context.Context) {
	s.coast(ctx)
}

// OnBumper is the input callback for both basket bumpers.
func (s *ActuatorSafety) OnBumper(channel string, value bool) error {
	if !value {
		return nil
	}
	s.logger.Debugf("Bumper %s pressed, basket coasting", channel)
	s.motionMu.Lock()
	defer s.motionMu.Unlock()
	s.bumps.Inc()
	if err := s.basket.Stop(context.Background(), types.Coast); err != nil {
		return fmt.Errorf("bumper %s stop: %w", channel, err)
	}
	return nil
}

func limitFor(dir types.Direction) string {
	if dir == types.Reverse {
		return hardware.ChannelBasketUpBumper
	}
	return hardware.ChannelBasketDownBumper
}

// SpinFor rotates the basket by amount, blocking up to timeout. The previous
// basket timeout is restored afterwards. A timeout is logged and returned
// as hardware.ErrTimeout.
func (s *ActuatorSafety) SpinFor(ctx context.Context, dir types.Direction, amount types.Angle, timeout time.Duration) error {
	limit := limitFor(dir)
	if s.pressed(limit) {
		s.logger.Infof("Basket already at %s, skipping %s %v", limit, dir, amount)
		return nil
	}

	prev := s.basket.Timeout()
	s.basket.SetTimeout(timeout)
	defer s.basket.SetTimeout(prev)

	err := s.basket.SpinFor(ctx, dir, amount, types.Pct(FullPower))
	if errors.Is(err, hardware.ErrTimeout) {
		s.logger.Warnf("Basket %s %v timed out after %v", dir, amount, timeout)
	}
	return err
}

func (s *ActuatorSafety) IntakeForward(ctx context.Context) error {
	return s.intake.Spin(ctx, types.Forward, types.Pct(FullPower))
}

func (s *ActuatorSafety) IntakeReverse(ctx context.Context) error {
	return s.intake.Spin(ctx, types.Reverse, types.Pct(FullPower))
}

// StopAll coasts every actuator. drive may be nil when no drivetrain is usable.
func (s *ActuatorSafety) StopAll(ctx context.Context, drive hardware.DriveTrain) error {
	var errs error
	if drive != nil {
		errs = multierr.Append(errs, drive.Stop(ctx, types.Coast))
	}
	errs = multierr.Append(errs, s.intake.Stop(ctx, types.Coast))
	errs = multierr.Append(errs, s.basket.Stop(ctx, types.Coast))
	return errs
}
