package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/librescoot/librefsm"
	"go.uber.org/multierr"

	"robot-service/internal/auto"
	"robot-service/internal/calibration"
	"robot-service/internal/fsm"
	"robot-service/internal/hardware"
	"robot-service/internal/logger"
	"robot-service/internal/safety"
	"robot-service/internal/teleop"
	"robot-service/internal/types"
)

// shutdownWait bounds how long Shutdown waits for running handlers.
const shutdownWait = 5 * time.Second

type RobotSystem struct {
	session   *Session
	dev       Devices
	publisher StatePublisher
	clk       clock.Clock
	logger    *logger.Logger

	safety *safety.ActuatorSafety
	gate   *calibration.Gate
	teleop *teleop.Loop
	seq    *auto.Sequencer

	machine *librefsm.Machine

	// selectMu orders mode commits against run starts
	selectMu sync.Mutex
	// displayMu keeps the colors and text of one screen update together
	displayMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	// handlersMu orders handler starts against Shutdown's wait
	handlersMu sync.Mutex
	closing    bool
	wg         sync.WaitGroup
}

func NewRobotSystem(dev Devices, publisher StatePublisher, clk clock.Clock, l *logger.Logger) *RobotSystem {
	r := &RobotSystem{
		session:   NewSession(),
		dev:       dev,
		publisher: publisher,
		clk:       clk,
		logger:    l.WithTag("Robot"),
	}
	r.safety = safety.New(dev.Basket, dev.Intake, dev.Inputs, clk, l)
	r.gate = calibration.NewGate(dev.IMU, clk, r, l)
	r.teleop = teleop.NewLoop(dev.Inputs, dev.LeftMotor, dev.RightMotor, clk, r.session.markManualStarted, l)
	r.seq = auto.NewSequencer(r.safety, clk, r, l)
	return r
}

func (r *RobotSystem) Session() *Session {
	return r.session
}

// Start brings the robot up: safety inputs and mode buttons first, then the
// one calibration attempt, then the run trigger. It blocks for the duration
// of calibration.
func (r *RobotSystem) Start(ctx context.Context) error {
	r.logger.Infof("Starting robot system")
	r.ctx, r.cancel = context.WithCancel(ctx)

	if err := r.initFSM(r.ctx); err != nil {
		return fmt.Errorf("failed to start lifecycle: %w", err)
	}

	r.registerSafetyInputs()
	r.registerModeButtons()
	r.displayMode(r.session.Mode())

	if err := r.sendEvent(fsm.EvCalibrate); err != nil {
		r.logger.Warnf("Failed to enter calibrating: %v", err)
	}
	outcome := r.gate.Calibrate(r.ctx, calibration.DefaultMaxWaitTicks, r.session.CalibrationCancelled)
	r.logger.Infof("Calibration %v", outcome)
	if outcome == calibration.Completed {
		r.seq.SetDrive(r.dev.Drive)
	}
	if err := r.sendEvent(fsm.EvCalibrationDone); err != nil {
		r.logger.Warnf("Failed to enter mode-select: %v", err)
	}

	r.registerRunTrigger()
	r.logger.Infof("Robot system started")
	return nil
}

func (r *RobotSystem) registerSafetyInputs() {
	in := r.dev.Inputs
	in.RegisterInputCallback(hardware.ChannelBasketUpBumper, r.safety.OnBumper)
	in.RegisterInputCallback(hardware.ChannelBasketDownBumper, r.safety.OnBumper)
	for _, ch := range []string{
		hardware.ChannelBasketRaise,
		hardware.ChannelBasketLower,
		hardware.ChannelIntakeForward,
		hardware.ChannelIntakeReverse,
		hardware.ChannelAllStop,
	} {
		in.RegisterInputCallback(ch, r.handleOperatorInput)
	}
}

func (r *RobotSystem) registerModeButtons() {
	r.dev.Inputs.RegisterInputCallback(hardware.ChannelBrainRight, func(channel string, value bool) error {
		if value {
			r.Advance(1)
		}
		return nil
	})
	r.dev.Inputs.RegisterInputCallback(hardware.ChannelBrainLeft, func(channel string, value bool) error {
		if value {
			r.Advance(-1)
		}
		return nil
	})
}

func (r *RobotSystem) registerRunTrigger() {
	r.dev.Inputs.RegisterInputCallback(hardware.ChannelBrainCheck, func(channel string, value bool) error {
		if value {
			r.goHandle(r.RunTrigger)
		}
		return nil
	})
}

// goHandle runs a blocking handler off the input goroutine. Once shutdown
// has begun new handlers are refused.
func (r *RobotSystem) goHandle(f func(ctx context.Context)) bool {
	r.handlersMu.Lock()
	defer r.handlersMu.Unlock()
	if r.closing || (r.ctx != nil && r.ctx.Err() != nil) {
		r.logger.Debugf("Shutting down, handler refused")
		return false
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		f(r.ctx)
	}()
	return true
}

// handleOperatorInput maps the gamepad actuator buttons. Basket and intake
// belong to the script while one runs; all-stop is always honored.
func (r *RobotSystem) handleOperatorInput(channel string, value bool) error {
	if channel == hardware.ChannelAllStop {
		if value {
			return r.AllStop()
		}
		return nil
	}
	if r.session.autoRunning() {
		r.logger.Debugf("Ignoring %s during autonomous run", channel)
		return nil
	}

	switch channel {
	case hardware.ChannelBasketRaise, hardware.ChannelBasketLower:
		if !value {
			r.safety.Release(r.ctx)
			return nil
		}
		held := r.heldFunc(channel)
		if channel == hardware.ChannelBasketRaise {
			r.goHandle(func(ctx context.Context) { r.safety.Raise(ctx, held) })
		} else {
			r.goHandle(func(ctx context.Context) { r.safety.Lower(ctx, held) })
		}
	case hardware.ChannelIntakeForward:
		if value {
			return r.safety.IntakeForward(r.ctx)
		}
	case hardware.ChannelIntakeReverse:
		if value {
			return r.safety.IntakeReverse(r.ctx)
		}
	}
	return nil
}

// heldFunc reports whether a button is still down. An unreadable button
// counts as released.
func (r *RobotSystem) heldFunc(channel string) func() bool {
	return func() bool {
		v, err := r.dev.Inputs.ReadDigitalInput(channel)
		return err == nil && v
	}
}

// AllStop coasts every actuator and tells the operator.
func (r *RobotSystem) AllStop() error {
	err := r.safety.StopAll(context.WithoutCancel(r.ctx), r.seq.Drive())
	r.Notify(types.NoticeStopping)
	return err
}

// Notify prints n in the current mode's colors.
func (r *RobotSystem) Notify(n types.Notice) {
	fill, pen := r.session.Mode().Colors()

	r.displayMu.Lock()
	defer r.displayMu.Unlock()
	var errs error
	errs = multierr.Append(errs, r.dev.Screen.SetFillColor(fill))
	errs = multierr.Append(errs, r.dev.Screen.SetPenColor(pen))
	errs = multierr.Append(errs, r.dev.Screen.Print(string(n)))
	if errs != nil {
		r.logger.Warnf("Failed to show %q: %v", n, errs)
	}
}

// displayMode clears the screen to the mode's fill and prints its name.
func (r *RobotSystem) displayMode(m types.Mode) {
	fill, pen := m.Colors()

	r.displayMu.Lock()
	defer r.displayMu.Unlock()
	var errs error
	errs = multierr.Append(errs, r.dev.Screen.Clear(fill))
	errs = multierr.Append(errs, r.dev.Screen.SetFillColor(fill))
	errs = multierr.Append(errs, r.dev.Screen.SetPenColor(pen))
	errs = multierr.Append(errs, r.dev.Screen.Print(m.String()))
	if errs != nil {
		r.logger.Warnf("Failed to show mode %s: %v", m, errs)
	}
}

// Shutdown cancels every loop, waits for the handlers and coasts all
// actuators.
func (r *RobotSystem) Shutdown() {
	r.logger.Infof("Shutting down robot system")
	r.handlersMu.Lock()
	r.closing = true
	r.handlersMu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownWait):
		r.logger.Warnf("Timeout waiting for handlers to finish")
	}

	if err := r.safety.StopAll(context.Background(), r.seq.Drive()); err != nil {
		r.logger.Errorf("Failed to stop actuators: %v", err)
	}
}
