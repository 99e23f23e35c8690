// Package auto runs the fixed autonomous scripts.
package auto

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"robot-service/internal/hardware"
	"robot-service/internal/logger"
	"robot-service/internal/types"
)

// Actuators is the intake/basket surface the scripts drive.
type Actuators interface {
	SpinFor(ctx context.Context, dir types.Direction, amount types.Angle, timeout time.Duration) error
	IntakeForward(ctx context.Context) error
	IntakeReverse(ctx context.Context) error
	StopAll(ctx context.Context, drive hardware.DriveTrain) error
}

type Sequencer struct {
	actuators Actuators
	clk       clock.Clock
	notifier  types.Notifier
	logger    *logger.Logger
	scripts   map[types.Mode]Script

	mu    sync.Mutex
	drive hardware.DriveTrain
}

func NewSequencer(actuators Actuators, clk clock.Clock, notifier types.Notifier, l *logger.Logger) *Sequencer {
	return &Sequencer{
		actuators: actuators,
		clk:       clk,
		notifier:  notifier,
		logger:    l.WithTag("Auto"),
		scripts:   Scripts,
	}
}

// SetDrive hands over the calibrated drivetrain. Until it is set, scripts
// refuse to move.
func (s *Sequencer) SetDrive(d hardware.DriveTrain) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drive = d
}

func (s *Sequencer) Drive() hardware.DriveTrain {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drive
}

// Run executes the script bound to mode, then stops every actuator. Steps
// that time out or fail are logged and skipped.
func (s *Sequencer) Run(ctx context.Context, mode types.Mode) error {
	script, ok := s.scripts[mode]
	if !ok {
		return fmt.Errorf("no script for mode %s", mode)
	}
	drive := s.Drive()
	defer s.StopAll(ctx, drive)

	if drive == nil {
		s.logger.Warnf("Drivetrain not calibrated, skipping %s", mode)
		s.notifier.Notify(types.NoticeCalibrationFailed)
		return nil
	}
	drive.SetTimeout(DriveDefaultTimeout)
	r := &runner{drive: drive, actuators: s.actuators, clk: s.clk}

	s.logger.Infof("Running %s (%d steps)", mode, len(script))
	for i, step := range script {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		start := s.clk.Now()
		err := step.Run(ctx, r)
		switch {
		case errors.Is(err, hardware.ErrTimeout):
			s.logger.Warnf("Step %d (%v) timed out, continuing", i+1, step)
		case err != nil:
			s.logger.Errorf("Step %d (%v) failed: %v", i+1, step, err)
		default:
			s.logger.Debugf("Step %d (%v) done in %v", i+1, step, s.clk.Since(start))
		}
	}
	return nil
}

// StopAll coasts every actuator and tells the operator.
func (s *Sequencer) StopAll(ctx context.Context, drive hardware.DriveTrain) {
	if err := s.actuators.StopAll(context.WithoutCancel(ctx), drive); err != nil {
		s.logger.Errorf("All-stop incomplete: %v", err)
	}
	s.notifier.Notify(types.NoticeStopping)
}

// runner carries what the steps of one script invocation act on.
type runner struct {
	drive     hardware.DriveTrain
	actuators Actuators
	clk       clock.Clock
}

// withDriveTimeout runs f with the drivetrain timeout tightened to override,
// restoring the previous value whatever f returns.
func (r *runner) withDriveTimeout(override time.Duration, f func() error) error {
	if override <= 0 {
		return f()
	}
	prev := r.drive.Timeout()
	r.drive.SetTimeout(override)
	defer r.drive.SetTimeout(prev)
	return f()
}
