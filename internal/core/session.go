package core

import (
	"go.uber.org/atomic"

	"robot-service/internal/types"
)

// Session is the per-boot run state. Nothing in it survives a restart.
type Session struct {
	mode              *atomic.Int32
	isRunning         *atomic.Bool
	hasManualStarted  *atomic.Bool
	cancelCalibration *atomic.Bool
}

func NewSession() *Session {
	return &Session{
		mode:              atomic.NewInt32(int32(types.ModeManual)),
		isRunning:         atomic.NewBool(false),
		hasManualStarted:  atomic.NewBool(false),
		cancelCalibration: atomic.NewBool(false),
	}
}

func (s *Session) Mode() types.Mode {
	return types.Mode(s.mode.Load())
}

// step moves the selected mode and returns the new one.
func (s *Session) step(delta int) types.Mode {
	m := s.Mode().Step(delta)
	s.mode.Store(int32(m))
	return m
}

func (s *Session) IsRunning() bool {
	return s.isRunning.Load()
}

// tryStartRun claims the run slot. Only one caller wins.
func (s *Session) tryStartRun() bool {
	return s.isRunning.CompareAndSwap(false, true)
}

func (s *Session) endRun() {
	s.isRunning.Store(false)
}

func (s *Session) ManualStarted() bool {
	return s.hasManualStarted.Load()
}

func (s *Session) markManualStarted() {
	s.hasManualStarted.Store(true)
}

func (s *Session) cancelCalibrationRequest() {
	s.cancelCalibration.Store(true)
}

func (s *Session) CalibrationCancelled() bool {
	return s.cancelCalibration.Load()
}

// autoRunning reports whether a scripted run owns the actuators.
func (s *Session) autoRunning() bool {
	return s.IsRunning() && s.Mode().IsAuto()
}
