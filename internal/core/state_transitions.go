package core

import (
	"context"
	"runtime/debug"

	"robot-service/internal/fsm"
	"robot-service/internal/types"
)

// Advance moves the mode selector by delta. Any attempt, even a rejected
// one, cancels a pending calibration.
func (r *RobotSystem) Advance(delta int) {
	r.session.cancelCalibrationRequest()

	r.selectMu.Lock()
	if r.session.IsRunning() {
		r.selectMu.Unlock()
		r.logger.Infof("Mode change rejected: run in progress")
		r.Notify(types.NoticeAutoRunning)
		return
	}
	if r.session.ManualStarted() {
		r.selectMu.Unlock()
		r.logger.Infof("Mode change rejected: manual driving started")
		r.Notify(types.NoticeManualLocked)
		return
	}
	mode := r.session.step(delta)
	r.selectMu.Unlock()

	r.logger.Infof("Mode selected: %s", mode)
	r.displayMode(mode)
	r.HealthCheck(r.ctx)
	if err := r.publisher.PublishMode(mode); err != nil {
		r.logger.Warnf("Failed to publish mode: %v", err)
	}
}

// RunTrigger runs the selected mode to completion. A trigger while a run
// is active is rejected, never queued. MANUAL only returns at shutdown.
func (r *RobotSystem) RunTrigger(ctx context.Context) {
	r.selectMu.Lock()
	if !r.session.tryStartRun() {
		r.selectMu.Unlock()
		r.Notify(types.NoticeAlreadyRunning)
		return
	}
	mode := r.session.Mode()
	r.selectMu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			r.logger.Errorf("Run %s panicked: %v\n%s", mode, p, debug.Stack())
		}
		r.session.endRun()
		if err := r.sendEvent(fsm.EvRunDone); err != nil {
			r.logger.Warnf("Failed to leave running: %v", err)
		}
		r.Notify(types.NoticeDone)
	}()

	if mode == types.ModeManual {
		if err := r.sendEvent(fsm.EvRunManual); err != nil {
			r.logger.Warnf("Failed to enter running-manual: %v", err)
		}
		if err := r.teleop.Run(ctx); err != nil && ctx.Err() == nil {
			r.logger.Errorf("Manual drive ended: %v", err)
		}
		return
	}

	if err := r.sendEvent(fsm.EvRunAuto); err != nil {
		r.logger.Warnf("Failed to enter running-auto: %v", err)
	}
	r.safety.Reserve()
	defer r.safety.Unreserve()
	if err := r.seq.Run(ctx, mode); err != nil {
		r.logger.Errorf("Script %s ended: %v", mode, err)
	}
}
