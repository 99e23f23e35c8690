package core

import (
	"context"

	"github.com/librescoot/librefsm"

	"robot-service/internal/fsm"
	"robot-service/internal/types"
)

// Ensure RobotSystem implements fsm.Actions
var _ fsm.Actions = (*RobotSystem)(nil)

// initFSM builds and starts the lifecycle machine. Every state change is
// published so dashboards can follow the robot.
func (r *RobotSystem) initFSM(ctx context.Context) error {
	machine, err := fsm.NewDefinition(r).Build()
	if err != nil {
		return err
	}
	r.machine = machine

	r.machine.OnStateChange(func(from, to librefsm.StateID) {
		r.logger.Infof("State transition: %s -> %s", from, to)
		// Publish the known new state; reading it back would re-enter the machine
		if err := r.publisher.PublishRobotState(types.SystemState(to)); err != nil {
			r.logger.Errorf("Failed to publish state: %v", err)
		}
	})

	if err := r.machine.Start(ctx); err != nil {
		return err
	}
	r.logger.Debugf("Lifecycle state machine started")
	return nil
}

func (r *RobotSystem) sendEvent(event librefsm.EventID) error {
	if r.machine == nil {
		return nil
	}
	return r.machine.SendSync(librefsm.Event{ID: event})
}

// State returns the current lifecycle state.
func (r *RobotSystem) State() types.SystemState {
	if r.machine == nil {
		return types.StateInit
	}
	return types.SystemState(r.machine.CurrentState())
}

// EnterModeSelect runs the startup health check once calibration is over
// and announces the selected mode.
func (r *RobotSystem) EnterModeSelect(c *librefsm.Context) error {
	if c.FromState != fsm.StateCalibrating {
		return nil
	}
	mode := r.session.Mode()
	r.HealthCheck(r.ctx)
	if err := r.publisher.PublishMode(mode); err != nil {
		r.logger.Warnf("Failed to publish mode: %v", err)
	}
	return nil
}

func (r *RobotSystem) EnterRunning(c *librefsm.Context) error {
	r.logger.Infof("Run of %s started", r.session.Mode())
	return nil
}

func (r *RobotSystem) ExitRunning(c *librefsm.Context) error {
	r.logger.Infof("Run of %s finished", r.session.Mode())
	return nil
}
