package fsm

import "github.com/librescoot/librefsm"

// NewDefinition creates the robot lifecycle definition. Calibration happens
// once after init; afterwards the robot alternates between mode-select and
// a run. Nothing leads back to init or calibrating.
func NewDefinition(actions Actions) *librefsm.Definition {
	return librefsm.NewDefinition().
		State(StateInit).
		State(StateCalibrating).
		State(StateModeSelect,
			librefsm.WithOnEnter(actions.EnterModeSelect),
		).
		State(StateRunning,
			librefsm.WithOnEnter(actions.EnterRunning),
			librefsm.WithOnExit(actions.ExitRunning),
		).
		State(StateRunningManual,
			librefsm.WithParent(StateRunning),
		).
		State(StateRunningAuto,
			librefsm.WithParent(StateRunning),
		).

		// Startup
		Transition(StateInit, EvCalibrate, StateCalibrating).
		Transition(StateCalibrating, EvCalibrationDone, StateModeSelect).

		// Runs
		Transition(StateModeSelect, EvRunManual, StateRunningManual).
		Transition(StateModeSelect, EvRunAuto, StateRunningAuto).
		Transition(StateRunning, EvRunDone, StateModeSelect).
		Initial(StateInit)
}
