package fsm

import "github.com/librescoot/librefsm"

// Robot lifecycle states
const (
	StateInit        librefsm.StateID = "init"
	StateCalibrating librefsm.StateID = "calibrating"
	StateModeSelect  librefsm.StateID = "mode-select"

	// Running parent state and its substates
	StateRunning       librefsm.StateID = "running"
	StateRunningManual librefsm.StateID = "running-manual"
	StateRunningAuto   librefsm.StateID = "running-auto"
)

// Robot lifecycle events
const (
	EvCalibrate       librefsm.EventID = "calibrate"
	EvCalibrationDone librefsm.EventID = "calibration-done"
	EvRunManual       librefsm.EventID = "run-manual"
	EvRunAuto         librefsm.EventID = "run-auto"
	EvRunDone         librefsm.EventID = "run-done"
)
