package types

type SystemState string

const (
	StateInit          SystemState = "init"
	StateCalibrating   SystemState = "calibrating"
	StateModeSelect    SystemState = "mode-select"
	StateRunningManual SystemState = "running-manual"
	StateRunningAuto   SystemState = "running-auto"
)
