package types

// Notice is a line of operator feedback printed on the onboard display.
type Notice string

const (
	NoticeAlreadyRunning       Notice = "Already running"
	NoticeAutoRunning          Notice = "Running auto already"
	NoticeManualLocked         Notice = "In manual mode"
	NoticeDone                 Notice = "Done"
	NoticeStopping             Notice = "STOPPING"
	NoticeCalibrating          Notice = "Calibrating..."
	NoticeCalibrated           Notice = "Calibrated"
	NoticeCalibrationCancelled Notice = "Cancelled Calibration!"
	NoticeCalibrationTimedOut  Notice = "Calibration timed out"
	NoticeCalibrationFailed    Notice = "FAILED Calibration"
)

// Notifier surfaces notices to the operator.
type Notifier interface {
	Notify(n Notice)
}
