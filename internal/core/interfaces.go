package core

import (
	"robot-service/internal/hardware"
	"robot-service/internal/types"
)

// StatePublisher defines the Redis operations needed by RobotSystem
type StatePublisher interface {
	PublishRobotState(state types.SystemState) error
	PublishMode(mode types.Mode) error
}

// Devices bundles the hardware RobotSystem drives. Inputs carries the
// console buttons, bumpers and gamepad.
type Devices struct {
	Inputs hardware.Inputs

	LeftMotor  hardware.Motor
	RightMotor hardware.Motor
	Basket     hardware.MotorGroup
	Intake     hardware.MotorGroup
	Drive      hardware.DriveTrain

	IMU       hardware.Inertial
	Screen    hardware.Screen
	Battery   hardware.Battery
	HealthLED hardware.HealthLED
}
