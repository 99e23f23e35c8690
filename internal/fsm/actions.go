package fsm

import "github.com/librescoot/librefsm"

// Actions defines the hooks the lifecycle machine calls on state entry and
// exit. RobotSystem implements it.
type Actions interface {
	EnterModeSelect(c *librefsm.Context) error
	EnterRunning(c *librefsm.Context) error
	ExitRunning(c *librefsm.Context) error
}
