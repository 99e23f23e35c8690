package core

import (
	"context"
	"fmt"

	"robot-service/internal/types"
)

// Battery thresholds for the health LED, in percent.
const (
	healthBlueAbove   = 85
	healthGreenAbove  = 75
	healthOrangeAbove = 60
)

// HandleControl executes a remote console command ("next", "prev", "run",
// "stop") as if the matching button had been pressed.
func (r *RobotSystem) HandleControl(cmd string) error {
	r.logger.Infof("Remote control: %s", cmd)
	switch cmd {
	case "next":
		r.Advance(1)
	case "prev":
		r.Advance(-1)
	case "run":
		r.goHandle(r.RunTrigger)
	case "stop":
		return r.AllStop()
	default:
		return fmt.Errorf("unknown control command: %s", cmd)
	}
	return nil
}

// HandleBatteryUpdate refreshes the health LED when the battery service
// publishes a new charge.
func (r *RobotSystem) HandleBatteryUpdate() error {
	r.HealthCheck(r.ctx)
	return nil
}

// HealthCheck shows the battery charge on the health LED.
func (r *RobotSystem) HealthCheck(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	charge, err := r.dev.Battery.Capacity(ctx)
	if err != nil {
		r.logger.Warnf("Failed to read battery: %v", err)
		return
	}
	color := healthColor(charge)
	r.logger.Debugf("Battery at %d%%, health %s", charge, color)
	if err := r.dev.HealthLED.SetColor(color); err != nil {
		r.logger.Warnf("Failed to set health LED: %v", err)
	}
}

func healthColor(charge int) types.Color {
	switch {
	case charge > healthBlueAbove:
		return types.ColorBlue
	case charge > healthGreenAbove:
		return types.ColorGreen
	case charge > healthOrangeAbove:
		return types.ColorOrange
	default:
		return types.ColorRed
	}
}
