package hardware

// Input channels
const (
	ChannelBasketUpBumper   = "basket_up_bumper"
	ChannelBasketDownBumper = "basket_down_bumper"
	ChannelBrainLeft        = "brain_left"
	ChannelBrainRight       = "brain_right"
	ChannelBrainCheck       = "brain_check"

	ChannelBasketRaise   = "basket_raise"   // R up
	ChannelBasketLower   = "basket_lower"   // R down
	ChannelIntakeForward = "intake_forward" // L up
	ChannelIntakeReverse = "intake_reverse" // L down
	ChannelAllStop       = "all_stop"       // F up

	AxisA = "axis_a" // left drive
	AxisD = "axis_d" // right drive
)

const (
	DefaultGamepadInput = "/dev/input/by-id/robot-gamepad-event-joystick"
	Consumer            = "robot-service"
)

type LineMapping struct {
	Chip int
	Line int
}

// DiMappings are the onboard digital inputs. All are active low with pull-ups.
var DiMappings = map[string]LineMapping{
	ChannelBasketUpBumper:   {0, 17},
	ChannelBasketDownBumper: {0, 27},
	ChannelBrainLeft:        {0, 5},
	ChannelBrainRight:       {0, 6},
	ChannelBrainCheck:       {0, 13},
}

var DoMappings = map[string]LineMapping{
	"health_red":   {0, 22},
	"health_green": {0, 23},
	"health_blue":  {0, 24},
}
