package hardware

import (
	"go.uber.org/multierr"

	"robot-service/internal/types"
)

// DigitalOutputs is the subset of the IO layer needed to drive output lines.
type DigitalOutputs interface {
	WriteDigitalOutput(channel string, value bool) error
}

// RGBLed drives a three-line common-cathode LED.
type RGBLed struct {
	out DigitalOutputs
}

func NewRGBLed(out DigitalOutputs) *RGBLed {
	return &RGBLed{out: out}
}

var ledComponents = map[types.Color][3]bool{
	types.ColorBlack:       {false, false, false},
	types.ColorWhite:       {true, true, true},
	types.ColorRed:         {true, false, false},
	types.ColorGreen:       {false, true, false},
	types.ColorBlue:        {false, false, true},
	types.ColorOrange:      {true, true, false},
	types.ColorPurple:      {true, false, true},
	types.ColorYellowGreen: {true, true, false},
}

func (l *RGBLed) SetColor(c types.Color) error {
	rgb, ok := ledComponents[c]
	if !ok {
		rgb = ledComponents[types.ColorRed]
	}
	return multierr.Combine(
		l.out.WriteDigitalOutput("health_red", rgb[0]),
		l.out.WriteDigitalOutput("health_green", rgb[1]),
		l.out.WriteDigitalOutput("health_blue", rgb[2]),
	)
}
