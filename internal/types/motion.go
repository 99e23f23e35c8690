package types

import "fmt"

type Direction int

const (
	Forward Direction = iota
	Reverse
)

func (d Direction) String() string {
	if d == Reverse {
		return "reverse"
	}
	return "forward"
}

type TurnDirection int

const (
	Left TurnDirection = iota
	Right
)

func (d TurnDirection) String() string {
	if d == Right {
		return "right"
	}
	return "left"
}

// BrakeMode selects how an actuator behaves once power is removed.
type BrakeMode string

const (
	Coast BrakeMode = "coast" // power removed, free to move
)

type DistanceUnit string

const (
	MM DistanceUnit = "mm"
)

type RotationUnit string

const (
	Degrees RotationUnit = "deg"
	Turns   RotationUnit = "turns"
)

type VelocityUnit string

const (
	Percent VelocityUnit = "pct"
	RPM     VelocityUnit = "rpm"
)

// Distance, Angle and Velocity are passed to the motor controller untouched.
type Distance struct {
	Value float64
	Unit  DistanceUnit
}

type Angle struct {
	Value float64
	Unit  RotationUnit
}

type Velocity struct {
	Value float64
	Unit  VelocityUnit
}

func Millimetres(v float64) Distance { return Distance{Value: v, Unit: MM} }
func Deg(v float64) Angle            { return Angle{Value: v, Unit: Degrees} }
func TurnsOf(v float64) Angle        { return Angle{Value: v, Unit: Turns} }
func Pct(v float64) Velocity         { return Velocity{Value: v, Unit: Percent} }

// Scale returns the angle multiplied by f, keeping its unit.
func (a Angle) Scale(f float64) Angle {
	return Angle{Value: a.Value * f, Unit: a.Unit}
}

func (d Distance) String() string { return fmt.Sprintf("%g%s", d.Value, d.Unit) }
func (a Angle) String() string    { return fmt.Sprintf("%g%s", a.Value, a.Unit) }
func (v Velocity) String() string { return fmt.Sprintf("%g%s", v.Value, v.Unit) }

type Color string

const (
	ColorBlack       Color = "black"
	ColorWhite       Color = "white"
	ColorRed         Color = "red"
	ColorGreen       Color = "green"
	ColorBlue        Color = "blue"
	ColorOrange      Color = "orange"
	ColorPurple      Color = "purple"
	ColorYellowGreen Color = "yellow_green"
)
