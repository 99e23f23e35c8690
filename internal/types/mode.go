package types

// Mode is one of the fixed, ordered operating modes.
type Mode int

const (
	ModeManual Mode = iota
	ModeAutoA
	ModeAutoB
	ModeAutoC
)

// ModeCount is the size of the mode ring.
const ModeCount = 4

var modeNames = [ModeCount]string{"MANUAL", "AUTO_RED", "AUTO_BOTLEFT", "AUTO_BOTRIGHT"}

// modeColors holds the (fill, pen) pair shown while a mode is selected.
var modeColors = [ModeCount][2]Color{
	{ColorBlack, ColorWhite},
	{ColorRed, ColorWhite},
	{ColorYellowGreen, ColorBlack},
	{ColorPurple, ColorWhite},
}

func (m Mode) String() string {
	if m < 0 || m >= ModeCount {
		return "UNKNOWN"
	}
	return modeNames[m]
}

// Colors returns the fill and pen color for the mode.
func (m Mode) Colors() (fill, pen Color) {
	if m < 0 || m >= ModeCount {
		return ColorBlack, ColorWhite
	}
	c := modeColors[m]
	return c[0], c[1]
}

// IsAuto reports whether the mode runs a scripted routine.
func (m Mode) IsAuto() bool {
	return m != ModeManual
}

// Step moves delta positions around the mode ring, wrapping in both directions.
func (m Mode) Step(delta int) Mode {
	n := (int(m) + delta) % ModeCount
	if n < 0 {
		n += ModeCount
	}
	return Mode(n)
}
