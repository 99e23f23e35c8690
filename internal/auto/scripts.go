package auto

import (
	"time"

	"robot-service/internal/types"
)

// Motion constants are tuned on the competition robot (track width 200.025 mm,
// wheel base 165.1 mm, wheel travel 200 mm).
const (
	// DriveDefaultTimeout is the drivetrain timeout every script starts with.
	DriveDefaultTimeout = 100 * time.Second
	// TurnScale compensates for the turn primitive rotating twice the
	// requested angle.
	TurnScale = 0.5
)

type Script []Step

var (
	fwd = types.Forward
	rev = types.Reverse
	mm  = types.Millimetres
	pct = types.Pct
)

// Scripts binds each autonomous mode to its routine.
var Scripts = map[types.Mode]Script{
	// Push forward and return home
	types.ModeAutoA: {
		Drive{Dir: fwd, Distance: mm(500), Velocity: pct(100), Timeout: 6 * time.Second},
		Drive{Dir: rev, Distance: mm(500), Velocity: pct(100)},
	},

	// Bottom-left start: collect, back into the goal, dump, then bump to
	// dislodge extra blocks.
	types.ModeAutoB: {
		Intake{Dir: fwd},
		Drive{Dir: fwd, Distance: mm(350), Velocity: pct(25)},
		Turn{Dir: types.Right, Angle: types.Deg(20), Velocity: pct(50)},
		Drive{Dir: rev, Distance: mm(360), Velocity: pct(50), Timeout: 2 * time.Second},
		Basket{Dir: rev, Amount: types.TurnsOf(2.5), Timeout: 2 * time.Second},
		Wait{Duration: 2 * time.Second},
		Drive{Dir: fwd, Distance: mm(150), Velocity: pct(50), Timeout: 2 * time.Second},
		Drive{Dir: rev, Distance: mm(150), Velocity: pct(50), Timeout: 2 * time.Second},
	},

	// Bottom-right start. The turn sometimes stalls, so it and every later
	// move are capped at three seconds.
	types.ModeAutoC: {
		Intake{Dir: fwd},
		Drive{Dir: fwd, Distance: mm(350), Velocity: pct(50)},
		Drive{Dir: rev, Distance: mm(150), Velocity: pct(50)},
		Turn{Dir: types.Left, Angle: types.Deg(50), Velocity: pct(20), Timeout: 3 * time.Second},
		Drive{Dir: rev, Distance: mm(330), Velocity: pct(50), Timeout: 3 * time.Second},
		Basket{Dir: rev, Amount: types.TurnsOf(10.8), Timeout: 2 * time.Second},
		Drive{Dir: fwd, Distance: mm(3), Velocity: types.Velocity{Value: 100, Unit: types.RPM}, Timeout: 3 * time.Second},
		Drive{Dir: rev, Distance: mm(3), Velocity: types.Velocity{Value: 100, Unit: types.RPM}, Timeout: 3 * time.Second},
	},
}
