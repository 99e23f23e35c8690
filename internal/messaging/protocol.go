package messaging

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"robot-service/internal/hardware"
)

// Redis keys shared with the motor controller and sibling services.
const (
	motorListPrefix  = "robot:motor:"
	motorReplyPrefix = "robot:motor:reply:"
	imuList          = "robot:imu"
	displayList      = "robot:display"

	robotHash   = "robot"
	imuHash     = "imu"
	batteryHash = "battery"
)

// Replies pushed by the motor controller once a blocking command ends.
const (
	replyDone    = "done"
	replyStalled = "stalled"
)

// replyGrace is added to the actuator timeout when waiting for a reply, so the
// controller's own timeout fires first and reports "stalled".
const replyGrace = 500 * time.Millisecond

func motorList(actuator string) string { return motorListPrefix + actuator }
func replyList(id string) string       { return motorReplyPrefix + id }

// encodeCommand builds a space separated motor command line.
func encodeCommand(verb string, args ...any) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, verb)
	for _, a := range args {
		parts = append(parts, fmt.Sprint(a))
	}
	return strings.Join(parts, " ")
}

// millis renders a timeout for the controller, which counts in milliseconds.
func millis(d time.Duration) string {
	return strconv.FormatInt(d.Milliseconds(), 10)
}

// parseReply maps a controller reply onto the HAL errors.
func parseReply(actuator, reply string) error {
	switch reply {
	case replyDone:
		return nil
	case replyStalled:
		return fmt.Errorf("%s: %w", actuator, hardware.ErrTimeout)
	default:
		return fmt.Errorf("%s: unexpected reply %q", actuator, reply)
	}
}

func parseCharge(value string) (int, error) {
	charge, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid battery charge %q: %w", value, err)
	}
	if charge < 0 || charge > 100 {
		return 0, fmt.Errorf("battery charge %d out of range", charge)
	}
	return charge, nil
}
