package hardware

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"time"
	"unsafe"

	"github.com/warthog618/go-gpiocdev"
	"go.uber.org/multierr"
	"golang.org/x/sys/unix"

	"robot-service/internal/logger"
)

const (
	EV_SYN = 0x00
	EV_KEY = 0x01
	EV_ABS = 0x03

	BTN_NORTH = 0x133 // all_stop
	BTN_TL    = 0x136 // intake_forward
	BTN_TR    = 0x137 // basket_raise
	BTN_TL2   = 0x138 // intake_reverse
	BTN_TR2   = 0x139 // basket_lower

	ABS_Y  = 0x01 // axis_a
	ABS_RY = 0x04 // axis_d

	evIocGKey = 0x80804518 // EVIOCGKEY(128)
	evIocGAbs = 0x80184540 // EVIOCGABS(0), add the axis code
)

var timevalSize = int(unsafe.Sizeof(unix.Timeval{}))

// eventSize is sizeof(struct input_event) on this platform.
var eventSize = timevalSize + 8

type InputEvent struct {
	Type  uint16
	Code  uint16
	Value int32
}

type absInfo struct {
	Value      int32
	Minimum    int32
	Maximum    int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

type axisMapping struct {
	name   string
	invert bool
}

var absMappings = map[uint16]axisMapping{
	ABS_Y:  {AxisA, true},
	ABS_RY: {AxisD, true},
}

// LinuxHardwareIO reads onboard buttons and bumpers from GPIO lines, the
// operator gamepad from an evdev device, and drives the health LED lines.
type LinuxHardwareIO struct {
	logger          *logger.Logger
	gpioChipPrefix  string
	inputDevicePath string
	inputFile       *os.File
	chips           map[int]*gpiocdev.Chip
	inputLines      map[string]*gpiocdev.Line
	outputLines     map[string]*gpiocdev.Line
	inputCallbacks  map[string]InputCallback
	mu              sync.RWMutex
	stopChan        chan struct{}
	activeKeys      map[uint16]bool
	axes            map[uint16]absInfo
}

func NewLinuxHardwareIO(l *logger.Logger, inputDevicePath string) *LinuxHardwareIO {
	if inputDevicePath == "" {
		inputDevicePath = DefaultGamepadInput
	}
	return &LinuxHardwareIO{
		logger:          l.WithTag("HardwareIO"),
		gpioChipPrefix:  "gpiochip",
		inputDevicePath: inputDevicePath,
		chips:           make(map[int]*gpiocdev.Chip),
		inputLines:      make(map[string]*gpiocdev.Line),
		outputLines:     make(map[string]*gpiocdev.Line),
		inputCallbacks:  make(map[string]InputCallback),
		stopChan:        make(chan struct{}),
		activeKeys:      make(map[uint16]bool),
		axes:            make(map[uint16]absInfo),
	}
}

func (io *LinuxHardwareIO) chip(n int) (*gpiocdev.Chip, error) {
	if c, ok := io.chips[n]; ok {
		return c, nil
	}
	c, err := gpiocdev.NewChip(fmt.Sprintf("%s%d", io.gpioChipPrefix, n))
	if err != nil {
		return nil, fmt.Errorf("failed to open GPIO chip %d: %w", n, err)
	}
	io.chips[n] = c
	return c, nil
}

func (io *LinuxHardwareIO) Initialize() error {
	io.logger.Infof("Initializing hardware IO")

	for name, mapping := range DoMappings {
		chip, err := io.chip(mapping.Chip)
		if err != nil {
			return err
		}
		line, err := chip.RequestLine(mapping.Line,
			gpiocdev.AsOutput(0),
			gpiocdev.WithConsumer(Consumer))
		if err != nil {
			return fmt.Errorf("failed to request GPIO line %d: %w", mapping.Line, err)
		}
		io.outputLines[name] = line
		io.logger.Debugf("Configured DO %s: chip=%d, line=%d", name, mapping.Chip, mapping.Line)
	}

	for name, mapping := range DiMappings {
		chip, err := io.chip(mapping.Chip)
		if err != nil {
			return err
		}
		channel := name
		line, err := chip.RequestLine(mapping.Line,
			gpiocdev.AsInput,
			gpiocdev.AsActiveLow,
			gpiocdev.WithPullUp,
			gpiocdev.WithBothEdges,
			gpiocdev.WithDebounce(10*time.Millisecond),
			gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
				io.dispatch(channel, evt.Type == gpiocdev.LineEventRisingEdge)
			}),
			gpiocdev.WithConsumer(Consumer))
		if err != nil {
			return fmt.Errorf("failed to request GPIO line %d: %w", mapping.Line, err)
		}
		io.inputLines[name] = line
		io.logger.Debugf("Configured DI %s: chip=%d, line=%d", name, mapping.Chip, mapping.Line)
	}

	io.logger.Infof("Opening gamepad device: %s", io.inputDevicePath)
	var err error
	io.inputFile, err = os.OpenFile(io.inputDevicePath, os.O_RDONLY, 0)
	if err != nil {
		return fmt.Errorf("failed to open input device %s: %w", io.inputDevicePath, err)
	}

	if err := io.readInitialState(); err != nil {
		io.logger.Warnf("Failed to read initial gamepad state: %v", err)
	}

	go io.monitorInputs()

	return nil
}

func (io *LinuxHardwareIO) ioctl(req uintptr, ptr unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, io.inputFile.Fd(), req, uintptr(ptr))
	if errno != 0 {
		return errno
	}
	return nil
}

func (io *LinuxHardwareIO) readInitialState() error {
	buffer := make([]byte, 128)
	if err := io.ioctl(evIocGKey, unsafe.Pointer(&buffer[0])); err != nil {
		return fmt.Errorf("EVIOCGKEY ioctl failed: %w", err)
	}

	io.mu.Lock()
	defer io.mu.Unlock()

	for _, code := range []uint16{BTN_NORTH, BTN_TL, BTN_TR, BTN_TL2, BTN_TR2} {
		if keyBit(buffer, code) {
			io.activeKeys[code] = true
			io.logger.Debugf("Initial state: %s (code %d) is pressed", io.mapKeycode(code), code)
		}
	}

	var errs error
	for code := range absMappings {
		var info absInfo
		if err := io.ioctl(evIocGAbs+uintptr(code), unsafe.Pointer(&info)); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("EVIOCGABS(%d) ioctl failed: %w", code, err))
			continue
		}
		io.axes[code] = info
	}
	return errs
}

func keyBit(buffer []byte, code uint16) bool {
	byteOffset := int(code / 8)
	if byteOffset >= len(buffer) {
		return false
	}
	return buffer[byteOffset]&(1<<(code%8)) != 0
}

func (io *LinuxHardwareIO) monitorInputs() {
	buffer := make([]byte, eventSize)
	io.logger.Debugf("Starting gamepad event monitoring with event size: %d", eventSize)

	for {
		select {
		case <-io.stopChan:
			io.logger.Infof("Stopping gamepad monitoring")
			return
		default:
			n, err := io.inputFile.Read(buffer)
			if err != nil {
				io.logger.Warnf("Error reading gamepad: %v", err)
				time.Sleep(100 * time.Millisecond)
				continue
			}
			if n != len(buffer) {
				io.logger.Debugf("Incomplete read: got %d bytes, expected %d", n, len(buffer))
				continue
			}

			io.handleEvent(parseEvent(buffer))
		}
	}
}

func parseEvent(buffer []byte) InputEvent {
	b := buffer[timevalSize:]
	return InputEvent{
		Type:  binary.LittleEndian.Uint16(b[0:2]),
		Code:  binary.LittleEndian.Uint16(b[2:4]),
		Value: int32(binary.LittleEndian.Uint32(b[4:8])),
	}
}

func (io *LinuxHardwareIO) handleEvent(event InputEvent) {
	switch event.Type {
	case EV_ABS:
		io.mu.Lock()
		info := io.axes[event.Code]
		info.Value = event.Value
		io.axes[event.Code] = info
		io.mu.Unlock()

	case EV_KEY:
		// Repeat events (value 2) carry no new edge
		if event.Value > 1 {
			return
		}
		io.mu.Lock()
		if event.Value == 0 {
			delete(io.activeKeys, event.Code)
		} else {
			io.activeKeys[event.Code] = true
		}
		io.mu.Unlock()

		channel := io.mapKeycode(event.Code)
		if channel == "" {
			io.logger.Debugf("Unknown key code: %d", event.Code)
			return
		}
		io.dispatch(channel, event.Value == 1)
	}
}

func (io *LinuxHardwareIO) dispatch(channel string, value bool) {
	io.mu.RLock()
	callback, exists := io.inputCallbacks[channel]
	io.mu.RUnlock()

	if !exists {
		io.logger.Debugf("No callback registered for channel: %s", channel)
		return
	}
	io.logger.Debugf("Executing callback for channel %s (value=%v)", channel, value)
	if err := callback(channel, value); err != nil {
		io.logger.Warnf("Error in callback for %s: %v", channel, err)
	}
}

func (io *LinuxHardwareIO) mapKeycode(code uint16) string {
	switch code {
	case BTN_NORTH:
		return ChannelAllStop
	case BTN_TL:
		return ChannelIntakeForward
	case BTN_TR:
		return ChannelBasketRaise
	case BTN_TL2:
		return ChannelIntakeReverse
	case BTN_TR2:
		return ChannelBasketLower
	default:
		return ""
	}
}

func (io *LinuxHardwareIO) getKeycodeForChannel(channel string) uint16 {
	switch channel {
	case ChannelAllStop:
		return BTN_NORTH
	case ChannelIntakeForward:
		return BTN_TL
	case ChannelBasketRaise:
		return BTN_TR
	case ChannelIntakeReverse:
		return BTN_TL2
	case ChannelBasketLower:
		return BTN_TR2
	default:
		return 0
	}
}

func (io *LinuxHardwareIO) ReadDigitalInput(channel string) (bool, error) {
	io.mu.RLock()
	defer io.mu.RUnlock()

	if line, ok := io.inputLines[channel]; ok {
		v, err := line.Value()
		if err != nil {
			return false, fmt.Errorf("failed to read DI %s: %w", channel, err)
		}
		return v == 1, nil
	}

	keycode := io.getKeycodeForChannel(channel)
	if keycode == 0 {
		return false, fmt.Errorf("%w: %s", ErrUnknownChannel, channel)
	}
	return io.activeKeys[keycode], nil
}

func (io *LinuxHardwareIO) ReadAxis(axis string) (float64, error) {
	io.mu.RLock()
	defer io.mu.RUnlock()

	for code, mapping := range absMappings {
		if mapping.name != axis {
			continue
		}
		info, ok := io.axes[code]
		if !ok {
			return 0, nil
		}
		return NormalizeAxis(info.Value, info.Minimum, info.Maximum, mapping.invert), nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownChannel, axis)
}

func (io *LinuxHardwareIO) RegisterInputCallback(channel string, callback InputCallback) {
	io.mu.Lock()
	defer io.mu.Unlock()
	io.inputCallbacks[channel] = callback
	io.logger.Debugf("Registered callback for channel: %s", channel)
}

func (io *LinuxHardwareIO) WriteDigitalOutput(channel string, value bool) error {
	io.mu.RLock()
	line, ok := io.outputLines[channel]
	io.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, channel)
	}

	val := 0
	if value {
		val = 1
	}
	if err := line.SetValue(val); err != nil {
		return fmt.Errorf("failed to set DO %s=%v: %w", channel, value, err)
	}
	return nil
}

func (io *LinuxHardwareIO) Cleanup() error {
	close(io.stopChan)

	io.mu.Lock()
	defer io.mu.Unlock()

	io.logger.Infof("Cleaning up hardware resources")

	var errs error
	if io.inputFile != nil {
		errs = multierr.Append(errs, io.inputFile.Close())
	}
	for _, line := range io.inputLines {
		errs = multierr.Append(errs, line.Close())
	}
	for _, line := range io.outputLines {
		errs = multierr.Append(errs, line.Close())
	}
	for _, chip := range io.chips {
		errs = multierr.Append(errs, chip.Close())
	}
	return errs
}
