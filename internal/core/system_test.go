package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"robot-service/internal/hardware"
	"robot-service/internal/logger"
	"robot-service/internal/types"
)

// Mock StatePublisher
type mockPublisher struct {
	mu     sync.Mutex
	states []types.SystemState
	modes  []types.Mode
}

func (m *mockPublisher) PublishRobotState(state types.SystemState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = append(m.states, state)
	return nil
}

func (m *mockPublisher) PublishMode(mode types.Mode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modes = append(m.modes, mode)
	return nil
}

func (m *mockPublisher) publishedStates() []types.SystemState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.SystemState(nil), m.states...)
}

// Mock Inputs
type mockInputs struct {
	mu             sync.Mutex
	digitalInputs  map[string]bool
	axes           map[string]float64
	inputCallbacks map[string]hardware.InputCallback
}

func newMockInputs() *mockInputs {
	return &mockInputs{
		digitalInputs:  make(map[string]bool),
		axes:           make(map[string]float64),
		inputCallbacks: make(map[string]hardware.InputCallback),
	}
}

func (m *mockInputs) ReadDigitalInput(channel string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.digitalInputs[channel], nil
}

func (m *mockInputs) ReadAxis(axis string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.axes[axis], nil
}

func (m *mockInputs) RegisterInputCallback(channel string, callback hardware.InputCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputCallbacks[channel] = callback
}

func (m *mockInputs) registered(channel string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.inputCallbacks[channel]
	return ok
}

// SimulateInput triggers an input callback
func (m *mockInputs) SimulateInput(channel string, value bool) error {
	m.mu.Lock()
	m.digitalInputs[channel] = value
	cb, ok := m.inputCallbacks[channel]
	m.mu.Unlock()
	if ok {
		return cb(channel, value)
	}
	return nil
}

// commandLog is shared by the actuator mocks
type commandLog struct {
	mu       sync.Mutex
	commands []string
}

func (c *commandLog) record(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commands = append(c.commands, fmt.Sprintf(format, args...))
}

func (c *commandLog) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.commands...)
}

func (c *commandLog) contains(cmd string) bool {
	for _, got := range c.all() {
		if got == cmd {
			return true
		}
	}
	return false
}

type mockMotor struct {
	name string
	log  *commandLog
}

func (m *mockMotor) SetVelocity(ctx context.Context, v types.Velocity) error {
	m.log.record("%s velocity %v", m.name, v)
	return nil
}

func (m *mockMotor) SetMaxTorque(ctx context.Context, pct float64) error {
	m.log.record("%s torque %g", m.name, pct)
	return nil
}

func (m *mockMotor) Spin(ctx context.Context, dir types.Direction) error {
	m.log.record("%s spin %s", m.name, dir)
	return nil
}

func (m *mockMotor) Stop(ctx context.Context, mode types.BrakeMode) error {
	m.log.record("%s stop %s", m.name, mode)
	return nil
}

type mockGroup struct {
	name    string
	log     *commandLog
	timeout time.Duration
}

func (m *mockGroup) Spin(ctx context.Context, dir types.Direction, v types.Velocity) error {
	m.log.record("%s spin %s %v", m.name, dir, v)
	return nil
}

func (m *mockGroup) SpinFor(ctx context.Context, dir types.Direction, a types.Angle, v types.Velocity) error {
	m.log.record("%s spinfor %s %v", m.name, dir, a)
	return nil
}

func (m *mockGroup) Stop(ctx context.Context, mode types.BrakeMode) error {
	m.log.record("%s stop %s", m.name, mode)
	return nil
}

func (m *mockGroup) SetTimeout(d time.Duration) { m.timeout = d }
func (m *mockGroup) Timeout() time.Duration     { return m.timeout }

type mockDrive struct {
	log     *commandLog
	timeout time.Duration
	panics  bool
	// gate, when set, holds every drive until closed
	gate chan struct{}
}

func (m *mockDrive) DriveFor(ctx context.Context, dir types.Direction, d types.Distance, v types.Velocity) error {
	if m.panics {
		panic("encoder fault")
	}
	m.log.record("drive %s %v %v", dir, d, v)
	if m.gate != nil {
		select {
		case <-m.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (m *mockDrive) TurnFor(ctx context.Context, dir types.TurnDirection, a types.Angle, v types.Velocity) error {
	m.log.record("turn %s %v %v", dir, a, v)
	return nil
}

func (m *mockDrive) Stop(ctx context.Context, mode types.BrakeMode) error {
	m.log.record("drive stop %s", mode)
	return nil
}

func (m *mockDrive) SetTimeout(d time.Duration) { m.timeout = d }
func (m *mockDrive) Timeout() time.Duration     { return m.timeout }

type mockIMU struct {
	mu          sync.Mutex
	calibrating bool
}

func (m *mockIMU) Calibrate(ctx context.Context) error { return nil }

func (m *mockIMU) IsCalibrating(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calibrating, nil
}

type mockScreen struct {
	log *commandLog
}

func (m *mockScreen) SetPenColor(c types.Color) error  { m.log.record("pen %s", c); return nil }
func (m *mockScreen) SetFillColor(c types.Color) error { m.log.record("fill %s", c); return nil }
func (m *mockScreen) Clear(c types.Color) error        { m.log.record("clear %s", c); return nil }
func (m *mockScreen) Print(line string) error          { m.log.record("print %s", line); return nil }

// printed returns just the printed lines
func (m *mockScreen) printed() []string {
	var lines []string
	for _, c := range m.log.all() {
		if strings.HasPrefix(c, "print ") {
			lines = append(lines, strings.TrimPrefix(c, "print "))
		}
	}
	return lines
}

type mockBattery struct {
	charge int
}

func (m *mockBattery) Capacity(ctx context.Context) (int, error) { return m.charge, nil }

type mockLED struct {
	mu    sync.Mutex
	color types.Color
}

func (m *mockLED) SetColor(c types.Color) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.color = c
	return nil
}

type testRig struct {
	system    *RobotSystem
	inputs    *mockInputs
	actuators *commandLog
	drive     *mockDrive
	imu       *mockIMU
	screen    *mockScreen
	led       *mockLED
	publisher *mockPublisher
	clock     *clock.Mock
}

// Test helper
func newTestRobotSystem() *testRig {
	l := logger.NewLogger(nil, logger.LogLevelError)
	acts := &commandLog{}
	rig := &testRig{
		inputs:    newMockInputs(),
		actuators: acts,
		drive:     &mockDrive{log: acts},
		imu:       &mockIMU{},
		screen:    &mockScreen{log: &commandLog{}},
		led:       &mockLED{},
		publisher: &mockPublisher{},
		clock:     clock.NewMock(),
	}
	dev := Devices{
		Inputs:     rig.inputs,
		LeftMotor:  &mockMotor{name: "left", log: acts},
		RightMotor: &mockMotor{name: "right", log: acts},
		Basket:     &mockGroup{name: "basket", log: acts},
		Intake:     &mockGroup{name: "intake", log: acts},
		Drive:      rig.drive,
		IMU:        rig.imu,
		Screen:     rig.screen,
		Battery:    &mockBattery{charge: 80},
		HealthLED:  rig.led,
	}
	rig.system = NewRobotSystem(dev, rig.publisher, rig.clock, l)
	return rig
}

func hasPrinted(s *mockScreen, want string) bool {
	for _, line := range s.printed() {
		if line == want {
			return true
		}
	}
	return false
}

func assertLastPrinted(t *testing.T, s *mockScreen, want string) {
	t.Helper()
	lines := s.printed()
	if len(lines) == 0 || lines[len(lines)-1] != want {
		t.Errorf("last printed line = %q, want %q", lines, want)
	}
}

// ===== Mode selection =====

func TestAdvanceWrapsAround(t *testing.T) {
	rig := newTestRobotSystem()
	s := rig.system

	s.Advance(-1)
	if s.session.Mode() != types.ModeAutoC {
		t.Fatalf("previous from MANUAL = %s, want AUTO_BOTRIGHT", s.session.Mode())
	}
	assertLastPrinted(t, rig.screen, "AUTO_BOTRIGHT")
	if !rig.screen.log.contains("clear purple") {
		t.Errorf("display not cleared to the mode fill: %v", rig.screen.log.all())
	}

	s.Advance(1)
	if s.session.Mode() != types.ModeManual {
		t.Fatalf("next from AUTO_BOTRIGHT = %s, want MANUAL", s.session.Mode())
	}
	if !s.session.CalibrationCancelled() {
		t.Error("mode change must cancel calibration")
	}
	if fmt.Sprint(rig.publisher.modes) != "[AUTO_BOTRIGHT MANUAL]" {
		t.Errorf("published modes = %v", rig.publisher.modes)
	}
}

func TestAdvanceRunsHealthCheck(t *testing.T) {
	rig := newTestRobotSystem()
	rig.system.Advance(1)
	if rig.led.color != types.ColorGreen {
		t.Errorf("health LED = %s at 80%%, want green", rig.led.color)
	}
}

func TestAdvanceRejectedWhileRunning(t *testing.T) {
	rig := newTestRobotSystem()
	s := rig.system
	s.session.isRunning.Store(true)

	s.Advance(1)

	if s.session.Mode() != types.ModeManual {
		t.Errorf("mode changed during a run: %s", s.session.Mode())
	}
	assertLastPrinted(t, rig.screen, string(types.NoticeAutoRunning))
	if !s.session.CalibrationCancelled() {
		t.Error("a rejected attempt must still cancel calibration")
	}
}

func TestAdvanceRejectedAfterManualInput(t *testing.T) {
	rig := newTestRobotSystem()
	s := rig.system
	s.session.markManualStarted()

	s.Advance(-1)

	if s.session.Mode() != types.ModeManual {
		t.Errorf("mode changed after manual input: %s", s.session.Mode())
	}
	assertLastPrinted(t, rig.screen, string(types.NoticeManualLocked))
	if len(rig.publisher.modes) != 0 {
		t.Errorf("rejected change was published: %v", rig.publisher.modes)
	}
}

func TestNotifyUsesModeColors(t *testing.T) {
	rig := newTestRobotSystem()
	rig.system.Advance(2) // AUTO_BOTLEFT
	rig.screen.log = &commandLog{}

	rig.system.Notify(types.NoticeDone)

	want := []string{"fill yellow_green", "pen black", "print Done"}
	if fmt.Sprint(rig.screen.log.all()) != fmt.Sprint(want) {
		t.Errorf("notify = %v, want %v", rig.screen.log.all(), want)
	}
}

// ===== Run trigger =====

func TestRunTriggerRejectsReentry(t *testing.T) {
	rig := newTestRobotSystem()
	s := rig.system
	s.session.isRunning.Store(true)

	s.RunTrigger(context.Background())

	assertLastPrinted(t, rig.screen, string(types.NoticeAlreadyRunning))
	if !s.session.IsRunning() {
		t.Error("rejected trigger must not clear the active run")
	}
	if len(rig.actuators.all()) != 0 {
		t.Errorf("rejected trigger issued commands: %v", rig.actuators.all())
	}
}

func TestUncalibratedAutoRun(t *testing.T) {
	rig := newTestRobotSystem()
	s := rig.system
	s.Advance(1) // AUTO_RED

	s.RunTrigger(context.Background())

	for _, c := range rig.actuators.all() {
		if strings.HasPrefix(c, "drive") || strings.HasPrefix(c, "turn") {
			t.Errorf("uncalibrated run moved the drivetrain: %q", c)
		}
	}
	if !rig.actuators.contains("intake stop coast") || !rig.actuators.contains("basket stop coast") {
		t.Errorf("all-stop missing: %v", rig.actuators.all())
	}
	lines := rig.screen.printed()
	want := []string{string(types.NoticeCalibrationFailed), string(types.NoticeStopping), string(types.NoticeDone)}
	if fmt.Sprint(lines[len(lines)-3:]) != fmt.Sprint(want) {
		t.Errorf("notices = %v, want suffix %v", lines, want)
	}
	if s.session.IsRunning() {
		t.Error("isRunning must be cleared after the run")
	}
}

func TestCalibratedAutoRun(t *testing.T) {
	rig := newTestRobotSystem()
	s := rig.system
	s.seq.SetDrive(rig.drive)
	s.Advance(1)

	s.RunTrigger(context.Background())

	want := []string{
		"drive forward 500mm 100pct",
		"drive reverse 500mm 100pct",
		"drive stop coast",
		"intake stop coast",
		"basket stop coast",
	}
	if fmt.Sprint(rig.actuators.all()) != fmt.Sprint(want) {
		t.Errorf("commands = %v, want %v", rig.actuators.all(), want)
	}
	assertLastPrinted(t, rig.screen, string(types.NoticeDone))
}

func TestRunTriggerRecoversPanic(t *testing.T) {
	rig := newTestRobotSystem()
	s := rig.system
	rig.drive.panics = true
	s.seq.SetDrive(rig.drive)
	s.Advance(1)

	s.RunTrigger(context.Background())

	if s.session.IsRunning() {
		t.Error("isRunning must be cleared after a panic")
	}
	assertLastPrinted(t, rig.screen, string(types.NoticeDone))
}

func TestManualRunUntilShutdown(t *testing.T) {
	rig := newTestRobotSystem()
	s := rig.system
	rig.inputs.axes[hardware.AxisA] = 50

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.RunTrigger(ctx)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !s.session.ManualStarted() {
		if time.Now().After(deadline) {
			t.Fatal("manual input never observed")
		}
		rig.clock.Add(50 * time.Millisecond)
	}
	if !s.session.IsRunning() {
		t.Error("MANUAL run must hold isRunning")
	}

	s.Advance(1)
	if s.session.Mode() != types.ModeManual {
		t.Error("mode changed during a manual run")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("manual run did not stop on shutdown")
	}
	if !rig.actuators.contains("left velocity 50pct") {
		t.Errorf("left motor never followed the stick: %v", rig.actuators.all())
	}
	assertLastPrinted(t, rig.screen, string(types.NoticeDone))
}

// ===== Operator inputs =====

func TestOperatorInputsIgnoredDuringAuto(t *testing.T) {
	rig := newTestRobotSystem()
	s := rig.system
	s.ctx = context.Background()
	s.registerSafetyInputs()
	s.Advance(1)
	s.session.isRunning.Store(true)

	rig.inputs.SimulateInput(hardware.ChannelIntakeForward, true)
	rig.inputs.SimulateInput(hardware.ChannelBasketRaise, false)
	if len(rig.actuators.all()) != 0 {
		t.Errorf("operator buttons acted during auto: %v", rig.actuators.all())
	}

	rig.inputs.SimulateInput(hardware.ChannelAllStop, true)
	if !rig.actuators.contains("intake stop coast") || !rig.actuators.contains("basket stop coast") {
		t.Errorf("all-stop not honored: %v", rig.actuators.all())
	}
	assertLastPrinted(t, rig.screen, string(types.NoticeStopping))
}

func TestOperatorIntakeAndRelease(t *testing.T) {
	rig := newTestRobotSystem()
	s := rig.system
	s.ctx = context.Background()
	s.registerSafetyInputs()

	rig.inputs.SimulateInput(hardware.ChannelIntakeForward, true)
	rig.inputs.SimulateInput(hardware.ChannelIntakeReverse, true)
	rig.inputs.SimulateInput(hardware.ChannelBasketLower, false)

	want := []string{"intake spin forward 100pct", "intake spin reverse 100pct", "basket stop coast"}
	if fmt.Sprint(rig.actuators.all()) != fmt.Sprint(want) {
		t.Errorf("commands = %v, want %v", rig.actuators.all(), want)
	}
}

func TestBumperCoastsBasket(t *testing.T) {
	rig := newTestRobotSystem()
	rig.system.registerSafetyInputs()

	rig.inputs.SimulateInput(hardware.ChannelBasketUpBumper, true)
	if !rig.actuators.contains("basket stop coast") {
		t.Errorf("bumper did not stop the basket: %v", rig.actuators.all())
	}
}

func TestRunTriggerEndsOperatorBasketMove(t *testing.T) {
	rig := newTestRobotSystem()
	s := rig.system
	s.ctx = context.Background()
	s.registerSafetyInputs()
	s.seq.SetDrive(rig.drive)
	s.Advance(2) // AUTO_BOTLEFT

	rig.inputs.SimulateInput(hardware.ChannelBasketRaise, true)
	deadline := time.Now().Add(2 * time.Second)
	for !rig.actuators.contains("basket spin reverse 100pct") {
		if time.Now().After(deadline) {
			t.Fatal("operator raise never started")
		}
		time.Sleep(time.Millisecond)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.RunTrigger(context.Background())
	}()
	deadline = time.Now().Add(2 * time.Second)
	for finished := false; !finished; {
		select {
		case <-done:
			finished = true
		default:
			if time.Now().After(deadline) {
				t.Fatal("scripted run did not finish")
			}
			rig.clock.Add(50 * time.Millisecond)
		}
	}

	scripted := false
	for _, c := range rig.actuators.all() {
		if c == "intake spin forward 100pct" {
			scripted = true
		}
		if scripted && c == "basket spin reverse 100pct" {
			t.Errorf("operator raise spun the basket during the script: %v", rig.actuators.all())
			break
		}
	}
	if !scripted {
		t.Errorf("script never started: %v", rig.actuators.all())
	}
	if s.safety.Moving() {
		t.Error("operator move still marked active after the script")
	}
	if s.safety.Reserved() {
		t.Error("basket still reserved after the script")
	}
}

func TestConcurrentRunTriggersRunOnce(t *testing.T) {
	rig := newTestRobotSystem()
	s := rig.system
	rig.drive.gate = make(chan struct{})
	s.seq.SetDrive(rig.drive)
	s.Advance(1) // AUTO_RED

	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			s.RunTrigger(context.Background())
		}()
	}
	close(start)

	deadline := time.Now().Add(2 * time.Second)
	for !hasPrinted(rig.screen, string(types.NoticeAlreadyRunning)) {
		if time.Now().After(deadline) {
			t.Fatal("second trigger was never rejected")
		}
		time.Sleep(time.Millisecond)
	}
	close(rig.drive.gate)
	wg.Wait()

	runs := 0
	for _, c := range rig.actuators.all() {
		if c == "drive forward 500mm 100pct" {
			runs++
		}
	}
	if runs != 1 {
		t.Errorf("script ran %d times, want 1: %v", runs, rig.actuators.all())
	}
	rejected := 0
	for _, line := range rig.screen.printed() {
		if line == string(types.NoticeAlreadyRunning) {
			rejected++
		}
	}
	if rejected != 1 {
		t.Errorf("rejections = %d, want 1", rejected)
	}
	if s.session.IsRunning() {
		t.Error("isRunning must be cleared after the run")
	}
}

func TestHandlersRefusedAfterShutdown(t *testing.T) {
	rig := newTestRobotSystem()
	s := rig.system
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.Shutdown()

	called := false
	if s.goHandle(func(ctx context.Context) { called = true }) {
		t.Error("handler accepted after shutdown")
	}
	s.wg.Wait()
	if called {
		t.Error("refused handler ran")
	}
}

// ===== Health =====

func TestHealthColor(t *testing.T) {
	tests := []struct {
		charge int
		want   types.Color
	}{
		{100, types.ColorBlue},
		{86, types.ColorBlue},
		{85, types.ColorGreen},
		{76, types.ColorGreen},
		{75, types.ColorOrange},
		{61, types.ColorOrange},
		{60, types.ColorRed},
		{0, types.ColorRed},
	}
	for _, tt := range tests {
		if got := healthColor(tt.charge); got != tt.want {
			t.Errorf("healthColor(%d) = %s, want %s", tt.charge, got, tt.want)
		}
	}
}

func TestHandleControl(t *testing.T) {
	rig := newTestRobotSystem()
	s := rig.system
	if err := s.HandleControl("next"); err != nil {
		t.Fatalf("next: %v", err)
	}
	if s.session.Mode() != types.ModeAutoA {
		t.Errorf("mode = %s after next", s.session.Mode())
	}
	if err := s.HandleControl("reboot"); err == nil {
		t.Error("expected an error for an unknown command")
	}
}

// ===== Startup =====

func waitForState(t *testing.T, p *mockPublisher, want types.SystemState) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		states := p.publishedStates()
		if len(states) > 0 && states[len(states)-1] == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state %s never published, got %v", want, p.publishedStates())
}

func TestStartCalibrates(t *testing.T) {
	rig := newTestRobotSystem()
	s := rig.system

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Shutdown()

	waitForState(t, rig.publisher, types.StateModeSelect)
	if s.seq.Drive() == nil {
		t.Error("completed calibration must hand over the drivetrain")
	}
	if !rig.inputs.registered(hardware.ChannelBrainCheck) {
		t.Error("run trigger not registered after calibration")
	}
	lines := rig.screen.printed()
	want := []string{"MANUAL", string(types.NoticeCalibrating), string(types.NoticeCalibrated)}
	if fmt.Sprint(lines) != fmt.Sprint(want) {
		t.Errorf("startup display = %v, want %v", lines, want)
	}
}

func TestModeButtonCancelsCalibration(t *testing.T) {
	rig := newTestRobotSystem()
	s := rig.system
	rig.imu.calibrating = true

	started := make(chan error, 1)
	go func() { started <- s.Start(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for !rig.inputs.registered(hardware.ChannelBrainRight) {
		if time.Now().After(deadline) {
			t.Fatal("mode buttons never registered")
		}
		time.Sleep(time.Millisecond)
	}
	if rig.inputs.registered(hardware.ChannelBrainCheck) {
		t.Error("run trigger registered before calibration finished")
	}
	rig.inputs.SimulateInput(hardware.ChannelBrainRight, true)

	for {
		select {
		case err := <-started:
			if err != nil {
				t.Fatalf("Start: %v", err)
			}
			defer s.Shutdown()
			if s.seq.Drive() != nil {
				t.Error("cancelled calibration must leave the drivetrain unusable")
			}
			if s.session.Mode() != types.ModeAutoA {
				t.Errorf("mode = %s, want AUTO_RED", s.session.Mode())
			}
			lines := rig.screen.printed()
			found := false
			for _, l := range lines {
				found = found || l == string(types.NoticeCalibrationCancelled)
			}
			if !found {
				t.Errorf("no cancel notice in %v", lines)
			}
			return
		case <-time.After(time.Millisecond):
			rig.clock.Add(50 * time.Millisecond)
		}
		if time.Now().After(deadline.Add(2 * time.Second)) {
			t.Fatal("Start did not return")
		}
	}
}
