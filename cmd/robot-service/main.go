package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"

	"robot-service/internal/auto"
	"robot-service/internal/core"
	"robot-service/internal/hardware"
	"robot-service/internal/logger"
	"robot-service/internal/messaging"
	"robot-service/internal/types"
)

// groupTimeout is the intake and basket timeout outside scripted spins.
const groupTimeout = 10 * time.Second

// Drivetrain geometry of the competition robot.
var geometry = messaging.Geometry{
	WheelTravel: types.Millimetres(200),
	TrackWidth:  types.Millimetres(200.025),
	WheelBase:   types.Millimetres(165.1),
}

func main() {
	// Service log level
	var serviceLogLevel int
	flag.IntVar(&serviceLogLevel, "log", 3, "Service log level (0=NONE, 1=ERROR, 2=WARN, 3=INFO, 4=DEBUG)")
	redisHost := flag.String("redis-host", "127.0.0.1", "Redis host")
	redisPort := flag.Int("redis-port", 6379, "Redis port")
	gamepad := flag.String("gamepad", hardware.DefaultGamepadInput, "Gamepad evdev device")

	flag.Parse()

	// Create standard logger with appropriate format
	var stdLogger *log.Logger
	if os.Getenv("INVOCATION_ID") != "" {
		// Running under systemd, use minimal format
		stdLogger = log.New(os.Stdout, "", 0)
	} else {
		// Running interactively, use timestamps
		stdLogger = log.New(os.Stdout, "", log.LstdFlags|log.Lmicroseconds|log.Lmsgprefix)
	}

	// Create leveled logger
	l := logger.NewLogger(stdLogger, logger.LogLevel(serviceLogLevel))

	l.Infof("Starting robot service...")

	io := hardware.NewLinuxHardwareIO(l, *gamepad)
	if err := io.Initialize(); err != nil {
		l.Fatalf("Failed to initialize hardware: %v", err)
	}

	var system *core.RobotSystem
	redis := messaging.NewRedisClient(*redisHost, *redisPort, l.WithTag("Redis"), messaging.Callbacks{
		BatteryCallback: func() error { return system.HandleBatteryUpdate() },
		ControlCallback: func(cmd string) error { return system.HandleControl(cmd) },
	})
	if err := redis.Connect(); err != nil {
		l.Fatalf("Failed to connect to Redis: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	drive, err := messaging.NewRemoteDriveTrain(ctx, redis, "drivetrain", geometry, auto.DriveDefaultTimeout)
	if err != nil {
		l.Fatalf("Failed to set up drivetrain: %v", err)
	}

	system = core.NewRobotSystem(core.Devices{
		Inputs:     io,
		LeftMotor:  messaging.NewRemoteMotor(redis, "left"),
		RightMotor: messaging.NewRemoteMotor(redis, "right"),
		Basket:     messaging.NewRemoteMotorGroup(redis, "basket", groupTimeout),
		Intake:     messaging.NewRemoteMotorGroup(redis, "intake", groupTimeout),
		Drive:      drive,
		IMU:        messaging.NewRemoteIMU(redis),
		Screen:     messaging.NewDisplay(redis),
		Battery:    messaging.NewBattery(redis),
		HealthLED:  hardware.NewRGBLed(io),
	}, redis, clock.New(), l)

	if err := system.Start(ctx); err != nil {
		l.Fatalf("Failed to start system: %v", err)
	}
	if err := redis.StartListening(); err != nil {
		l.Fatalf("Failed to start Redis listeners: %v", err)
	}

	l.Infof("System started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	l.Infof("Received signal %v, shutting down...", sig)
	system.Shutdown()
	if err := redis.Close(); err != nil {
		l.Warnf("Failed to close Redis: %v", err)
	}
	if err := io.Cleanup(); err != nil {
		l.Warnf("Failed to release hardware: %v", err)
	}
	l.Infof("Shutdown complete")
}
