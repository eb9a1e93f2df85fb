package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/cjeanneret/BrickGo/internal/config"
	"github.com/cjeanneret/BrickGo/internal/control"
	"github.com/cjeanneret/BrickGo/internal/debug"
	"github.com/cjeanneret/BrickGo/internal/hw/drive"
	"github.com/cjeanneret/BrickGo/internal/hw/encoder"
	"github.com/cjeanneret/BrickGo/internal/hw/gpio"
	"github.com/cjeanneret/BrickGo/internal/logic/motion"
	"github.com/cjeanneret/BrickGo/internal/logic/sequence"
	"github.com/cjeanneret/BrickGo/internal/web"
)

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	gotoAngle := flag.Int64("goto-angle", 0, "seek this output angle in degrees and exit")
	gotoPosition := flag.Int64("goto-position", 0, "seek this encoder position in ticks and exit")
	timeoutMs := flag.Int("timeout-ms", 0, "give up on a one-shot move after this many milliseconds; 0 waits forever")
	flag.Parse()

	// flag.Int64 cannot distinguish "-goto-angle 0" from an absent
	// flag, and 0 is a perfectly good target.
	angleSet, positionSet := false, false
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "goto-angle":
			angleSet = true
		case "goto-position":
			positionSet = true
		}
	})
	if angleSet && positionSet {
		log.Fatal("-goto-angle and -goto-position are mutually exclusive")
	}
	if *timeoutMs < 0 {
		log.Fatal("-timeout-ms must not be negative")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)

	// Initialize GPIO driver
	debug.Step(1, "Initializing GPIO driver")
	debug.Value("GPIO driver", cfg.GPIO.Driver)
	gpioDriver, err := gpio.NewDriver(cfg.GPIO.Driver, cfg.GPIO.I2CBus, cfg.GPIO.I2CAddr)
	if err != nil {
		log.Fatalf("init GPIO failed: %v", err)
	}
	defer func() {
		if err := gpioDriver.Close(); err != nil {
			log.Printf("closing GPIO driver failed: %v", err)
		}
	}()

	// Initialize quadrature encoder and its background poll loop
	debug.Step(2, "Initializing quadrature encoder")
	enc, err := encoder.NewQuadrature(gpioDriver, cfg.Motor.EncoderAPin, cfg.Motor.EncoderBPin)
	if err != nil {
		log.Fatalf("init encoder failed: %v", err)
	}
	debug.Value("Encoder poll interval", cfg.EncoderPollInterval())
	go func() {
		if err := enc.Run(ctx, cfg.EncoderPollInterval()); err != nil && ctx.Err() == nil {
			log.Printf("encoder poll loop failed: %v", err)
		}
	}()

	// Initialize H-bridge and the closed-loop motor
	debug.Step(3, "Initializing motor")
	hb := drive.NewHBridge(gpioDriver, drive.Config{
		EnablePin: cfg.Motor.EnablePin,
		DirPin:    cfg.Motor.DirPin,
		PwmPin:    cfg.Motor.PwmPin,
	})
	debug.PrintStruct("Motor config", cfg.Motor)
	engine := control.NewEngine(cfg.PID.Kp, cfg.PID.Ki, cfg.PID.Kd, cfg.Reverse())
	motor := motion.NewMotor(hb, enc, engine, motion.Config{
		Kp:               cfg.PID.Kp,
		Ki:               cfg.PID.Ki,
		Kd:               cfg.PID.Kd,
		Epsilon:          cfg.Motor.Epsilon,
		OutputMultiplier: cfg.Motor.OutputMultiplier,
		SampleTime:       cfg.SampleTime(),
	})
	if err := motor.Begin(); err != nil {
		log.Fatalf("enabling motor failed: %v", err)
	}
	defer func() {
		if err := motor.Disable(); err != nil {
			log.Printf("disabling motor failed: %v", err)
		}
	}()

	runner := sequence.NewRunner(motor)

	// Build runMove closure over the runner for one-shot and web moves
	runMove := func(ctx context.Context, req web.GotoRequest) error {
		step := sequence.Step{
			Angle:    req.Angle,
			Position: req.Position,
			Timeout:  time.Duration(req.TimeoutMs) * time.Millisecond,
		}
		return runner.Run(ctx, []sequence.Step{step})
	}

	if port := webPort.port(); port > 0 {
		webAddr := fmt.Sprintf(":%d", port)
		broadcaster := web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))

		formDefaults := web.FormConfig{
			Epsilon:          cfg.Motor.Epsilon,
			OutputMultiplier: cfg.Motor.OutputMultiplier,
			DefaultTimeoutMs: 5000,
		}
		srv := web.NewServer(webAddr, broadcaster, runMove, motor.Snapshot, formDefaults)
		if err := srv.Run(ctx); err != nil {
			log.Fatalf("web server: %v", err)
		}
		return
	}

	if angleSet || positionSet {
		req := web.GotoRequest{TimeoutMs: *timeoutMs}
		if angleSet {
			req.Angle = gotoAngle
		} else {
			req.Position = gotoPosition
		}
		if err := runMove(ctx, req); err != nil {
			log.Fatalf("move failed: %v", err)
		}
		return
	}

	if len(cfg.Sequence) > 0 {
		if err := runner.Run(ctx, stepsFromConfig(cfg.Sequence)); err != nil {
			log.Fatalf("sequence failed: %v", err)
		}
		return
	}

	log.Fatal("nothing to do: pass -web, -goto-angle/-goto-position, or a sequence in the config")
}

// stepsFromConfig converts configured sequence steps into runner steps.
func stepsFromConfig(steps []config.SequenceStep) []sequence.Step {
	out := make([]sequence.Step, 0, len(steps))
	for _, s := range steps {
		out = append(out, sequence.Step{
			Angle:    s.Angle,
			Position: s.Position,
			Timeout:  time.Duration(s.TimeoutMs) * time.Millisecond,
			Pause:    time.Duration(s.PauseMs) * time.Millisecond,
		})
	}
	return out
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
