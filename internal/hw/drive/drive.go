package drive

import (
	"sync"

	"github.com/cjeanneret/BrickGo/internal/debug"
	"github.com/cjeanneret/BrickGo/internal/hw/gpio"
)

// MaxSpeed bounds the raw speed range: [-MaxSpeed, +MaxSpeed].
const MaxSpeed = 255

// Config holds the hardware configuration for an H-bridge motor driver.
type Config struct {
	EnablePin int
	DirPin    int
	PwmPin    int
}

// HBridge translates a signed speed into enable/direction/PWM pin
// states on a brushed motor driver. There is no feedback here; closed
// loop control lives in logic/motion. Safe for concurrent use.
type HBridge struct {
	gpio gpio.Driver
	cfg  Config

	mu      sync.Mutex
	speed   int
	enabled bool
}

// NewHBridge creates a raw drive over the given pins. The pins are not
// touched until Enable is called; an un-enabled drive is inert.
func NewHBridge(g gpio.Driver, cfg Config) *HBridge {
	return &HBridge{
		gpio: g,
		cfg:  cfg,
	}
}

// Enable sets the en/dir/pwm pins as outputs and stops the motor.
func (h *HBridge) Enable() error {
	debug.Verbose("Drive: enabling (en=%d dir=%d pwm=%d)", h.cfg.EnablePin, h.cfg.DirPin, h.cfg.PwmPin)

	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.gpio.SetupPin(h.cfg.DirPin, gpio.Output); err != nil {
		return err
	}
	if err := h.gpio.SetupPin(h.cfg.PwmPin, gpio.Output); err != nil {
		return err
	}
	if err := h.gpio.SetupPin(h.cfg.EnablePin, gpio.Output); err != nil {
		return err
	}
	h.enabled = true
	return h.stop()
}

// Disable reverts the pins to inputs (high impedance). The driver chip
// sees floating control lines, so the motor freewheels.
func (h *HBridge) Disable() error {
	debug.Verbose("Drive: disabling")

	h.mu.Lock()
	defer h.mu.Unlock()
	h.enabled = false
	if err := h.gpio.SetupPin(h.cfg.DirPin, gpio.Input); err != nil {
		return err
	}
	if err := h.gpio.SetupPin(h.cfg.PwmPin, gpio.Input); err != nil {
		return err
	}
	return h.gpio.SetupPin(h.cfg.EnablePin, gpio.Input)
}

// Enabled reports whether the pins are configured as outputs.
func (h *HBridge) Enabled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.enabled
}

// Stop drives all control pins inactive, turning off the motor.
func (h *HBridge) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stop()
}

// stop writes the inactive pin states. mu must be held.
func (h *HBridge) stop() error {
	if err := h.gpio.WritePin(h.cfg.EnablePin, gpio.Low); err != nil {
		return err
	}
	if err := h.gpio.WritePin(h.cfg.DirPin, gpio.Low); err != nil {
		return err
	}
	return h.gpio.WritePWM(h.cfg.PwmPin, 0)
}

// SetSpeed sets an open-loop speed between -255 and +255 (0 = stop).
// Out-of-range values are clamped. When the direction pin is high the
// bridge inverts the PWM sense, so reverse writes the inverted duty.
func (h *HBridge) SetSpeed(s int) error {
	if s > MaxSpeed {
		s = MaxSpeed
	} else if s < -MaxSpeed {
		s = -MaxSpeed
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.speed = s

	debug.Trace("Drive: speed %d", s)

	if s == 0 {
		return h.stop()
	}

	var dir gpio.Level
	var duty uint8
	if s < 0 {
		dir = gpio.High
		duty = uint8(MaxSpeed + s)
	} else {
		dir = gpio.Low
		duty = uint8(s)
	}

	if err := h.gpio.WritePin(h.cfg.DirPin, dir); err != nil {
		return err
	}
	if err := h.gpio.WritePWM(h.cfg.PwmPin, duty); err != nil {
		return err
	}
	return h.gpio.WritePin(h.cfg.EnablePin, gpio.High)
}

// Speed returns the last commanded raw speed.
func (h *HBridge) Speed() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.speed
}
