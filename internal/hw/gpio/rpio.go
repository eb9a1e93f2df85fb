package gpio

import (
	"fmt"

	"github.com/cjeanneret/BrickGo/internal/debug"
	"github.com/stianeikeland/go-rpio/v4"
)

// pwmClockHz is the PWM clock used for motor pins. With a cycle length
// of 255 this gives a carrier of about 32 kHz, above the audible range,
// so the motor windings do not whine.
const (
	pwmClockHz  = 255 * 32000
	pwmCycleLen = 255
)

// RPiDriver is the real implementation for Raspberry Pi using go-rpio.
type RPiDriver struct {
	pins    map[int]rpio.Pin
	pwmPins map[int]rpio.Pin
}

// NewRPiRealDriver creates a real GPIO driver for Raspberry Pi.
// Requires running on a Raspberry Pi with access to /dev/gpiomem or as root.
func NewRPiRealDriver() (*RPiDriver, error) {
	debug.Info("Initializing real GPIO driver (go-rpio)")

	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("failed to open GPIO: %w (are you running on a Raspberry Pi?)", err)
	}

	debug.Verbose("GPIO memory mapped successfully")

	return &RPiDriver{
		pins:    make(map[int]rpio.Pin),
		pwmPins: make(map[int]rpio.Pin),
	}, nil
}

func (r *RPiDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)

	p := rpio.Pin(pin)
	r.pins[pin] = p

	switch mode {
	case Input:
		p.Input()
	case Output:
		p.Output()
	default:
		return fmt.Errorf("unknown pin mode: %d", mode)
	}

	return nil
}

func (r *RPiDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)

	p, ok := r.pins[pin]
	if !ok {
		// Pin not setup yet, setup as output
		if err := r.SetupPin(pin, Output); err != nil {
			return err
		}
		p = r.pins[pin]
	}

	if level == High {
		p.High()
	} else {
		p.Low()
	}

	return nil
}

func (r *RPiDriver) ReadPin(pin int) (Level, error) {
	debug.GPIO("ReadPin", pin, nil)

	p, ok := r.pins[pin]
	if !ok {
		// Pin not setup yet, setup as input
		if err := r.SetupPin(pin, Input); err != nil {
			return Low, err
		}
		p = r.pins[pin]
	}

	state := p.Read()
	if state == rpio.High {
		return High, nil
	}
	return Low, nil
}

// WritePWM sets a 0-255 duty cycle on a hardware PWM pin (BCM 12, 13,
// 18 or 19 on a Raspberry Pi). The first write switches the pin into
// PWM mode and programs the PWM clock.
func (r *RPiDriver) WritePWM(pin int, duty uint8) error {
	debug.GPIO("WritePWM", pin, duty)

	p, ok := r.pwmPins[pin]
	if !ok {
		p = rpio.Pin(pin)
		p.Pwm()
		p.Freq(pwmClockHz)
		r.pwmPins[pin] = p
	}

	p.DutyCycle(uint32(duty), pwmCycleLen)
	return nil
}

func (r *RPiDriver) Close() error {
	debug.Trace("GPIO Close (real driver)")

	// Reset all pins to input (safe state)
	for pin, p := range r.pwmPins {
		debug.Verbose("Resetting PWM pin %d to input", pin)
		p.DutyCycle(0, pwmCycleLen)
		p.Input()
	}
	for pin, p := range r.pins {
		debug.Verbose("Resetting pin %d to input", pin)
		p.Input()
	}

	return rpio.Close()
}
