package gpio

import (
	"fmt"

	"github.com/cjeanneret/BrickGo/internal/debug"
)

// Level represents the logical state of a GPIO pin.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// PinMode indicates whether a GPIO is input or output.
type PinMode int

const (
	Input PinMode = iota
	Output
)

// Driver defines the abstract interface for controlling GPIOs.
// This allows plugging in a real Raspberry Pi implementation,
// an I2C expander chip, or a mock for development on PC.
// SetupPin, WritePin and ReadPin are the three primitives a transport
// must provide; WritePWM drives a duty cycle (0-255) on a PWM-capable
// pin and may be delegated to another driver by transports that cannot
// generate PWM themselves (see MCP23017Driver).
type Driver interface {
	SetupPin(pin int, mode PinMode) error
	WritePin(pin int, level Level) error
	ReadPin(pin int) (Level, error)
	WritePWM(pin int, duty uint8) error
	Close() error
}

// MockDriver is a test implementation that simply logs actions.
// Used for development on PC or testing.
type MockDriver struct{}

// NewDriver creates a GPIO driver based on the configured kind:
// "mock" for dev/test, "rpio" for direct Raspberry Pi pins,
// "mcp23017" for en/dir/encoder pins routed through an I2C expander.
func NewDriver(kind, i2cBus string, i2cAddr uint16) (Driver, error) {
	switch kind {
	case "", "mock":
		debug.Info("Using MOCK GPIO driver (development mode)")
		return &MockDriver{}, nil
	case "rpio":
		return NewRPiRealDriver()
	case "mcp23017":
		// The expander has no PWM output; the PWM pin stays on the
		// Pi's own header.
		base, err := NewRPiRealDriver()
		if err != nil {
			return nil, err
		}
		return NewMCP23017Driver(i2cBus, i2cAddr, base)
	default:
		return nil, fmt.Errorf("unknown gpio driver %q (want mock, rpio or mcp23017)", kind)
	}
}

func (m *MockDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	return nil
}

func (m *MockDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)
	return nil
}

func (m *MockDriver) ReadPin(pin int) (Level, error) {
	debug.GPIO("ReadPin", pin, nil)
	return Low, nil
}

func (m *MockDriver) WritePWM(pin int, duty uint8) error {
	debug.GPIO("WritePWM", pin, duty)
	return nil
}

func (m *MockDriver) Close() error {
	debug.Trace("GPIO Close (mock)")
	return nil
}
