package gpio

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/cjeanneret/BrickGo/internal/debug"
)

// MCP23017 registers (IOCON.BANK = 0, the power-on default).
const (
	regIODIRA = 0x00
	regIODIRB = 0x01
	regGPIOA  = 0x12
	regGPIOB  = 0x13
	regOLATA  = 0x14
	regOLATB  = 0x15
)

// DefaultMCP23017Addr is the expander address with A0-A2 tied low.
const DefaultMCP23017Addr uint16 = 0x20

// MCP23017Driver routes the three pin primitives (setup, write, read)
// through an MCP23017 I2C port expander. Pins 0-7 map to bank A,
// pins 8-15 to bank B. The expander cannot generate PWM, so WritePWM
// is delegated to a base driver (usually the Pi's own pins); with no
// base driver, WritePWM fails.
type MCP23017Driver struct {
	bus  i2c.Bus
	addr uint16
	base Driver

	// Shadow copies of the direction and output-latch registers so
	// per-pin updates are a single write on the wire.
	iodir [2]uint8
	olat  [2]uint8
}

// NewMCP23017Driver opens the named I2C bus ("" for the first one) and
// talks to an MCP23017 at addr. base handles PWM, and may be nil.
func NewMCP23017Driver(busName string, addr uint16, base Driver) (*MCP23017Driver, error) {
	debug.Info("Initializing MCP23017 GPIO driver (bus=%q addr=0x%02x)", busName, addr)

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open I2C bus %q: %w", busName, err)
	}
	if addr == 0 {
		addr = DefaultMCP23017Addr
	}
	return newMCP23017(bus, addr, base)
}

// newMCP23017 wires the driver onto an already-open bus and resets the
// expander to a known state (everything input).
func newMCP23017(bus i2c.Bus, addr uint16, base Driver) (*MCP23017Driver, error) {
	d := &MCP23017Driver{
		bus:   bus,
		addr:  addr,
		base:  base,
		iodir: [2]uint8{0xFF, 0xFF}, // power-on default: all inputs
	}
	if err := d.writeReg(regIODIRA, d.iodir[0]); err != nil {
		return nil, fmt.Errorf("reset MCP23017 bank A: %w", err)
	}
	if err := d.writeReg(regIODIRB, d.iodir[1]); err != nil {
		return nil, fmt.Errorf("reset MCP23017 bank B: %w", err)
	}
	return d, nil
}

func (d *MCP23017Driver) writeReg(reg, val uint8) error {
	return d.bus.Tx(d.addr, []byte{reg, val}, nil)
}

func (d *MCP23017Driver) readReg(reg uint8) (uint8, error) {
	var buf [1]byte
	if err := d.bus.Tx(d.addr, []byte{reg}, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// split maps a pin number to (bank, bit mask).
func split(pin int) (int, uint8, error) {
	if pin < 0 || pin > 15 {
		return 0, 0, fmt.Errorf("MCP23017 pin %d out of range 0-15", pin)
	}
	return pin / 8, 1 << (uint(pin) % 8), nil
}

func (d *MCP23017Driver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)

	bank, mask, err := split(pin)
	if err != nil {
		return err
	}
	switch mode {
	case Input:
		d.iodir[bank] |= mask
	case Output:
		d.iodir[bank] &^= mask
	default:
		return fmt.Errorf("unknown pin mode: %d", mode)
	}
	return d.writeReg(regIODIRA+uint8(bank), d.iodir[bank])
}

func (d *MCP23017Driver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)

	bank, mask, err := split(pin)
	if err != nil {
		return err
	}
	if level == High {
		d.olat[bank] |= mask
	} else {
		d.olat[bank] &^= mask
	}
	return d.writeReg(regOLATA+uint8(bank), d.olat[bank])
}

func (d *MCP23017Driver) ReadPin(pin int) (Level, error) {
	debug.GPIO("ReadPin", pin, nil)

	bank, mask, err := split(pin)
	if err != nil {
		return Low, err
	}
	val, err := d.readReg(regGPIOA + uint8(bank))
	if err != nil {
		return Low, err
	}
	return val&mask != 0, nil
}

func (d *MCP23017Driver) WritePWM(pin int, duty uint8) error {
	if d.base == nil {
		return fmt.Errorf("MCP23017 cannot generate PWM and no base driver is set")
	}
	return d.base.WritePWM(pin, duty)
}

func (d *MCP23017Driver) Close() error {
	debug.Trace("GPIO Close (MCP23017)")

	// Back to all-inputs (safe state) before letting go of the bus.
	_ = d.writeReg(regIODIRA, 0xFF)
	_ = d.writeReg(regIODIRB, 0xFF)

	var firstErr error
	if c, ok := d.bus.(i2c.BusCloser); ok {
		firstErr = c.Close()
	}
	if d.base != nil {
		if err := d.base.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
