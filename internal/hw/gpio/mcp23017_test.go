package gpio

import (
	"testing"

	"periph.io/x/conn/v3/physic"
)

// recordingBus records I2C transactions for verification.
type recordingBus struct {
	writes [][]byte
	// next value returned for register reads
	readVal byte
}

func (b *recordingBus) String() string { return "recording" }

func (b *recordingBus) SetSpeed(f physic.Frequency) error { return nil }

func (b *recordingBus) Tx(addr uint16, w, r []byte) error {
	cp := make([]byte, len(w))
	copy(cp, w)
	b.writes = append(b.writes, cp)
	if len(r) > 0 {
		r[0] = b.readVal
	}
	return nil
}

func (b *recordingBus) lastWrite() []byte {
	if len(b.writes) == 0 {
		return nil
	}
	return b.writes[len(b.writes)-1]
}

func newTestMCP(t *testing.T) (*MCP23017Driver, *recordingBus) {
	t.Helper()
	bus := &recordingBus{}
	d, err := newMCP23017(bus, DefaultMCP23017Addr, nil)
	if err != nil {
		t.Fatalf("newMCP23017: %v", err)
	}
	bus.writes = nil // drop the reset traffic
	return d, bus
}

func TestMCP23017_SetupPinOutput(t *testing.T) {
	d, bus := newTestMCP(t)

	if err := d.SetupPin(3, Output); err != nil {
		t.Fatalf("SetupPin: %v", err)
	}
	// IODIRA with bit 3 cleared, everything else still input
	want := []byte{regIODIRA, 0xFF &^ (1 << 3)}
	got := bus.lastWrite()
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("SetupPin wrote %v, want %v", got, want)
	}
}

func TestMCP23017_SetupPinBankB(t *testing.T) {
	d, bus := newTestMCP(t)

	if err := d.SetupPin(10, Output); err != nil {
		t.Fatalf("SetupPin: %v", err)
	}
	want := []byte{regIODIRB, 0xFF &^ (1 << 2)} // pin 10 = bank B bit 2
	got := bus.lastWrite()
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("SetupPin wrote %v, want %v", got, want)
	}
}

func TestMCP23017_WritePinReadModifyWrite(t *testing.T) {
	d, bus := newTestMCP(t)

	if err := d.WritePin(0, High); err != nil {
		t.Fatalf("WritePin: %v", err)
	}
	if err := d.WritePin(2, High); err != nil {
		t.Fatalf("WritePin: %v", err)
	}
	got := bus.lastWrite()
	// The second write must keep bit 0 set in the shadow latch.
	if got[0] != regOLATA || got[1] != 0b101 {
		t.Errorf("OLATA after two writes = %v, want [0x14 0b101]", got)
	}

	if err := d.WritePin(0, Low); err != nil {
		t.Fatalf("WritePin: %v", err)
	}
	got = bus.lastWrite()
	if got[0] != regOLATA || got[1] != 0b100 {
		t.Errorf("OLATA after clearing pin 0 = %v, want [0x14 0b100]", got)
	}
}

func TestMCP23017_ReadPin(t *testing.T) {
	d, bus := newTestMCP(t)

	bus.readVal = 1 << 5
	level, err := d.ReadPin(5)
	if err != nil {
		t.Fatalf("ReadPin: %v", err)
	}
	if level != High {
		t.Error("pin 5 should read HIGH")
	}

	level, err = d.ReadPin(4)
	if err != nil {
		t.Fatalf("ReadPin: %v", err)
	}
	if level != Low {
		t.Error("pin 4 should read LOW")
	}

	// Reads must target the GPIO register, not the latch.
	if len(bus.writes) == 0 || bus.writes[0][0] != regGPIOA {
		t.Errorf("ReadPin should address GPIOA, wrote %v", bus.writes)
	}
}

func TestMCP23017_PinOutOfRange(t *testing.T) {
	d, _ := newTestMCP(t)

	if err := d.SetupPin(16, Output); err == nil {
		t.Error("pin 16 should be rejected")
	}
	if err := d.WritePin(-1, High); err == nil {
		t.Error("pin -1 should be rejected")
	}
}

func TestMCP23017_PWMWithoutBase(t *testing.T) {
	d, _ := newTestMCP(t)

	if err := d.WritePWM(18, 128); err == nil {
		t.Error("WritePWM without a base driver should fail")
	}
}
