// Package motion implements closed-loop positioning for a brushed DC
// motor with a quadrature encoder.
package motion

import (
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/cjeanneret/BrickGo/internal/control"
	"github.com/cjeanneret/BrickGo/internal/debug"
	"github.com/cjeanneret/BrickGo/internal/hw/encoder"
	"github.com/cjeanneret/BrickGo/internal/logic/angle"
)

// Mode selects what the periodic Update call does.
type Mode int

const (
	// Disabled: Update is a no-op. Initial mode after construction.
	Disabled Mode = iota
	// PositionControl: Update runs the PID loop toward a tick setpoint.
	PositionControl
	// SpeedControl is declared but not implemented: Update does
	// nothing in this mode. Known limitation, kept for compatibility.
	SpeedControl
)

func (m Mode) String() string {
	switch m {
	case Disabled:
		return "disabled"
	case PositionControl:
		return "position"
	case SpeedControl:
		return "speed"
	}
	return "unknown"
}

// Default PID gains for a LEGO NXT motor, from Ziegler-Nichols tuning
// (Ku = 4.4, Tu about 0.366s).
const (
	DefaultKp = 2.64
	DefaultKi = 14.432
	DefaultKd = 0.1207317073
)

// DefaultEpsilon is the default "close enough" band in ticks.
const DefaultEpsilon = 5

const (
	// outputLimit bounds the PID output symmetrically; it maps
	// directly onto the raw drive range.
	outputLimit = 255
	// settledOutputThreshold: a motor is not settled while the PID is
	// still correcting this hard, even inside the epsilon band.
	// Prevents declaring arrival mid-overshoot.
	settledOutputThreshold = 30
	// Within conservativeBand ticks of the setpoint the gains are
	// divided by conservativeDivisor to damp oscillation around the
	// target.
	conservativeBand    = 5
	conservativeDivisor = 8
)

// Drive is the raw open-loop side of the motor: the H-bridge in
// hw/drive, or a fake in tests.
type Drive interface {
	Enable() error
	Disable() error
	Enabled() bool
	Stop() error
	SetSpeed(s int) error
	Speed() int
}

// Config carries the tunable knobs for a Motor. Zero values fall back
// to the NXT defaults.
type Config struct {
	Kp, Ki, Kd       float64
	Epsilon          int64
	OutputMultiplier int64 // output-shaft rotations per motor rotation (gearing)
	SampleTime       time.Duration
	Clock            clock.Clock // tests inject a mock; nil means wall clock
}

// Motor is the closed-loop orchestrator: it owns the PID mode state,
// drives periodic updates and exposes position/angle goal-seeking.
//
// A Motor has no internal goroutine: exactly one caller is expected to
// drive Update (or one of the blocking wait variants, which busy-poll
// Update and monopolize the calling goroutine until settled or timed
// out). A mutex guards the control state so Snapshot and the setters
// stay safe from other goroutines, but two concurrent goal-seeks on
// the same motor fight over the setpoint; serialize them.
type Motor struct {
	drive Drive
	enc   encoder.Encoder
	pid   control.PID
	clk   clock.Clock

	mu         sync.Mutex
	mode       Mode
	setpoint   float64
	output     float64
	kp, ki, kd float64
	epsilon    int64
	// Ticks per degree of output rotation. NXT encoders give 720
	// ticks per 360 degrees, so this is double the user's gearing
	// multiplier.
	angleMultiplier int64
}

// NewMotor assembles a motor from its collaborators. The PID engine is
// retuned to the configured gains and clamped to the drive range.
func NewMotor(d Drive, e encoder.Encoder, p control.PID, cfg Config) *Motor {
	m := &Motor{
		drive: d,
		enc:   e,
		pid:   p,
		clk:   cfg.Clock,
		mode:  Disabled,
		kp:    cfg.Kp,
		ki:    cfg.Ki,
		kd:    cfg.Kd,
	}
	if m.clk == nil {
		m.clk = clock.New()
	}
	if m.kp == 0 && m.ki == 0 && m.kd == 0 {
		m.kp, m.ki, m.kd = DefaultKp, DefaultKi, DefaultKd
	}
	m.epsilon = cfg.Epsilon
	if m.epsilon == 0 {
		m.epsilon = DefaultEpsilon
	}
	mult := cfg.OutputMultiplier
	if mult == 0 {
		mult = 1
	}
	m.SetAngleOutputMultiplier(mult)

	m.pid.SetOutputLimits(-outputLimit, outputLimit)
	if cfg.SampleTime > 0 {
		m.pid.SetSampleTime(cfg.SampleTime)
	}
	m.applyTunings()
	return m
}

// --- Lifecycle ---

// Begin configures the drive pins as outputs and leaves the motor
// stopped. Must be called before any movement.
func (m *Motor) Begin() error {
	return m.drive.Enable()
}

// Enable is another name for Begin.
func (m *Motor) Enable() error {
	return m.Begin()
}

// Disable reverts the drive pins to inputs; the motor freewheels and
// goal-seek calls have no effect on the hardware until Begin runs
// again.
func (m *Motor) Disable() error {
	return m.drive.Disable()
}

// Enabled reports whether the drive pins are configured as outputs.
func (m *Motor) Enabled() bool {
	return m.drive.Enabled()
}

// Stop turns the motor off. The PID mode is left alone, so a later
// Update resumes correcting toward the current setpoint.
func (m *Motor) Stop() error {
	return m.drive.Stop()
}

// --- Raw control ---

// SetRawSpeed commands an open-loop speed (-255..255), bypassing PID.
func (m *Motor) SetRawSpeed(s int) error {
	return m.drive.SetSpeed(s)
}

// RawSpeed returns the last commanded raw speed.
func (m *Motor) RawSpeed() int {
	return m.drive.Speed()
}

// --- Position ---

// Position returns the encoder's current tick count.
func (m *Motor) Position() int64 {
	return m.enc.Position()
}

// SetPosition overwrites the encoder's tick count. This will confuse
// any control in progress; usually you just want to reset to zero.
func (m *Motor) SetPosition(pos int64) {
	m.enc.SetPosition(pos)
}

// SettledAtPosition reports whether the motor is both within epsilon
// ticks of the given position and no longer correcting hard (PID
// output below the settled threshold). Checking only the distance
// would declare arrival while coasting through the setpoint.
func (m *Motor) SettledAtPosition(pos int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return abs64(m.Position()-pos) < m.epsilon &&
		math.Abs(m.output) < settledOutputThreshold
}

// SetEpsilon changes the "close enough" band in ticks.
func (m *Motor) SetEpsilon(epsilon int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.epsilon = epsilon
}

// Epsilon returns the "close enough" band in ticks.
func (m *Motor) Epsilon() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epsilon
}

// --- Periodic driving ---

// Update runs one control cycle. Call it as often as you can: the PID
// engine only computes at its sample interval, so extra calls are
// cheap. In Disabled (and the unimplemented SpeedControl) mode this
// does nothing.
func (m *Motor) Update() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.mode {
	case PositionControl:
		input := float64(m.enc.Position())
		if math.Abs(input-m.setpoint) < conservativeBand {
			// Close to target: damp the gains to avoid overshoot
			// oscillation. Not persisted as the new base tunings.
			m.pid.SetTunings(
				m.kp/conservativeDivisor,
				m.ki/conservativeDivisor,
				m.kd/conservativeDivisor,
			)
		} else {
			m.applyTunings()
		}
		out, computed := m.pid.Compute(m.setpoint, input)
		m.output = out
		if computed {
			debug.PID(m.setpoint, input, out)
		}
		return m.drive.SetSpeed(int(out))

	case SpeedControl:
		// Not implemented: there is no good way to estimate speed
		// from here while being called at an arbitrary rate.
		return nil

	default: // Disabled
		return nil
	}
}

// DelayUpdate keeps calling Update until the given duration has
// elapsed. Useful if you have nothing else to do; the PID sample
// interval keeps the loop from doing redundant work.
func (m *Motor) DelayUpdate(d time.Duration) error {
	deadline := m.clk.Now().Add(d)
	for m.clk.Now().Before(deadline) {
		if err := m.Update(); err != nil {
			return err
		}
	}
	return nil
}

// --- Goal-seek: position ---

// GoToPosition switches to position control toward the given tick
// target and returns immediately. The caller must drive Update
// (directly, via DelayUpdate, or via the wait variants).
func (m *Motor) GoToPosition(pos int64) {
	debug.Seek("position", pos)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mode = PositionControl
	m.setpoint = float64(pos)
}

// GoToPositionWait seeks the target and busy-polls Update until the
// motor settles there, then stops the drive. The mode stays
// PositionControl. There is no deadline: a stalled motor blocks
// forever. Use GoToPositionWaitTimeout when that matters.
func (m *Motor) GoToPositionWait(pos int64) error {
	m.GoToPosition(pos)
	for !m.SettledAtPosition(pos) {
		if err := m.Update(); err != nil {
			_ = m.Stop()
			return err
		}
	}
	debug.Settled(m.Position())
	return m.Stop()
}

// GoToPositionWaitTimeout is GoToPositionWait with a deadline. It
// reports whether the motor settled at the target; the drive is
// stopped on the way out either way.
func (m *Motor) GoToPositionWaitTimeout(pos int64, timeout time.Duration) (bool, error) {
	m.GoToPosition(pos)
	deadline := m.clk.Now().Add(timeout)
	for !m.SettledAtPosition(pos) && m.clk.Now().Before(deadline) {
		if err := m.Update(); err != nil {
			_ = m.Stop()
			return false, err
		}
	}
	settled := m.SettledAtPosition(pos)
	if settled {
		debug.Settled(m.Position())
	} else {
		debug.Timeout(pos)
	}
	return settled, m.Stop()
}

// --- Goal-seek: angle ---

// GoToAngle seeks the shortest path to an absolute heading (any
// integer; 721 means the same as 1, -60 the same as 300). To move 45
// degrees clockwise from here, use m.GoToAngle(m.Angle() + 45).
func (m *Motor) GoToAngle(deg int64) {
	m.GoToPosition(m.destPositionFromAngle(deg))
}

// GoToAngleWait is GoToPositionWait in heading terms.
func (m *Motor) GoToAngleWait(deg int64) error {
	return m.GoToPositionWait(m.destPositionFromAngle(deg))
}

// GoToAngleWaitTimeout is GoToPositionWaitTimeout in heading terms.
func (m *Motor) GoToAngleWaitTimeout(deg int64, timeout time.Duration) (bool, error) {
	return m.GoToPositionWaitTimeout(m.destPositionFromAngle(deg), timeout)
}

func (m *Motor) destPositionFromAngle(deg int64) int64 {
	m.mu.Lock()
	mult := m.angleMultiplier
	m.mu.Unlock()
	return angle.DestPosition(m.Position(), mult, deg)
}

// Angle returns the current heading, 0-359.
func (m *Motor) Angle() int64 {
	m.mu.Lock()
	mult := m.angleMultiplier
	m.mu.Unlock()
	return angle.Norm(m.Position() / mult)
}

// SetAngle overwrites the encoder position so the current physical
// position reads as the given heading. Any multi-turn offset is
// discarded: this is a re-zeroing operation, not a goal-seek.
func (m *Motor) SetAngle(deg int64) {
	m.mu.Lock()
	mult := m.angleMultiplier
	m.mu.Unlock()
	m.SetPosition(angle.PositionForHeading(deg, mult))
}

// SetAngleOutputMultiplier declares the gearing between the motor and
// the output shaft: with a 5:1 gear train, pass 5. Stored doubled,
// since the NXT encoder gives 720 ticks per 360 degrees of the motor
// shaft. Negative values work for reversing gear trains.
func (m *Motor) SetAngleOutputMultiplier(mult int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.angleMultiplier = mult * 2
}

// --- Tuning ---

// SetTunings replaces the base PID gains and applies them at full
// strength.
func (m *Motor) SetTunings(kp, ki, kd float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kp, m.ki, m.kd = kp, ki, kd
	m.applyTunings()
}

// SetKp updates the proportional gain.
func (m *Motor) SetKp(kp float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kp = kp
	m.applyTunings()
}

// SetKi updates the integral gain.
func (m *Motor) SetKi(ki float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ki = ki
	m.applyTunings()
}

// SetKd updates the derivative gain.
func (m *Motor) SetKd(kd float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kd = kd
	m.applyTunings()
}

// Kp returns the base proportional gain.
func (m *Motor) Kp() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.kp
}

// Ki returns the base integral gain.
func (m *Motor) Ki() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ki
}

// Kd returns the base derivative gain.
func (m *Motor) Kd() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.kd
}

// SetUpdateFrequency changes how often the PID engine actually
// computes, regardless of how often Update is called.
func (m *Motor) SetUpdateFrequency(d time.Duration) {
	m.pid.SetSampleTime(d)
}

// applyTunings pushes the base gains to the PID engine. mu must be
// held (NewMotor calls it before the motor is shared).
func (m *Motor) applyTunings() {
	m.pid.SetTunings(m.kp, m.ki, m.kd)
}

// --- Status ---

// Status is a point-in-time snapshot for diagnostics surfaces.
type Status struct {
	Mode     string  `json:"mode"`
	Position int64   `json:"position"`
	Angle    int64   `json:"angle"`
	Setpoint float64 `json:"setpoint"`
	Output   float64 `json:"output"`
	RawSpeed int     `json:"raw_speed"`
	Enabled  bool    `json:"enabled"`
	Settled  bool    `json:"settled"`
}

// Snapshot captures the current control state. Safe to call from
// another goroutine while a goal-seek runs.
func (m *Motor) Snapshot() Status {
	m.mu.Lock()
	pos := m.Position()
	st := Status{
		Mode:     m.mode.String(),
		Position: pos,
		Angle:    angle.Norm(pos / m.angleMultiplier),
		Setpoint: m.setpoint,
		Output:   m.output,
		Settled: m.mode == PositionControl &&
			abs64(pos-int64(m.setpoint)) < m.epsilon &&
			math.Abs(m.output) < settledOutputThreshold,
	}
	m.mu.Unlock()

	st.RawSpeed = m.RawSpeed()
	st.Enabled = m.Enabled()
	return st
}

// Mode returns the current PID mode.
func (m *Motor) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
