// Package control wraps PID computation for the motor loop.
package control

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/felixge/pidctrl"
)

// DefaultSampleTime is the minimum interval between PID computations.
// Call Compute as often as you like; it only does work this often.
const DefaultSampleTime = 50 * time.Millisecond

// PID computes a bounded correction from a setpoint and a measured
// input. Implementations gate computation on a minimum sample interval:
// Compute returns the previous output and false when called again too
// soon. Tunings can be swapped at any time, which is how the motor
// loop applies conservative gains near the target.
type PID interface {
	SetTunings(kp, ki, kd float64)
	SetSampleTime(d time.Duration)
	SetOutputLimits(min, max float64)
	Compute(setpoint, input float64) (output float64, computed bool)
}

// Engine is the pidctrl-backed implementation of PID.
type Engine struct {
	pid        *pidctrl.PIDController
	reverse    bool
	sampleTime time.Duration
	clk        clock.Clock
	lastTime   time.Time
	lastOutput float64
	primed     bool
}

// NewEngine creates a PID engine with the given gains. A reverse
// engine negates the gains handed to the computation core, for plants
// where a positive correction must produce a negative drive (the NXT
// motor wiring runs the loop reversed).
func NewEngine(kp, ki, kd float64, reverse bool) *Engine {
	return NewEngineWithClock(kp, ki, kd, reverse, clock.New())
}

// NewEngineWithClock is NewEngine with an injected clock, for tests.
func NewEngineWithClock(kp, ki, kd float64, reverse bool, clk clock.Clock) *Engine {
	e := &Engine{
		pid:        pidctrl.NewPIDController(0, 0, 0),
		reverse:    reverse,
		sampleTime: DefaultSampleTime,
		clk:        clk,
	}
	e.SetTunings(kp, ki, kd)
	return e
}

// SetTunings replaces the working gains.
func (e *Engine) SetTunings(kp, ki, kd float64) {
	if e.reverse {
		kp, ki, kd = -kp, -ki, -kd
	}
	e.pid.SetPID(kp, ki, kd)
}

// SetSampleTime changes the minimum interval between computations.
func (e *Engine) SetSampleTime(d time.Duration) {
	if d > 0 {
		e.sampleTime = d
	}
}

// SetOutputLimits clamps the computed output.
func (e *Engine) SetOutputLimits(min, max float64) {
	e.pid.SetOutputLimits(min, max)
}

// Compute runs one PID step if at least the sample interval has passed
// since the previous step. Otherwise it is cheap: the previous output
// comes back with computed=false.
func (e *Engine) Compute(setpoint, input float64) (float64, bool) {
	now := e.clk.Now()

	dt := e.sampleTime
	if e.primed {
		dt = now.Sub(e.lastTime)
		if dt < e.sampleTime {
			return e.lastOutput, false
		}
	}

	e.pid.Set(setpoint)
	e.lastOutput = e.pid.UpdateDuration(input, dt)
	e.lastTime = now
	e.primed = true
	return e.lastOutput, true
}
