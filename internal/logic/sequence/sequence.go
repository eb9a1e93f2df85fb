// Package sequence runs scripted motor moves, typically loaded from
// the configuration file.
package sequence

import (
	"context"
	"fmt"
	"time"

	"github.com/cjeanneret/BrickGo/internal/debug"
)

// Mover is the goal-seeking surface of a motor the runner needs.
// Satisfied by *motion.Motor.
type Mover interface {
	GoToPositionWait(pos int64) error
	GoToPositionWaitTimeout(pos int64, timeout time.Duration) (bool, error)
	GoToAngleWait(deg int64) error
	GoToAngleWaitTimeout(deg int64, timeout time.Duration) (bool, error)
	Stop() error
}

// Step is one scripted move. Exactly one of Angle or Position must be
// set. A zero Timeout waits without a deadline (a stalled motor blocks
// the sequence forever); Pause is idle time after the move.
type Step struct {
	Angle    *int64
	Position *int64
	Timeout  time.Duration
	Pause    time.Duration
}

// Runner executes steps one after the other on a single motor.
type Runner struct {
	motor Mover
}

// NewRunner creates a sequence runner for the given motor.
func NewRunner(m Mover) *Runner {
	return &Runner{motor: m}
}

// Run executes the steps in order. It stops the motor and returns on
// the first failed step, timed-out move, or context cancellation.
func (r *Runner) Run(ctx context.Context, steps []Step) error {
	debug.Section("Sequence")

	for i, step := range steps {
		select {
		case <-ctx.Done():
			_ = r.motor.Stop()
			return ctx.Err()
		default:
		}

		if err := r.runStep(i, step); err != nil {
			_ = r.motor.Stop()
			return err
		}

		if step.Pause > 0 {
			debug.Verbose("Sequence: pausing %v after step %d", step.Pause, i+1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(step.Pause):
			}
		}
	}

	debug.Live("Sequence complete (%d steps)", len(steps))
	return nil
}

func (r *Runner) runStep(i int, step Step) error {
	switch {
	case step.Angle != nil && step.Position != nil:
		return fmt.Errorf("step %d: angle and position are mutually exclusive", i+1)

	case step.Angle != nil:
		debug.Live("Sequence step %d: angle %d", i+1, *step.Angle)
		if step.Timeout > 0 {
			ok, err := r.motor.GoToAngleWaitTimeout(*step.Angle, step.Timeout)
			if err != nil {
				return fmt.Errorf("step %d: %w", i+1, err)
			}
			if !ok {
				return fmt.Errorf("step %d: timed out seeking angle %d after %v", i+1, *step.Angle, step.Timeout)
			}
			return nil
		}
		if err := r.motor.GoToAngleWait(*step.Angle); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
		return nil

	case step.Position != nil:
		debug.Live("Sequence step %d: position %d", i+1, *step.Position)
		if step.Timeout > 0 {
			ok, err := r.motor.GoToPositionWaitTimeout(*step.Position, step.Timeout)
			if err != nil {
				return fmt.Errorf("step %d: %w", i+1, err)
			}
			if !ok {
				return fmt.Errorf("step %d: timed out seeking position %d after %v", i+1, *step.Position, step.Timeout)
			}
			return nil
		}
		if err := r.motor.GoToPositionWait(*step.Position); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
		return nil

	default:
		return fmt.Errorf("step %d: needs an angle or a position", i+1)
	}
}
