// Package encoder tracks motor position with a quadrature encoder.
package encoder

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/cjeanneret/BrickGo/internal/debug"
	"github.com/cjeanneret/BrickGo/internal/hw/gpio"
)

// Encoder exposes a signed tick count that can be read and overwritten.
// Overwriting the position (e.g. to re-zero) will confuse any control
// loop in progress.
type Encoder interface {
	Position() int64
	SetPosition(pos int64)
}

// Quadrature decodes a two-channel (A/B) quadrature signal by polling
// the pins and walking a state transition table:
//
//	+---------------+----+----+----+----+
//	| prev \ next   | 00 | 01 | 10 | 11 |
//	+---------------+----+----+----+----+
//	|      00       | 0  | -1 | +1 | x  |
//	|      01       | +1 | 0  | x  | -1 |
//	|      10       | -1 | x  | 0  | +1 |
//	|      11       | x  | +1 | -1 | 0  |
//	+---------------+----+----+----+----+
//
// 0 = same state, x = skipped state (both channels flipped between two
// polls; the tick is lost). Poll faster than the signal to avoid this.
type Quadrature struct {
	gpio     gpio.Driver
	pinA     int
	pinB     int
	position int64
	state    int64
	clk      clock.Clock
}

// NewQuadrature sets both channel pins as inputs and latches the
// initial channel state.
func NewQuadrature(g gpio.Driver, pinA, pinB int) (*Quadrature, error) {
	if err := g.SetupPin(pinA, gpio.Input); err != nil {
		return nil, err
	}
	if err := g.SetupPin(pinB, gpio.Input); err != nil {
		return nil, err
	}

	q := &Quadrature{
		gpio: g,
		pinA: pinA,
		pinB: pinB,
		clk:  clock.New(),
	}

	state, err := q.readState()
	if err != nil {
		return nil, err
	}
	q.state = state
	return q, nil
}

func (q *Quadrature) readState() (int64, error) {
	a, err := q.gpio.ReadPin(q.pinA)
	if err != nil {
		return 0, err
	}
	b, err := q.gpio.ReadPin(q.pinB)
	if err != nil {
		return 0, err
	}
	var state int64
	if a == gpio.High {
		state |= 1
	}
	if b == gpio.High {
		state |= 2
	}
	return state, nil
}

// Poll samples the channel pins once and updates the tick count.
func (q *Quadrature) Poll() error {
	next, err := q.readState()
	if err != nil {
		return err
	}
	prev := q.state
	if prev == next {
		return nil
	}
	q.state = next

	switch prev<<2 | next {
	case 0b0001, 0b0111, 0b1000, 0b1110:
		atomic.AddInt64(&q.position, -1)
	case 0b0010, 0b0100, 0b1011, 0b1101:
		atomic.AddInt64(&q.position, 1)
	default:
		// Both channels changed: one tick lost in an unknown direction.
		debug.Trace("quadrature skipped state %02b -> %02b", prev, next)
	}
	return nil
}

// Run polls at the given interval until ctx is cancelled. Meant to be
// started as a goroutine when nothing else drives Poll.
func (q *Quadrature) Run(ctx context.Context, interval time.Duration) error {
	ticker := q.clk.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := q.Poll(); err != nil {
				return err
			}
		}
	}
}

// Position returns the current tick count.
func (q *Quadrature) Position() int64 {
	return atomic.LoadInt64(&q.position)
}

// SetPosition overwrites the tick count. Usually used to re-zero.
func (q *Quadrature) SetPosition(pos int64) {
	atomic.StoreInt64(&q.position, pos)
}
