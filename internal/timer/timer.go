// Package timer implements the DMG divider/timer: a free-running
// 16-bit internal divider that clocks DIV, and a TAC-gated TIMA/TMA
// pair that raises the Timer interrupt on overflow.
package timer

import "github.com/loganfrederick/gbcore/internal/interrupt"

// Timer holds the internal 16-bit divider and the guest-visible
// DIV/TIMA/TMA/TAC registers.
type Timer struct {
	internalDiv uint16

	tima byte
	tma  byte
	tac  byte

	// reloadDelay counts down the 4 T-cycles between a TIMA overflow
	// and the TMA reload + interrupt request becoming visible. Writing
	// TIMA while this is nonzero cancels the pending reload.
	reloadDelay int
}

// New returns a Timer with the internal divider and registers zeroed,
// matching DMG power-on state before any boot sequence runs.
func New() *Timer { return &Timer{} }

// DIV returns the high byte of the internal divider (register 0xFF04).
func (t *Timer) DIV() byte { return byte(t.internalDiv >> 8) }

// ResetDIV clears the internal divider to zero. A write of any value
// to 0xFF04 does this; if the previous timer-input bit was high, the
// reset itself is a falling edge and increments TIMA.
func (t *Timer) ResetDIV() {
	old := t.input()
	t.internalDiv = 0
	if old && !t.input() {
		t.incrementTIMA()
	}
}

func (t *Timer) TIMA() byte { return t.tima }

// WriteTIMA handles a guest write to 0xFF05. A write during the
// pending-reload window cancels the reload and takes the written
// value instead.
func (t *Timer) WriteTIMA(v byte) {
	t.tima = v
	t.reloadDelay = 0
}

func (t *Timer) TMA() byte { return t.tma }

func (t *Timer) WriteTMA(v byte) { t.tma = v }

// TAC returns the register value with its unused upper bits fixed to 1.
func (t *Timer) TAC() byte { return 0xF8 | (t.tac & 0x07) }

// WriteTAC handles a guest write to 0xFF07. Changing the selected tap
// or enable bit can itself cause a falling edge on the timer input.
func (t *Timer) WriteTAC(v byte) {
	old := t.input()
	t.tac = v & 0x07
	if old && !t.input() {
		t.incrementTIMA()
	}
}

// tapBit returns the internalDiv bit TAC selects as its clock input.
func (t *Timer) tapBit() uint {
	switch t.tac & 0x03 {
	case 0:
		return 9 // 4096 Hz
	case 1:
		return 3 // 262144 Hz
	case 2:
		return 5 // 65536 Hz
	default:
		return 7 // 16384 Hz
	}
}

// input is the timer's clock input: the selected divider bit, gated
// by the TAC enable bit.
func (t *Timer) input() bool {
	if t.tac&0x04 == 0 {
		return false
	}
	return (t.internalDiv>>t.tapBit())&1 != 0
}

func (t *Timer) incrementTIMA() {
	if t.reloadDelay > 0 {
		return
	}
	if t.tima == 0xFF {
		t.tima = 0x00
		t.reloadDelay = 4
		return
	}
	t.tima++
}

// Advance steps the timer by cycles T-cycles, requesting the Timer
// interrupt through ic whenever TIMA's delayed reload lands.
func (t *Timer) Advance(cycles int, ic *interrupt.Controller) {
	for i := 0; i < cycles; i++ {
		old := t.input()
		t.internalDiv++
		falling := old && !t.input()

		if t.reloadDelay > 0 {
			t.reloadDelay--
			if t.reloadDelay == 0 {
				t.tima = t.tma
				if ic != nil {
					ic.Request(interrupt.Timer)
				}
			}
		}

		if falling {
			t.incrementTIMA()
		}
	}
}
