// Package joypad implements the DMG P1 (0xFF00) button matrix: two
// active-low 4-bit button groups selected by the guest, latched into
// a single nibble and edge-triggered onto the Joypad interrupt line.
package joypad

import "github.com/loganfrederick/gbcore/internal/interrupt"

// Buttons is the logical (active-high) state of all eight keys.
type Buttons struct {
	A, B, Select, Start   bool
	Right, Left, Up, Down bool
}

// Joypad tracks the current button state and the guest's group
// selection, and reconstructs the P1 register on demand.
type Joypad struct {
	buttons Buttons

	selectButtons bool // bit 5 cleared: A/B/Select/Start selected
	selectDpad    bool // bit 4 cleared: directions selected

	lastNibble byte // low nibble of the last computed P1, for edge detection
}

// New returns a Joypad with no keys pressed and no group selected,
// matching P1 == 0xFF at power-on.
func New() *Joypad { return &Joypad{lastNibble: 0x0F} }

// P1 returns the current 0xFF00 register value.
func (j *Joypad) P1() byte {
	nibble := j.nibble()
	v := byte(0xC0) | nibble
	if !j.selectButtons {
		v |= 0x20
	}
	if !j.selectDpad {
		v |= 0x10
	}
	return v
}

// WriteP1 handles a guest write to 0xFF00: only the two select bits
// are writable, and changing them can re-latch the low nibble.
func (j *Joypad) WriteP1(v byte) {
	j.selectButtons = v&0x20 == 0
	j.selectDpad = v&0x10 == 0
}

// nibble computes the active-low low nibble for whichever group(s)
// are currently selected, AND'd together (a line reads 0 if a pressed
// key in any selected group pulls it low).
func (j *Joypad) nibble() byte {
	n := byte(0x0F)
	if j.selectButtons {
		n &= j.groupNibble(j.buttons.A, j.buttons.B, j.buttons.Select, j.buttons.Start)
	}
	if j.selectDpad {
		n &= j.groupNibble(j.buttons.Right, j.buttons.Left, j.buttons.Up, j.buttons.Down)
	}
	return n
}

func (j *Joypad) groupNibble(bit0, bit1, bit2, bit3 bool) byte {
	n := byte(0x0F)
	if bit0 {
		n &^= 0x01
	}
	if bit1 {
		n &^= 0x02
	}
	if bit2 {
		n &^= 0x04
	}
	if bit3 {
		n &^= 0x08
	}
	return n
}

// SetButtons replaces the logical button state and requests the
// Joypad interrupt if any newly-pressed key drives a selected line
// from high to low (a 1->0 edge on P1's low nibble).
func (j *Joypad) SetButtons(b Buttons, ic *interrupt.Controller) {
	j.buttons = b
	cur := j.nibble()
	if j.lastNibble&^cur != 0 && ic != nil {
		ic.Request(interrupt.Joypad)
	}
	j.lastNibble = cur
}
