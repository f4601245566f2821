package joypad

import (
	"testing"

	"github.com/loganfrederick/gbcore/internal/interrupt"
)

func TestP1DefaultsToAllReleased(t *testing.T) {
	j := New()
	if got := j.P1(); got&0x0F != 0x0F {
		t.Fatalf("P1 low nibble got %#02x want 0x0F", got&0x0F)
	}
}

func TestWriteP1SelectsDpadGroup(t *testing.T) {
	j := New()
	j.WriteP1(0x20) // bit5=1 (buttons unselected), bit4=0 (dpad selected)
	var ic interrupt.Controller
	j.SetButtons(Buttons{Right: true, Down: true}, &ic)
	if got := j.P1() & 0x0F; got != 0x06 { // Right(bit0) and Down(bit3) cleared
		t.Fatalf("P1 dpad nibble got %#02x want 0x06", got)
	}
}

func TestWriteP1SelectsButtonGroup(t *testing.T) {
	j := New()
	j.WriteP1(0x10) // bit5=0 (buttons selected), bit4=1 (dpad unselected)
	var ic interrupt.Controller
	j.SetButtons(Buttons{A: true, Start: true}, &ic)
	if got := j.P1() & 0x0F; got != 0x06 { // A(bit0) and Start(bit3) cleared
		t.Fatalf("P1 button nibble got %#02x want 0x06", got)
	}
}

func TestSetButtonsRequestsInterruptOnFallingEdge(t *testing.T) {
	j := New()
	j.WriteP1(0x10) // select buttons
	var ic interrupt.Controller
	j.SetButtons(Buttons{}, &ic)
	if ic.IF&interrupt.Joypad.Mask() != 0 {
		t.Fatalf("no interrupt expected before any press")
	}
	j.SetButtons(Buttons{A: true}, &ic)
	if ic.IF&interrupt.Joypad.Mask() == 0 {
		t.Fatalf("expected Joypad interrupt on press edge")
	}
}

func TestSetButtonsNoInterruptOnRelease(t *testing.T) {
	j := New()
	j.WriteP1(0x10)
	var ic interrupt.Controller
	j.SetButtons(Buttons{A: true}, &ic)
	ic.Acknowledge(interrupt.Joypad)
	j.SetButtons(Buttons{}, &ic) // release: 0->1, no new edge
	if ic.IF&interrupt.Joypad.Mask() != 0 {
		t.Fatalf("release should not request a new interrupt")
	}
}
