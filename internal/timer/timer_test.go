package timer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/loganfrederick/gbcore/internal/interrupt"
)

func TestDIVWriteFallingEdgeIncrementsTIMA(t *testing.T) {
	tm := New()
	tm.WriteTAC(0x05) // enable, select bit3
	tm.WriteTIMA(0x10)
	for i := 0; i < 8; i++ {
		tm.Advance(1, nil) // internalDiv -> 0x0008, bit3=1
	}
	assert.True(t, tm.input())

	tm.ResetDIV() // falling edge: bit3 1 -> 0
	assert.Equal(t, byte(0x11), tm.TIMA())
}

func TestTACChangeFallingEdgeIncrementsTIMA(t *testing.T) {
	tm := New()
	tm.WriteTAC(0x05) // enable + bit3
	tm.WriteTIMA(0x20)
	for i := 0; i < 8; i++ {
		tm.Advance(1, nil)
	}
	assert.True(t, tm.input())

	tm.WriteTAC(0x06) // enable + bit5, currently 0 -> falling edge
	assert.Equal(t, byte(0x21), tm.TIMA())
}

func TestOverflowReloadTimingAndIF(t *testing.T) {
	tm := New()
	var ic interrupt.Controller
	tm.WriteTAC(0x05)
	tm.WriteTMA(0xAB)
	tm.WriteTIMA(0xFF)
	for i := 0; i < 15; i++ {
		tm.Advance(1, &ic)
	}
	tm.Advance(1, &ic) // falling edge -> overflow
	assert.Equal(t, byte(0x00), tm.TIMA())

	for i := 0; i < 3; i++ {
		tm.Advance(1, &ic)
		assert.Equal(t, byte(0x00), tm.TIMA())
		assert.Zero(t, ic.IF&(interrupt.Timer.Mask()))
	}
	tm.Advance(1, &ic)
	assert.Equal(t, byte(0xAB), tm.TIMA())
	assert.NotZero(t, ic.IF&interrupt.Timer.Mask())
}

func TestTIMAWriteDuringDelayCancelsReload(t *testing.T) {
	tm := New()
	var ic interrupt.Controller
	tm.WriteTAC(0x05)
	tm.WriteTMA(0x55)
	tm.WriteTIMA(0xFF)
	for i := 0; i < 16; i++ {
		tm.Advance(1, &ic)
	}
	assert.Equal(t, byte(0x00), tm.TIMA())

	tm.WriteTIMA(0x77)
	for i := 0; i < 8; i++ {
		tm.Advance(1, &ic)
	}
	assert.Equal(t, byte(0x77), tm.TIMA())
	assert.Zero(t, ic.IF&interrupt.Timer.Mask())
}

func TestTMAWriteDuringDelayAffectsReload(t *testing.T) {
	tm := New()
	var ic interrupt.Controller
	tm.WriteTAC(0x05)
	tm.WriteTMA(0x11)
	tm.WriteTIMA(0xFF)
	for i := 0; i < 16; i++ {
		tm.Advance(1, &ic)
	}
	tm.WriteTMA(0x22)
	for i := 0; i < 4; i++ {
		tm.Advance(1, &ic)
	}
	assert.Equal(t, byte(0x22), tm.TIMA())
}
