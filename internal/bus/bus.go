// Package bus implements the DMG 16-bit address space: it routes CPU
// reads/writes to the cartridge, VRAM/OAM (via the PPU), work RAM, high
// RAM, and the IO register block, and owns the components that don't
// deserve an address-space slot of their own (the OAM DMA state machine,
// the boot ROM overlay, and the serial port).
package bus

import (
	"io"
	"os"

	"github.com/loganfrederick/gbcore/internal/cart"
	"github.com/loganfrederick/gbcore/internal/interrupt"
	"github.com/loganfrederick/gbcore/internal/joypad"
	"github.com/loganfrederick/gbcore/internal/ppu"
	"github.com/loganfrederick/gbcore/internal/timer"
)

// dmaCycles is how long an OAM DMA transfer occupies the source bus:
// 160 bytes at one M-cycle (4 T-cycles) each.
const dmaCycles = 640

// Bus wires CPU-visible address space to cartridge, PPU, WRAM, HRAM, and IO.
type Bus struct {
	cart cart.Cartridge
	ppu  *ppu.PPU

	timer  *timer.Timer
	joypad *joypad.Joypad
	ic     interrupt.Controller

	// Work RAM (WRAM) 8 KiB at 0xC000–0xDFFF; Echo 0xE000–0xFDFF mirrors C000–DDFF.
	wram [0x2000]byte

	// High RAM (HRAM) 0xFF80–0xFFFE (127 bytes)
	hram [0x7F]byte

	// Serial
	sb byte      // FF01 data
	sc byte      // FF02 control (bit7 start, bit0 clock source; we do immediate external)
	sw io.Writer // sink for serial output (optional)

	// OAM DMA: a write to FF46 starts a transfer that occupies the bus
	// for dmaCycles T-cycles before the 160 bytes land in OAM at once.
	dma          byte
	dmaActive    bool
	dmaSrc       uint16
	dmaRemaining int

	// Boot ROM support
	bootROM     []byte
	bootEnabled bool

	debugTimer bool
}

// New constructs a Bus with the cartridge type rom's header selects
// (see cart.NewCartridge).
func New(rom []byte) *Bus {
	return NewWithCartridge(cart.NewCartridge(rom))
}

// NewWithCartridge wires a provided cartridge implementation.
func NewWithCartridge(c cart.Cartridge) *Bus {
	b := &Bus{
		cart:   c,
		timer:  timer.New(),
		joypad: joypad.New(),
	}
	b.ppu = ppu.New(func(src interrupt.Source) { b.ic.Request(src) })
	if os.Getenv("GB_DEBUG_TIMER") != "" {
		b.debugTimer = true
	}
	return b
}

// PPU returns the internal PPU for read-only rendering helpers.
func (b *Bus) PPU() *ppu.PPU { return b.ppu }

// Cart returns the underlying cartridge for optional battery operations.
func (b *Bus) Cart() cart.Cartridge { return b.cart }

// Interrupts returns the interrupt controller the CPU dispatches against.
func (b *Bus) Interrupts() *interrupt.Controller { return &b.ic }

func (b *Bus) Read(addr uint16) byte {
	switch {
	// Cartridge ROM (banked by the cartridge itself)
	case addr < 0x8000:
		if b.bootEnabled && addr < 0x0100 && len(b.bootROM) >= 0x100 {
			return b.bootROM[addr]
		}
		return b.cart.Read(addr)
	// VRAM (via PPU)
	case addr >= 0x8000 && addr <= 0x9FFF:
		return b.ppu.CPURead(addr)
	case addr >= 0xA000 && addr <= 0xBFFF:
		return b.cart.Read(addr)

	// Work RAM 0xC000–0xDFFF (8 KiB)
	case addr >= 0xC000 && addr <= 0xDFFF:
		return b.wram[addr-0xC000]

	// Echo RAM 0xE000–0xFDFF mirrors 0xC000–0xDDFF
	case addr >= 0xE000 && addr <= 0xFDFF:
		mirror := addr - 0x2000
		return b.wram[mirror-0xC000]

	// OAM via PPU (reads return 0xFF while a DMA transfer is in flight)
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if b.dmaActive {
			return 0xFF
		}
		return b.ppu.CPURead(addr)

	// Unusable region 0xFEA0–0xFEFF reads back 0x00 on DMG
	case addr >= 0xFEA0 && addr <= 0xFEFF:
		return 0x00

	// High RAM 0xFF80–0xFFFE
	case addr >= 0xFF80 && addr <= 0xFFFE:
		return b.hram[addr-0xFF80]

	// IO: JOYP at 0xFF00
	case addr == 0xFF00:
		return b.joypad.P1()
	// IO: Timers
	case addr == 0xFF04:
		return b.timer.DIV()
	case addr == 0xFF05:
		return b.timer.TIMA()
	case addr == 0xFF06:
		return b.timer.TMA()
	case addr == 0xFF07:
		return b.timer.TAC()
	// Serial
	case addr == 0xFF01:
		return b.sb
	case addr == 0xFF02:
		return 0x7E | (b.sc & 0x81)
	// LCDC/STAT/LY/LYC and scroll/window via PPU
	case addr == 0xFF40, addr == 0xFF41, addr == 0xFF42, addr == 0xFF43,
		addr == 0xFF44, addr == 0xFF45,
		addr == 0xFF47, addr == 0xFF48, addr == 0xFF49,
		addr == 0xFF4A, addr == 0xFF4B:
		return b.ppu.CPURead(addr)
	case addr == 0xFF46:
		return b.dma
	// Boot ROM disable register reads back 0xFF
	case addr == 0xFF50:
		return 0xFF
	// IF at 0xFF0F
	case addr == 0xFF0F:
		return 0xE0 | (b.ic.IF & 0x1F)
	// IE at 0xFFFF
	case addr == 0xFFFF:
		return b.ic.IE
	}
	return 0xFF
}

func (b *Bus) Write(addr uint16, value byte) {
	switch {
	// Cartridge control and external RAM writes
	case addr < 0x8000:
		b.cart.Write(addr, value)
		return
	// VRAM via PPU
	case addr >= 0x8000 && addr <= 0x9FFF:
		b.ppu.CPUWrite(addr, value)
		return
	case addr >= 0xA000 && addr <= 0xBFFF:
		b.cart.Write(addr, value)
		return

	// Work RAM
	case addr >= 0xC000 && addr <= 0xDFFF:
		b.wram[addr-0xC000] = value
		return

	// Echo RAM mirrors C000–DDFF
	case addr >= 0xE000 && addr <= 0xFDFF:
		mirror := addr - 0x2000
		if mirror >= 0xC000 && mirror <= 0xDDFF {
			b.wram[mirror-0xC000] = value
		}
		return

	// OAM via PPU (writes ignored while a DMA transfer is in flight)
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if b.dmaActive {
			return
		}
		b.ppu.CPUWrite(addr, value)
		return

	case addr >= 0xFEA0 && addr <= 0xFEFF:
		return

	// High RAM
	case addr >= 0xFF80 && addr <= 0xFFFE:
		b.hram[addr-0xFF80] = value
		return

	// IO: JOYP at 0xFF00
	case addr == 0xFF00:
		b.joypad.WriteP1(value)
		return
	// IO: Timers
	case addr == 0xFF04:
		b.timer.ResetDIV()
		return
	case addr == 0xFF05:
		b.timer.WriteTIMA(value)
		return
	case addr == 0xFF06:
		b.timer.WriteTMA(value)
		return
	case addr == 0xFF07:
		b.timer.WriteTAC(value)
		return
	// Serial
	case addr == 0xFF01:
		b.sb = value
		return
	case addr == 0xFF02:
		b.sc = value & 0x81
		if (b.sc & 0x80) != 0 {
			if b.sw != nil {
				_, _ = b.sw.Write([]byte{b.sb})
			}
			b.ic.Request(interrupt.Serial)
			b.sc &^= 0x80
		}
		return
	// LCDC/STAT/LY/LYC and scroll/window via PPU
	case addr == 0xFF40, addr == 0xFF41, addr == 0xFF42, addr == 0xFF43,
		addr == 0xFF44, addr == 0xFF45,
		addr == 0xFF47, addr == 0xFF48, addr == 0xFF49,
		addr == 0xFF4A, addr == 0xFF4B:
		b.ppu.CPUWrite(addr, value)
		return
	case addr == 0xFF46:
		// OAM DMA: source scan is deferred dmaCycles T-cycles, then the
		// 160 bytes land in OAM as a single bulk copy (spec model, in
		// place of a real per-byte-per-cycle transfer).
		b.dma = value
		b.dmaActive = true
		b.dmaSrc = uint16(value) << 8
		b.dmaRemaining = dmaCycles
		return
	case addr == 0xFF50:
		if value != 0x00 {
			b.bootEnabled = false
		}
		return
	// IF at 0xFF0F
	case addr == 0xFF0F:
		b.ic.IF = value & 0x1F
		return
	// IE at 0xFFFF
	case addr == 0xFFFF:
		b.ic.IE = value
		return
	}
}

// SetButtons updates the joypad's logical button state, requesting the
// Joypad interrupt on a selected-line 1->0 edge.
func (b *Bus) SetButtons(buttons joypad.Buttons) {
	b.joypad.SetButtons(buttons, &b.ic)
}

// SetSerialWriter sets a sink that receives bytes written via the serial port.
func (b *Bus) SetSerialWriter(w io.Writer) { b.sw = w }

// SetBootROM loads a DMG boot ROM to be mapped at 0x0000-0x00FF until disabled via 0xFF50 write.
func (b *Bus) SetBootROM(data []byte) {
	b.bootROM = nil
	b.bootEnabled = false
	if len(data) >= 0x100 {
		b.bootROM = make([]byte, 0x100)
		copy(b.bootROM, data[:0x100])
		b.bootEnabled = true
	}
}

// Tick advances every bus-owned device (timer, PPU, OAM DMA) by cycles
// T-cycles.
func (b *Bus) Tick(cycles int) {
	if cycles <= 0 {
		return
	}
	b.timer.Advance(cycles, &b.ic)
	b.ppu.Tick(cycles)
	b.stepDMA(cycles)
}

func (b *Bus) stepDMA(cycles int) {
	if !b.dmaActive {
		return
	}
	b.dmaRemaining -= cycles
	if b.dmaRemaining > 0 {
		return
	}
	// The 640-cycle window outlasts a single scanline, so the PPU can be
	// in mode 2/3 when the deadline lands; write straight into OAM via
	// WriteOAMRaw rather than CPUWrite, which would silently drop bytes
	// under the same mode lock the transfer itself is exempt from.
	for i := 0; i < 0xA0; i++ {
		v := b.readDMASource(b.dmaSrc + uint16(i))
		b.ppu.WriteOAMRaw(i, v)
	}
	b.dmaActive = false
}

// readDMASource reads a DMA source byte directly, bypassing the OAM
// lockout Read() enforces while a transfer is in flight (the transfer
// itself is the one reader allowed through).
func (b *Bus) readDMASource(addr uint16) byte {
	switch {
	case addr < 0x8000:
		return b.cart.Read(addr)
	case addr >= 0x8000 && addr <= 0x9FFF:
		return b.ppu.CPURead(addr)
	case addr >= 0xA000 && addr <= 0xBFFF:
		return b.cart.Read(addr)
	case addr >= 0xC000 && addr <= 0xDFFF:
		return b.wram[addr-0xC000]
	case addr >= 0xE000 && addr <= 0xFDFF:
		return b.wram[addr-0x2000-0xC000]
	default:
		return 0xFF
	}
}
