// Package emu assembles bus, CPU, and cartridge into a single runnable
// machine, and drives it one frame (one VBlank) at a time.
package emu

import (
	"io"
	"os"

	"github.com/loganfrederick/gbcore/internal/bus"
	"github.com/loganfrederick/gbcore/internal/cart"
	"github.com/loganfrederick/gbcore/internal/cpu"
	"github.com/loganfrederick/gbcore/internal/joypad"
)

// cyclesPerFrame is the DMG T-cycle length of one 154-line frame.
const cyclesPerFrame = 154 * 456

// Machine wires a Bus, CPU, and cartridge and exposes frame-at-a-time
// stepping, a presentation-ready RGBA framebuffer, and battery RAM.
type Machine struct {
	cfg Config

	bus *bus.Bus
	cpu *cpu.CPU

	romPath string
	rgba    []byte // 160x144*4
	ready   bool
}

// New creates an unloaded machine; call LoadCartridge or LoadROMFromFile
// before stepping it.
func New(cfg Config) *Machine {
	return &Machine{cfg: cfg, rgba: make([]byte, 160*144*4)}
}

// LoadCartridge wires a fresh Bus/CPU around rom's bytes. If boot is a
// valid 256-byte DMG boot ROM, the machine starts at 0x0000 and runs it;
// otherwise it starts post-boot via NoBootromInit.
func (m *Machine) LoadCartridge(rom []byte, boot []byte) error {
	c := cart.NewCartridge(rom)
	b := bus.NewWithCartridge(c)
	m.bus = b
	m.cpu = cpu.New(b)
	if len(boot) >= 0x100 {
		b.SetBootROM(boot)
	} else {
		m.NoBootromInit()
	}
	return nil
}

// NoBootromInit sets CPU registers and the usual IO register defaults a
// real DMG boot ROM leaves behind, skipping the boot sequence itself.
func (m *Machine) NoBootromInit() {
	if m.cpu == nil {
		return
	}
	m.cpu.ResetNoBoot()
	m.cpu.SetPC(0x0100)
	b := m.bus
	b.Write(0xFF00, 0xCF)
	b.Write(0xFF05, 0x00)
	b.Write(0xFF06, 0x00)
	b.Write(0xFF07, 0x00)
	b.Write(0xFF40, 0x91)
	b.Write(0xFF42, 0x00)
	b.Write(0xFF43, 0x00)
	b.Write(0xFF45, 0x00)
	b.Write(0xFF47, 0xFC)
	b.Write(0xFF48, 0xFF)
	b.Write(0xFF49, 0xFF)
	b.Write(0xFF4A, 0x00)
	b.Write(0xFF4B, 0x00)
	b.Write(0xFFFF, 0x00)
}

// LoadROMFromFile reads path and loads it as the running cartridge,
// recording the path for companion .sav lookup.
func (m *Machine) LoadROMFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := m.LoadCartridge(data, nil); err != nil {
		return err
	}
	m.romPath = path
	return nil
}

// ROMPath returns the path LoadROMFromFile was given, or "".
func (m *Machine) ROMPath() string { return m.romPath }

// SetBootROM installs a DMG boot ROM image to run from reset.
func (m *Machine) SetBootROM(data []byte) {
	if m.bus != nil {
		m.bus.SetBootROM(data)
	}
}

// SetSerialWriter routes the cartridge's serial port output to w (used
// by test ROMs that report pass/fail over serial).
func (m *Machine) SetSerialWriter(w io.Writer) {
	if m.bus != nil {
		m.bus.SetSerialWriter(w)
	}
}

// SetButtons updates the joypad's pressed/released state for the next step.
func (m *Machine) SetButtons(b joypad.Buttons) {
	if m.bus != nil {
		m.bus.SetButtons(b)
	}
}

// Tick runs the CPU (and, through it, the bus-owned timer/PPU/DMA) until
// at least cycles T-cycles have elapsed.
func (m *Machine) Tick(cycles int) {
	if m.cpu == nil {
		return
	}
	ran := 0
	for ran < cycles {
		ran += m.cpu.Step()
	}
}

// StepFrame runs one frame's worth of cycles and refreshes the RGBA
// framebuffer from the PPU's output.
func (m *Machine) StepFrame() {
	m.Tick(cyclesPerFrame)
	m.render()
	m.ready = true
}

// StepFrameNoRender runs one frame's worth of cycles without converting
// the PPU's framebuffer to RGBA, for headless test-ROM runners that
// only care about serial output.
func (m *Machine) StepFrameNoRender() {
	m.Tick(cyclesPerFrame)
}

// FrameReady reports whether at least one StepFrame has produced a
// framebuffer, and clears the flag.
func (m *Machine) FrameReady() bool {
	r := m.ready
	m.ready = false
	return r
}

// dmgShades maps the PPU's 2-bit color indices to the classic DMG
// green-gray palette, lightest to darkest.
var dmgShades = [4][3]byte{
	{0xE0, 0xF8, 0xD0},
	{0x88, 0xC0, 0x70},
	{0x34, 0x68, 0x56},
	{0x08, 0x18, 0x20},
}

func (m *Machine) render() {
	if m.bus == nil {
		return
	}
	frame := m.bus.PPU().Frame()
	for y := 0; y < 144; y++ {
		for x := 0; x < 160; x++ {
			shade := dmgShades[frame[y][x]&0x03]
			i := (y*160 + x) * 4
			m.rgba[i+0] = shade[0]
			m.rgba[i+1] = shade[1]
			m.rgba[i+2] = shade[2]
			m.rgba[i+3] = 0xFF
		}
	}
}

// Framebuffer returns the last rendered frame as packed RGBA (160x144*4).
func (m *Machine) Framebuffer() []byte { return m.rgba }

// LoadBattery loads persisted external-RAM bytes into the cartridge, if
// it's battery-backed. Reports whether a load happened.
func (m *Machine) LoadBattery(data []byte) bool {
	if m.bus == nil {
		return false
	}
	if bb, ok := m.bus.Cart().(cart.BatteryBacked); ok {
		bb.LoadRAM(data)
		return true
	}
	return false
}

// SaveBattery returns a copy of the cartridge's external RAM, if it's
// battery-backed.
func (m *Machine) SaveBattery() ([]byte, bool) {
	if m.bus == nil {
		return nil, false
	}
	if bb, ok := m.bus.Cart().(cart.BatteryBacked); ok {
		return bb.SaveRAM(), true
	}
	return nil, false
}
