package ppu

// rawVRAM lets the compositor read VRAM directly, bypassing the
// mode-3 CPU lockout that CPURead enforces: by the time renderLine
// runs (HBlank), the line's pixel data has already logically landed.
type rawVRAM struct{ p *PPU }

func (r rawVRAM) Read(addr uint16) byte {
	if addr < 0x8000 || addr > 0x9FFF {
		return 0xFF
	}
	return r.p.vram[addr-0x8000]
}

// renderLine assembles scanline ly's final, palette-mapped pixels from
// the registers captured at the start of its pixel-transfer phase, and
// commits them to the framebuffer.
func (p *PPU) renderLine(ly byte) {
	if ly >= 144 {
		return
	}
	lr := p.lineRegs[ly]
	mem := rawVRAM{p}

	var bgci [160]byte
	if lr.LCDC&0x01 != 0 {
		mapBase := uint16(0x9800)
		if lr.LCDC&0x08 != 0 {
			mapBase = 0x9C00
		}
		tileData8000 := lr.LCDC&0x10 != 0
		bgci = RenderBGScanlineUsingFetcher(mem, mapBase, tileData8000, lr.SCX, lr.SCY, ly)

		windowVisible := lr.LCDC&0x20 != 0 && lr.WY <= ly && lr.WX <= 166
		if windowVisible {
			winMapBase := uint16(0x9800)
			if lr.LCDC&0x40 != 0 {
				winMapBase = 0x9C00
			}
			wxStart := int(lr.WX) - 7
			winci := RenderWindowScanlineUsingFetcher(mem, winMapBase, tileData8000, wxStart, lr.WinLine)
			start := wxStart
			if start < 0 {
				start = 0
			}
			for x := start; x < 160; x++ {
				bgci[x] = winci[x]
			}
		}
	}

	var row [160]byte
	for x := 0; x < 160; x++ {
		row[x] = shade(lr.BGP, bgci[x])
	}

	if lr.LCDC&0x02 != 0 {
		tall := lr.LCDC&0x04 != 0
		sprites := ScanOAM(p.oam[:], ly, tall)
		spci := ComposeSpriteLine(mem, sprites, ly, bgci, tall)
		pal := spritePalettes(mem, sprites, ly, bgci, tall)
		for x := 0; x < 160; x++ {
			if spci[x] == 0 {
				continue
			}
			palette := lr.OBP0
			if pal[x] {
				palette = lr.OBP1
			}
			row[x] = shade(palette, spci[x])
		}
	}

	p.frame[ly] = row
}

// spritePalettes mirrors ComposeSpriteLine's draw order to record, per
// pixel, whether the sprite that ends up on top uses OBP1 rather than
// OBP0. Each sprite is composed on its own, so only pixels it actually
// draws (opaque and not hidden behind the background) claim a palette.
func spritePalettes(mem VRAMReader, sprites []Sprite, ly byte, bgci [160]byte, tall bool) [160]bool {
	var usesOBP1 [160]bool
	for _, s := range sprites {
		ci := ComposeSpriteLine(mem, []Sprite{s}, ly, bgci, tall)
		for x := 0; x < 160; x++ {
			if ci[x] != 0 {
				usesOBP1[x] = s.Attr&0x10 != 0
			}
		}
	}
	return usesOBP1
}

// shade maps a 2-bit color index through a BGP/OBPn-style palette
// register to a 2-bit DMG shade (0 lightest, 3 darkest).
func shade(palette, ci byte) byte {
	return (palette >> (ci * 2)) & 0x03
}
