package ppu

import "sort"

// Sprite is one OAM entry already translated into screen space: X/Y
// are the on-screen coordinates of the sprite's top-left pixel (OAM's
// raw X-8/Y-16 offsets already applied), Attr is the raw OAM attribute
// byte, and OAMIndex is the entry's position in OAM (0..39), used to
// break X ties. X/Y are signed: a sprite entering from the left edge or
// the top of the frame has a negative on-screen coordinate, and
// ComposeSpriteLine clips it per-pixel rather than the scan shifting it
// on-screen.
type Sprite struct {
	X, Y     int
	Tile     byte
	Attr     byte
	OAMIndex int
}

// ScanOAM finds up to 10 sprites that intersect scanline ly, sorted by
// X descending with OAM-index descending as a tiebreak. ComposeSpriteLine
// draws its input slice in order, last-wins on overlap, so this order
// puts the lowest-X (then lowest-index) sprite on top, matching DMG
// sprite priority.
func ScanOAM(oam []byte, ly byte, tall bool) []Sprite {
	height := 8
	if tall {
		height = 16
	}
	var found []Sprite
	for i := 0; i < 40 && len(found) < 10; i++ {
		base := i * 4
		rawY := oam[base]
		rawX := oam[base+1]
		tile := oam[base+2]
		attr := oam[base+3]

		y := int(rawY) - 16
		row := int(ly) - y
		if row < 0 || row >= height {
			continue
		}
		x := int(rawX) - 8
		if x <= -8 || x >= 160 {
			continue
		}
		found = append(found, Sprite{
			X: x, Y: y, Tile: tile, Attr: attr, OAMIndex: i,
		})
	}
	sort.SliceStable(found, func(a, b int) bool {
		if found[a].X != found[b].X {
			return found[a].X > found[b].X
		}
		return found[a].OAMIndex > found[b].OAMIndex
	})
	return found
}

// ComposeSpriteLine draws sprites onto a 160-pixel line, respecting
// transparency (color index 0), BG-priority (attribute bit 7 hides the
// sprite pixel behind a non-zero background color index), and X/Y
// flipping. bgci is the background's raw (pre-palette) color index for
// this line, used only for the priority test. Sprites later in the
// slice are drawn on top of earlier ones.
func ComposeSpriteLine(mem VRAMReader, sprites []Sprite, ly byte, bgci [160]byte, tall bool) [160]byte {
	var out [160]byte
	height := 8
	if tall {
		height = 16
	}
	for _, s := range sprites {
		row := int(ly) - s.Y
		if row < 0 || row >= height {
			continue
		}
		flipY := s.Attr&0x40 != 0
		flipX := s.Attr&0x20 != 0
		behindBG := s.Attr&0x80 != 0

		tileRow := row
		if flipY {
			tileRow = height - 1 - row
		}
		tile := s.Tile
		if tall {
			tile &^= 0x01
			if tileRow >= 8 {
				tile |= 0x01
				tileRow -= 8
			}
		}
		base := uint16(0x8000) + uint16(tile)*16 + uint16(tileRow)*2
		lo := mem.Read(base)
		hi := mem.Read(base + 1)

		for px := 0; px < 8; px++ {
			col := px
			if flipX {
				col = 7 - px
			}
			bit := 7 - byte(col)
			ci := ((hi>>bit)&1)<<1 | ((lo >> bit) & 1)
			if ci == 0 {
				continue
			}
			x := s.X + px
			if x < 0 || x >= 160 {
				continue
			}
			if behindBG && bgci[x] != 0 {
				continue
			}
			out[x] = ci
		}
	}
	return out
}
