package ppu

// renderLine draws frame line y from the current scroll position and OAM,
// and records where sprite zero first overlaps the background.
func (p *PPU) renderLine(y int) {
	row := p.frame[y*FrameWidth : (y+1)*FrameWidth]
	var bgOpaque [FrameWidth]bool

	if p.renderingEnabled() {
		p.copyX()
	}
	if p.backgroundEnabled() {
		p.renderBackground(row, &bgOpaque)
	}
	if p.SpritesVisible() {
		p.renderSprites(y, row, &bgOpaque)
	}
	if p.renderingEnabled() {
		p.incrementY()
	}
}

func (p *PPU) renderBackground(row []uint32, opaque *[FrameWidth]bool) {
	table := uint16(p.ppuCtrl&0x10) << 8
	showLeft := p.ppuMask&0x02 != 0
	saved := p.v

	// 33 tiles cover 256 pixels at any fine X.
	for tile := 0; tile < 33; tile++ {
		index := uint16(p.memory.Read(0x2000 | (p.v & 0x0FFF)))
		attr := p.memory.Read(0x23C0 | (p.v & 0x0C00) | ((p.v >> 4) & 0x38) | ((p.v >> 2) & 0x07))
		shift := ((p.v >> 4) & 0x04) | (p.v & 0x02)
		palette := (attr >> shift) & 0x03
		fineY := uint16(p.getFineY())

		lo := p.memory.Read(table + index*16 + fineY)
		hi := p.memory.Read(table + index*16 + fineY + 8)

		for px := 0; px < 8; px++ {
			x := tile*8 + px - int(p.x)
			if x < 0 || x >= FrameWidth {
				continue
			}
			bit := 7 - uint(px)
			c := (lo>>bit)&1 | ((hi>>bit)&1)<<1
			if c == 0 || (x < 8 && !showLeft) {
				continue
			}
			opaque[x] = true
			row[x] = p.color(p.memory.Read(0x3F00 + uint16(palette)*4 + uint16(c)))
		}
		p.incrementX()
	}

	// The horizontal position is reloaded from t at the start of each line.
	p.v = (p.v & 0xFBE0) | (saved & 0x041F)
}

func (p *PPU) renderSprites(y int, row []uint32, bgOpaque *[FrameWidth]bool) {
	height := 8
	if p.ppuCtrl&0x20 != 0 {
		height = 16
	}
	showLeft := p.ppuMask&0x04 != 0

	var drawn [FrameWidth]bool
	count := 0

	for i := 0; i < 64; i++ {
		// OAM Y is one less than the first line the sprite appears on.
		top := int(p.oam[i*4]) + 1
		line := y - top
		if line < 0 || line >= height {
			continue
		}
		if count == 8 {
			p.SetStatusFlag(StatusSpriteOverflow, true)
			break
		}
		count++

		tile := p.oam[i*4+1]
		attr := p.oam[i*4+2]
		left := int(p.oam[i*4+3])

		if attr&0x80 != 0 {
			line = height - 1 - line
		}
		addr := p.spritePatternAddress(tile, line)
		lo := p.memory.Read(addr)
		hi := p.memory.Read(addr + 8)

		for px := 0; px < 8; px++ {
			x := left + px
			if x >= FrameWidth || drawn[x] {
				continue
			}
			bit := 7 - uint(px)
			if attr&0x40 != 0 {
				bit = uint(px)
			}
			c := (lo>>bit)&1 | ((hi>>bit)&1)<<1
			if c == 0 || (x < 8 && !showLeft) {
				continue
			}
			drawn[x] = true

			if i == 0 && bgOpaque[x] && x != 255 && p.spr0HitY < 0 {
				p.spr0HitX = x
				p.spr0HitY = y
			}

			// Behind-background sprites still hide lower priority sprites.
			if attr&0x20 != 0 && bgOpaque[x] {
				continue
			}
			palette := uint16(attr & 0x03)
			row[x] = p.color(p.memory.Read(0x3F10 + palette*4 + uint16(c)))
		}
	}
}

func (p *PPU) spritePatternAddress(tile uint8, line int) uint16 {
	if p.ppuCtrl&0x20 == 0 {
		table := uint16(p.ppuCtrl&0x08) << 9
		return table + uint16(tile)*16 + uint16(line)
	}
	// 8x16 sprites pick the table from bit 0 of the tile number.
	table := uint16(tile&0x01) * 0x1000
	index := uint16(tile & 0xFE)
	if line >= 8 {
		index++
		line -= 8
	}
	return table + index*16 + uint16(line)
}

// color applies greyscale and converts a palette entry to RGB.
func (p *PPU) color(entry uint8) uint32 {
	if p.ppuMask&0x01 != 0 {
		entry &= 0x30
	}
	return NESColorToRGB(entry & 0x3F)
}

// getFineY extracts the fine Y scroll from v register (bits 12-14)
func (p *PPU) getFineY() int {
	return int((p.v >> 12) & 0x0007)
}

// incrementX increments the coarse X and wraps to next nametable if needed
func (p *PPU) incrementX() {
	if (p.v & 0x001F) == 31 {
		p.v &= ^uint16(0x001F)
		p.v ^= 0x0400 // Switch horizontal nametable
	} else {
		p.v++
	}
}

// incrementY increments fine Y, and if it overflows, increments coarse Y
func (p *PPU) incrementY() {
	if (p.v & 0x7000) != 0x7000 {
		p.v += 0x1000
		return
	}
	p.v &= ^uint16(0x7000)
	y := (p.v & 0x03E0) >> 5
	switch y {
	case 29:
		y = 0
		p.v ^= 0x0800 // Switch vertical nametable
	case 31:
		y = 0 // Attribute rows wrap without switching nametable
	default:
		y++
	}
	p.v = (p.v & ^uint16(0x03E0)) | (y << 5)
}

// copyX copies all X-related bits from t to v (bits 10, 4-0)
func (p *PPU) copyX() {
	p.v = (p.v & 0xFBE0) | (p.t & 0x041F)
}
