// Package ppu implements the Picture Processing Unit for the NES.
//
// The PPU is advanced dot by dot by the console scheduler. A frame is 262
// scanlines of 341 dots: scanlines 0-19 are vertical blank, 20 is the
// pre-render line, 21-260 produce the 240 visible lines and 261 is idle.
// Each visible line y is drawn in one go when scanline 20+y ends.
package ppu

import (
	"nesframe/internal/cartridge"
	"nesframe/internal/memory"
)

const (
	FrameWidth  = 256
	FrameHeight = 240

	// DotsPerScanline is the length of a scanline in PPU dots.
	DotsPerScanline = 341
	// ScanlinesPerFrame counts vblank, pre-render, visible and idle lines.
	ScanlinesPerFrame = 262

	// PreRenderScanline ends by clearing the vblank and sprite-zero flags.
	PreRenderScanline = 20
	// FirstVisibleScanline is where frame line 0 is scanned out.
	FirstVisibleScanline = 21
	// LastScanline ends by raising vblank and arming the NMI delay.
	LastScanline = 261

	// NMIDelay is how many dots pass between the vblank flag and the NMI.
	NMIDelay = 9

	oamSize = 256
)

// StatusFlag is a bit of PPUSTATUS ($2002).
type StatusFlag uint8

const (
	StatusSpriteOverflow StatusFlag = 0x20
	StatusSpriteZeroHit  StatusFlag = 0x40
	StatusVBlank         StatusFlag = 0x80
)

// Frame is a finished picture in 0x00RRGGBB pixels, row major.
type Frame [FrameWidth * FrameHeight]uint32

// PPU represents the NES Picture Processing Unit (2C02)
type PPU struct {
	// PPU Registers (CPU-visible)
	ppuCtrl   uint8 // $2000 - PPUCTRL
	ppuMask   uint8 // $2001 - PPUMASK
	ppuStatus uint8 // $2002 - PPUSTATUS
	oamAddr   uint8 // $2003 - OAMADDR

	// Internal PPU State
	v uint16 // Current VRAM address (15 bits)
	t uint16 // Temporary VRAM address (15 bits) - address latch
	x uint8  // Fine X scroll (3 bits)
	w bool   // Write latch (toggles between first/second write)

	readBuffer uint8 // PPU read buffer for $2007
	busLatch   uint8 // last value written to any register

	memory *memory.PPUMemory
	oam    [oamSize]uint8

	// Position
	scanline int
	dot      int
	oddFrame bool

	// Sprite zero hit recorded for the line most recently drawn; -1 if none.
	spr0HitX int
	spr0HitY int

	// Vertical blank state machine: armed at the end of LastScanline,
	// counted down one tick per dot.
	vblankPending bool
	nmiCounter    int

	frame      Frame
	frameCount uint64

	onNMI   func()
	onFrame func(*Frame)
}

// New creates a PPU with its own nametable and palette memory.
func New() *PPU {
	p := &PPU{
		memory: memory.NewPPUMemory(nil, cartridge.MirrorHorizontal),
	}
	p.Reset()
	return p
}

// Reset resets the PPU to initial state. Mirroring and the attached
// pattern tables are kept.
func (p *PPU) Reset() {
	p.ppuCtrl = 0
	p.ppuMask = 0
	p.ppuStatus = 0
	p.oamAddr = 0

	p.v = 0
	p.t = 0
	p.x = 0
	p.w = false
	p.readBuffer = 0
	p.busLatch = 0

	p.scanline = 0
	p.dot = 0
	p.oddFrame = false
	p.spr0HitX = -1
	p.spr0HitY = -1
	p.vblankPending = false
	p.nmiCounter = 0
	p.frameCount = 0

	p.oam = [oamSize]uint8{}
	p.frame = Frame{}
	p.memory.Reset()
}

// SetNMIHandler sets what StartVBlank calls when PPUCTRL enables NMIs.
func (p *PPU) SetNMIHandler(handler func()) {
	p.onNMI = handler
}

// SetFrameHandler sets the receiver of each finished frame. The frame is
// only valid until the handler returns.
func (p *PPU) SetFrameHandler(handler func(*Frame)) {
	p.onFrame = handler
}

// AttachCHR connects the pattern tables to a mapper.
func (p *PPU) AttachCHR(chr memory.CartridgeInterface) {
	p.memory.SetCartridge(chr)
}

// SetMirroring selects the nametable arrangement.
func (p *PPU) SetMirroring(mode cartridge.MirrorMode) {
	p.memory.SetMirroring(mode)
}

// Memory returns the PPU address space.
func (p *PPU) Memory() *memory.PPUMemory {
	return p.memory
}

// ReadRegister reads from a PPU register (CPU $2000-$2007)
func (p *PPU) ReadRegister(address uint16) uint8 {
	switch address {
	case 0x2002: // PPUSTATUS
		status := p.ppuStatus&0xE0 | p.busLatch&0x1F
		p.ppuStatus &^= uint8(StatusVBlank)
		p.w = false
		return status
	case 0x2004: // OAMDATA
		return p.oam[p.oamAddr]
	case 0x2007: // PPUDATA
		return p.readPPUData()
	default:
		// Write-only registers return the bus latch
		return p.busLatch
	}
}

// WriteRegister writes to a PPU register (CPU $2000-$2007)
func (p *PPU) WriteRegister(address uint16, value uint8) {
	p.busLatch = value

	switch address {
	case 0x2000: // PPUCTRL
		enabling := p.ppuCtrl&0x80 == 0 && value&0x80 != 0
		p.ppuCtrl = value
		p.t = (p.t & 0xF3FF) | ((uint16(value) & 0x03) << 10) // Nametable select
		// Enabling NMI during vblank fires immediately
		if enabling && p.ppuStatus&uint8(StatusVBlank) != 0 && p.onNMI != nil {
			p.onNMI()
		}
	case 0x2001: // PPUMASK
		p.ppuMask = value
	case 0x2003: // OAMADDR
		p.oamAddr = value
	case 0x2004: // OAMDATA
		p.oam[p.oamAddr] = value
		p.oamAddr++
	case 0x2005: // PPUSCROLL
		p.writePPUScroll(value)
	case 0x2006: // PPUADDR
		p.writePPUAddr(value)
	case 0x2007: // PPUDATA
		p.writePPUData(value)
	}
}

// WriteOAM writes to OAM at the specified address
func (p *PPU) WriteOAM(address uint8, value uint8) {
	p.oam[address] = value
}

// StartFrame prepares the frame buffer for a new picture.
func (p *PPU) StartFrame() {
	bg := p.color(p.memory.Read(0x3F00))
	for i := range p.frame {
		p.frame[i] = bg
	}
}

// Dot returns the position within the current scanline, 0..340.
func (p *PPU) Dot() int { return p.dot }

// SetDot moves the position within the current scanline.
func (p *PPU) SetDot(dot int) { p.dot = dot }

// Scanline returns the current scanline, 0..261.
func (p *PPU) Scanline() int { return p.scanline }

// EndScanline runs the work attached to the end of the current scanline
// and moves to the next one.
func (p *PPU) EndScanline() {
	switch {
	case p.scanline == PreRenderScanline-1:
		// Odd frames are one dot shorter while rendering.
		if p.oddFrame && p.renderingEnabled() {
			p.dot = 1
		}

	case p.scanline == LastScanline:
		p.SetStatusFlag(StatusVBlank, true)
		p.vblankPending = true
		p.nmiCounter = NMIDelay
		p.scanline = -1
	}

	if p.scanline == PreRenderScanline {
		p.SetStatusFlag(StatusVBlank, false)
		p.SetStatusFlag(StatusSpriteZeroHit, false)
		p.SetStatusFlag(StatusSpriteOverflow, false)
		p.spr0HitX = -1
		p.spr0HitY = -1
		if p.renderingEnabled() {
			p.v = p.t
		}
	}

	if p.scanline >= PreRenderScanline && p.scanline < PreRenderScanline+FrameHeight {
		p.renderLine(p.scanline - PreRenderScanline)
	}

	p.scanline++
}

// VBlankPending reports whether the NMI delay is running and how many
// ticks remain.
func (p *PPU) VBlankPending() (bool, int) {
	return p.vblankPending, p.nmiCounter
}

// TickNMIDelay counts the NMI delay down by one dot. It returns true, and
// clears the pending state, when the delay has run out.
func (p *PPU) TickNMIDelay() bool {
	if !p.vblankPending {
		return false
	}
	p.nmiCounter--
	if p.nmiCounter > 0 {
		return false
	}
	p.nmiCounter = 0
	p.vblankPending = false
	return true
}

// StartVBlank raises the NMI if enabled and hands the finished frame to
// the frame handler.
func (p *PPU) StartVBlank() {
	if p.ppuCtrl&0x80 != 0 && p.onNMI != nil {
		p.onNMI()
	}
	p.frameCount++
	p.oddFrame = !p.oddFrame
	if p.onFrame != nil {
		p.onFrame(&p.frame)
	}
}

// SetStatusFlag sets or clears a PPUSTATUS bit.
func (p *PPU) SetStatusFlag(flag StatusFlag, on bool) {
	if on {
		p.ppuStatus |= uint8(flag)
	} else {
		p.ppuStatus &^= uint8(flag)
	}
}

// StatusFlag reports a PPUSTATUS bit without the side effects of a read.
func (p *PPU) StatusFlag(flag StatusFlag) bool {
	return p.ppuStatus&uint8(flag) != 0
}

// SpritesVisible reports whether PPUMASK enables sprite rendering.
func (p *PPU) SpritesVisible() bool {
	return p.ppuMask&0x10 != 0
}

// SpriteZeroHit returns where sprite zero last overlapped the background,
// as (x, frame line), or (-1, -1).
func (p *PPU) SpriteZeroHit() (x, y int) {
	return p.spr0HitX, p.spr0HitY
}

// FrameBuffer returns the picture being drawn.
func (p *PPU) FrameBuffer() *Frame {
	return &p.frame
}

// FrameCount returns the number of frames delivered since reset.
func (p *PPU) FrameCount() uint64 {
	return p.frameCount
}

func (p *PPU) backgroundEnabled() bool { return p.ppuMask&0x08 != 0 }

func (p *PPU) renderingEnabled() bool { return p.ppuMask&0x18 != 0 }

// writePPUScroll handles writes to PPUSCROLL ($2005)
func (p *PPU) writePPUScroll(value uint8) {
	if !p.w {
		p.t = (p.t & 0xFFE0) | (uint16(value) >> 3) // Coarse X
		p.x = value & 0x07                          // Fine X
		p.w = true
	} else {
		p.t = (p.t & 0x8FFF) | ((uint16(value) & 0x07) << 12) // Fine Y
		p.t = (p.t & 0xFC1F) | ((uint16(value) & 0xF8) << 2)  // Coarse Y
		p.w = false
	}
}

// writePPUAddr handles writes to PPUADDR ($2006)
func (p *PPU) writePPUAddr(value uint8) {
	if !p.w {
		p.t = (p.t & 0x80FF) | ((uint16(value) & 0x3F) << 8)
		p.w = true
	} else {
		p.t = (p.t & 0xFF00) | uint16(value)
		p.v = p.t
		p.w = false
	}
}

// readPPUData handles reads from PPUDATA ($2007)
func (p *PPU) readPPUData() uint8 {
	var data uint8
	if p.v&0x3FFF >= 0x3F00 {
		// Palette data is not buffered; the buffer gets the nametable below.
		data = p.memory.Read(p.v)
		p.readBuffer = p.memory.Read(p.v & 0x2FFF)
	} else {
		data = p.readBuffer
		p.readBuffer = p.memory.Read(p.v)
	}
	p.incrementAddress()
	return data
}

// writePPUData handles writes to PPUDATA ($2007)
func (p *PPU) writePPUData(value uint8) {
	p.memory.Write(p.v, value)
	p.incrementAddress()
}

func (p *PPU) incrementAddress() {
	if p.ppuCtrl&0x04 != 0 {
		p.v += 32
	} else {
		p.v++
	}
	p.v &= 0x7FFF
}
