package ppu

import (
	"errors"
	"fmt"

	"nesframe/internal/cartridge"
	"nesframe/internal/memory"
)

// StateVersion is the layout version of State.
const StateVersion = 1

// ErrBadState is returned by Restore for a State it cannot apply.
var ErrBadState = errors.New("invalid PPU state")

// State is a serialisable copy of the PPU, including nametables, palette
// and OAM. The frame buffer is not part of it.
type State struct {
	Version int `json:"version"`

	Ctrl       uint8  `json:"ctrl"`
	Mask       uint8  `json:"mask"`
	Status     uint8  `json:"status"`
	OAMAddr    uint8  `json:"oam_addr"`
	V          uint16 `json:"v"`
	T          uint16 `json:"t"`
	X          uint8  `json:"x"`
	W          bool   `json:"w"`
	ReadBuffer uint8  `json:"read_buffer"`
	BusLatch   uint8  `json:"bus_latch"`

	Scanline    int  `json:"scanline"`
	Dot         int  `json:"dot"`
	OddFrame    bool `json:"odd_frame"`
	SpriteZeroX int  `json:"sprite_zero_x"`
	SpriteZeroY int  `json:"sprite_zero_y"`

	VBlankPending bool   `json:"vblank_pending"`
	NMIDelay      int    `json:"nmi_delay"`
	FrameCount    uint64 `json:"frame_count"`

	OAM        []uint8              `json:"oam"`
	Nametables []uint8              `json:"nametables"`
	Palette    []uint8              `json:"palette"`
	Mirroring  cartridge.MirrorMode `json:"mirroring"`
}

// State returns a deep copy of the PPU state.
func (p *PPU) State() State {
	return State{
		Version:       StateVersion,
		Ctrl:          p.ppuCtrl,
		Mask:          p.ppuMask,
		Status:        p.ppuStatus,
		OAMAddr:       p.oamAddr,
		V:             p.v,
		T:             p.t,
		X:             p.x,
		W:             p.w,
		ReadBuffer:    p.readBuffer,
		BusLatch:      p.busLatch,
		Scanline:      p.scanline,
		Dot:           p.dot,
		OddFrame:      p.oddFrame,
		SpriteZeroX:   p.spr0HitX,
		SpriteZeroY:   p.spr0HitY,
		VBlankPending: p.vblankPending,
		NMIDelay:      p.nmiCounter,
		FrameCount:    p.frameCount,
		OAM:           append([]uint8(nil), p.oam[:]...),
		Nametables:    p.memory.Nametables(),
		Palette:       p.memory.Palette(),
		Mirroring:     p.memory.Mirroring(),
	}
}

// Validate reports whether s can be restored.
func (s State) Validate() error {
	if s.Version != StateVersion {
		return fmt.Errorf("%w: version %d, want %d", ErrBadState, s.Version, StateVersion)
	}
	if len(s.OAM) != oamSize {
		return fmt.Errorf("%w: OAM is %d bytes", ErrBadState, len(s.OAM))
	}
	if s.Dot < 0 || s.Dot >= DotsPerScanline || s.Scanline < 0 || s.Scanline >= ScanlinesPerFrame {
		return fmt.Errorf("%w: position %d/%d", ErrBadState, s.Scanline, s.Dot)
	}
	if len(s.Nametables) != memory.NametableRAMSize || len(s.Palette) != memory.PaletteRAMSize {
		return fmt.Errorf("%w: VRAM is %d+%d bytes", ErrBadState, len(s.Nametables), len(s.Palette))
	}
	if s.NMIDelay < 0 {
		return fmt.Errorf("%w: NMI delay %d", ErrBadState, s.NMIDelay)
	}
	return nil
}

// Restore overwrites the PPU with s. Nothing is changed if s is invalid.
func (p *PPU) Restore(s State) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if err := p.memory.Load(s.Nametables, s.Palette); err != nil {
		return fmt.Errorf("%w: %v", ErrBadState, err)
	}

	p.ppuCtrl = s.Ctrl
	p.ppuMask = s.Mask
	p.ppuStatus = s.Status
	p.oamAddr = s.OAMAddr
	p.v = s.V
	p.t = s.T
	p.x = s.X
	p.w = s.W
	p.readBuffer = s.ReadBuffer
	p.busLatch = s.BusLatch
	p.scanline = s.Scanline
	p.dot = s.Dot
	p.oddFrame = s.OddFrame
	p.spr0HitX = s.SpriteZeroX
	p.spr0HitY = s.SpriteZeroY
	p.vblankPending = s.VBlankPending
	p.nmiCounter = s.NMIDelay
	p.frameCount = s.FrameCount
	copy(p.oam[:], s.OAM)
	p.memory.SetMirroring(s.Mirroring)
	return nil
}
