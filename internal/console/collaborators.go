package console

import (
	"nesframe/internal/cartridge"
	"nesframe/internal/cpu"
	"nesframe/internal/memory"
	"nesframe/internal/ppu"
)

// CPU is the processor as seen by the scheduler.
type CPU interface {
	// Emulate executes one instruction or interrupt sequence and returns
	// the cycles it took, at least 1.
	Emulate() int
	StallCycles() int
	SetStallCycles(n int)
	Reset()
	State() cpu.State
	Restore(s cpu.State) error
}

// PPU is the picture processor as seen by the scheduler.
type PPU interface {
	StartFrame()
	Dot() int
	SetDot(dot int)
	Scanline() int
	EndScanline()
	StartVBlank()
	SetStatusFlag(flag ppu.StatusFlag, on bool)
	SpritesVisible() bool
	SpriteZeroHit() (x, y int)
	VBlankPending() (bool, int)
	TickNMIDelay() bool

	SetMirroring(mode cartridge.MirrorMode)
	AttachCHR(chr memory.CartridgeInterface)
	SetFrameHandler(handler func(*ppu.Frame))

	Reset()
	State() ppu.State
	Restore(s ppu.State) error
}

// APU is the audio processor as seen by the scheduler.
type APU interface {
	ClockFrameCounter(cpuCycles int)
	SetSampleRate(rate int, frameRate float64, restart bool)
	SetSampleHandler(handler func(left, right float32))
	Reset()
}

// Bus is the CPU address space.
type Bus interface {
	Reset()
	SetCartridge(cart memory.CartridgeInterface)
	RAM() []uint8
	LoadRAM(data []uint8) error
}
