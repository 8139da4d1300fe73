package console

import (
	"fmt"

	"nesframe/internal/ppu"
)

const (
	// DotsPerCycle is the number of PPU dots per CPU cycle.
	DotsPerCycle = 3

	// StallChunk is the most stall cycles consumed per scheduler step.
	StallChunk = 8

	// MaxDotsPerFrame bounds one Frame call at four frames' worth of dots.
	MaxDotsPerFrame = 4 * ppu.ScanlinesPerFrame * ppu.DotsPerScanline
)

// Frame runs the console until the PPU enters vertical blank. The CPU is
// stepped one instruction (or stall chunk) at a time, the APU is clocked
// with the same cycle count and the PPU is advanced three dots per cycle.
// Dots left in the batch that reaches vertical blank are dropped.
func (c *Console) Frame() error {
	if c.mapper == nil {
		return fmt.Errorf("frame: %w", ErrNotLoaded)
	}

	c.ppu.StartFrame()
	dots := 0

	for {
		var cycles int
		if stall := c.cpu.StallCycles(); stall == 0 {
			cycles = c.cpu.Emulate()
			if cycles < 1 {
				return fmt.Errorf("%w: CPU step took %d cycles", ErrProtocolViolation, cycles)
			}
		} else {
			cycles = min(stall, StallChunk)
			c.cpu.SetStallCycles(stall - cycles)
		}

		if !c.cfg.DisableSound {
			c.apu.ClockFrameCounter(cycles)
		}

		for n := cycles * DotsPerCycle; n > 0; n-- {
			if dots == MaxDotsPerFrame {
				return fmt.Errorf("%w: no vertical blank after %d dots", ErrProtocolViolation, dots)
			}
			dots++

			if c.spriteZeroHit() {
				c.ppu.SetStatusFlag(ppu.StatusSpriteZeroHit, true)
			}

			if pending, _ := c.ppu.VBlankPending(); pending && c.ppu.TickNMIDelay() {
				c.ppu.StartVBlank()
				c.fpsFrames++
				return nil
			}

			// EndScanline may move the dot on (odd frame skip), so the
			// wrap happens first.
			if dot := c.ppu.Dot() + 1; dot == ppu.DotsPerScanline {
				c.ppu.SetDot(0)
				c.ppu.EndScanline()
			} else {
				c.ppu.SetDot(dot)
			}
		}
	}
}

func (c *Console) spriteZeroHit() bool {
	x, y := c.ppu.SpriteZeroHit()
	return c.ppu.Dot() == x &&
		c.ppu.SpritesVisible() &&
		c.ppu.Scanline()-ppu.FirstVisibleScanline == y
}
