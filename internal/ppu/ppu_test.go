package ppu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nesframe/internal/cartridge"
)

// MockCartridge implements the pattern table side of a mapper
type MockCartridge struct {
	chrData [0x2000]uint8
}

func (m *MockCartridge) ReadPRG(address uint16) uint8         { return 0 }
func (m *MockCartridge) WritePRG(address uint16, value uint8) {}
func (m *MockCartridge) ReadCHR(address uint16) uint8         { return m.chrData[address&0x1FFF] }
func (m *MockCartridge) WriteCHR(address uint16, value uint8) { m.chrData[address&0x1FFF] = value }

func newTestPPU() (*PPU, *MockCartridge) {
	cart := &MockCartridge{}
	p := New()
	p.AttachCHR(cart)
	p.SetMirroring(cartridge.MirrorVertical)
	return p, cart
}

// endScanlines runs the end-of-line work n times, as the scheduler would.
func endScanlines(p *PPU, n int) {
	for i := 0; i < n; i++ {
		p.SetDot(0)
		p.EndScanline()
	}
}

func writeVRAM(p *PPU, address uint16, values ...uint8) {
	p.WriteRegister(0x2006, uint8(address>>8))
	p.WriteRegister(0x2006, uint8(address))
	for _, v := range values {
		p.WriteRegister(0x2007, v)
	}
	p.WriteRegister(0x2006, 0)
	p.WriteRegister(0x2006, 0)
}

func TestReset_ShouldStartAtScanlineZero(t *testing.T) {
	p, _ := newTestPPU()
	p.SetDot(100)
	endScanlines(p, 5)
	p.Reset()

	assert.Equal(t, 0, p.Scanline())
	assert.Equal(t, 0, p.Dot())
	x, y := p.SpriteZeroHit()
	assert.Equal(t, -1, x)
	assert.Equal(t, -1, y)
	pending, _ := p.VBlankPending()
	assert.False(t, pending)
	assert.Equal(t, cartridge.MirrorVertical, p.Memory().Mirroring(), "mirroring survives reset")
}

func TestStatusRead_ShouldClearVBlankAndLatch(t *testing.T) {
	p, _ := newTestPPU()
	p.SetStatusFlag(StatusVBlank, true)
	p.SetStatusFlag(StatusSpriteZeroHit, true)
	p.WriteRegister(0x2005, 0x10) // sets w

	status := p.ReadRegister(0x2002)
	assert.Equal(t, uint8(0xC0), status&0xE0)
	assert.False(t, p.StatusFlag(StatusVBlank))
	assert.True(t, p.StatusFlag(StatusSpriteZeroHit), "sprite zero hit is cleared by pre-render only")
	assert.False(t, p.w)
}

func TestScrollAndAddressWrites_ShouldFillLoopyRegisters(t *testing.T) {
	p, _ := newTestPPU()

	p.WriteRegister(0x2000, 0x03)
	p.WriteRegister(0x2005, 0x7D) // coarse X 15, fine X 5
	p.WriteRegister(0x2005, 0x5E) // coarse Y 11, fine Y 6
	assert.Equal(t, uint16(0x6D6F), p.t)
	assert.Equal(t, uint8(5), p.x)

	p.WriteRegister(0x2006, 0x21)
	p.WriteRegister(0x2006, 0x08)
	assert.Equal(t, uint16(0x2108), p.v)
}

func TestPPUData_ShouldBufferReadsExceptPalette(t *testing.T) {
	p, _ := newTestPPU()
	writeVRAM(p, 0x2000, 0x11, 0x22)
	writeVRAM(p, 0x3F00, 0x0D)

	p.WriteRegister(0x2006, 0x20)
	p.WriteRegister(0x2006, 0x00)
	assert.Equal(t, uint8(0x00), p.ReadRegister(0x2007), "first read returns stale buffer")
	assert.Equal(t, uint8(0x11), p.ReadRegister(0x2007))
	assert.Equal(t, uint8(0x22), p.ReadRegister(0x2007))

	p.WriteRegister(0x2006, 0x3F)
	p.WriteRegister(0x2006, 0x00)
	assert.Equal(t, uint8(0x0D), p.ReadRegister(0x2007))
}

func TestPPUData_ShouldIncrementBy32WhenRequested(t *testing.T) {
	p, _ := newTestPPU()
	p.WriteRegister(0x2000, 0x04)
	p.WriteRegister(0x2006, 0x20)
	p.WriteRegister(0x2006, 0x00)
	p.WriteRegister(0x2007, 0xAA)
	p.WriteRegister(0x2007, 0xBB)

	assert.Equal(t, uint8(0xAA), p.Memory().Read(0x2000))
	assert.Equal(t, uint8(0xBB), p.Memory().Read(0x2020))
}

func TestOAMData_ShouldAutoIncrement(t *testing.T) {
	p, _ := newTestPPU()
	p.WriteRegister(0x2003, 0x10)
	p.WriteRegister(0x2004, 0x01)
	p.WriteRegister(0x2004, 0x02)

	assert.Equal(t, uint8(0x01), p.oam[0x10])
	assert.Equal(t, uint8(0x02), p.oam[0x11])
	p.WriteRegister(0x2003, 0x11)
	assert.Equal(t, uint8(0x02), p.ReadRegister(0x2004))
}

func TestEndScanline_ShouldArmVBlankAfterLastScanline(t *testing.T) {
	p, _ := newTestPPU()

	endScanlines(p, LastScanline)
	assert.Equal(t, LastScanline, p.Scanline())
	assert.False(t, p.StatusFlag(StatusVBlank))

	endScanlines(p, 1)
	assert.Equal(t, 0, p.Scanline(), "wraps to the first vblank line")
	assert.True(t, p.StatusFlag(StatusVBlank))
	pending, remaining := p.VBlankPending()
	assert.True(t, pending)
	assert.Equal(t, NMIDelay, remaining)
}

func TestEndScanline_PreRender_ShouldClearFlags(t *testing.T) {
	p, _ := newTestPPU()
	p.SetStatusFlag(StatusVBlank, true)
	p.SetStatusFlag(StatusSpriteZeroHit, true)
	p.SetStatusFlag(StatusSpriteOverflow, true)

	endScanlines(p, PreRenderScanline)
	assert.True(t, p.StatusFlag(StatusVBlank))

	endScanlines(p, 1)
	assert.False(t, p.StatusFlag(StatusVBlank))
	assert.False(t, p.StatusFlag(StatusSpriteZeroHit))
	assert.False(t, p.StatusFlag(StatusSpriteOverflow))
	assert.Equal(t, FirstVisibleScanline, p.Scanline())
}

func TestTickNMIDelay_ShouldFireOnNinthTick(t *testing.T) {
	p, _ := newTestPPU()
	endScanlines(p, ScanlinesPerFrame)

	for i := 1; i < NMIDelay; i++ {
		require.False(t, p.TickNMIDelay(), "tick %d", i)
	}
	assert.True(t, p.TickNMIDelay())
	pending, remaining := p.VBlankPending()
	assert.False(t, pending)
	assert.Equal(t, 0, remaining)
	assert.False(t, p.TickNMIDelay(), "nothing pending")
}

func TestStartVBlank_ShouldRaiseNMIAndDeliverFrame(t *testing.T) {
	p, _ := newTestPPU()
	nmis, frames := 0, 0
	p.SetNMIHandler(func() { nmis++ })
	p.SetFrameHandler(func(f *Frame) {
		frames++
		assert.Same(t, p.FrameBuffer(), f)
	})

	p.StartVBlank()
	assert.Equal(t, 0, nmis, "NMI disabled in PPUCTRL")
	assert.Equal(t, 1, frames)

	p.WriteRegister(0x2000, 0x80)
	p.StartVBlank()
	assert.Equal(t, 1, nmis)
	assert.Equal(t, 2, frames)
	assert.Equal(t, uint64(2), p.FrameCount())
}

func TestPPUCTRL_EnablingNMIDuringVBlank_ShouldFireImmediately(t *testing.T) {
	p, _ := newTestPPU()
	nmis := 0
	p.SetNMIHandler(func() { nmis++ })

	p.SetStatusFlag(StatusVBlank, true)
	p.WriteRegister(0x2000, 0x80)
	p.WriteRegister(0x2000, 0x80) // already enabled
	assert.Equal(t, 1, nmis)
}

func TestEndScanline_OddFrame_ShouldSkipFirstDot(t *testing.T) {
	p, _ := newTestPPU()
	p.WriteRegister(0x2001, 0x08)

	endScanlines(p, PreRenderScanline)
	assert.Equal(t, 0, p.Dot(), "even frame")

	p.Reset()
	p.WriteRegister(0x2001, 0x08)
	p.StartVBlank() // now odd
	endScanlines(p, PreRenderScanline)
	assert.Equal(t, 1, p.Dot())
}

// setupSolidTiles makes tile 0 fully opaque in colour 1 and fills the
// nametable with it.
func setupSolidTiles(p *PPU, cart *MockCartridge) {
	for i := 0; i < 8; i++ {
		cart.chrData[i] = 0xFF
	}
	writeVRAM(p, 0x3F01, 0x21)
	writeVRAM(p, 0x3F11, 0x16)
}

func TestRenderLine_ShouldDrawBackgroundColour(t *testing.T) {
	p, cart := newTestPPU()
	setupSolidTiles(p, cart)
	writeVRAM(p, 0x3F00, 0x0F)
	p.WriteRegister(0x2001, 0x0A) // background, left column shown

	p.StartFrame()
	endScanlines(p, PreRenderScanline+1)

	f := p.FrameBuffer()
	assert.Equal(t, NESColorToRGB(0x21), f[0])
	assert.Equal(t, NESColorToRGB(0x21), f[255])
	assert.Equal(t, NESColorToRGB(0x0F), f[FrameWidth], "line 1 not drawn yet")
}

func TestRenderLine_ShouldRecordSpriteZeroHit(t *testing.T) {
	p, cart := newTestPPU()
	setupSolidTiles(p, cart)
	p.WriteRegister(0x2003, 0)
	for _, b := range []uint8{9, 0, 0, 20} { // Y, tile, attr, X
		p.WriteRegister(0x2004, b)
	}
	p.WriteRegister(0x2001, 0x1E)

	endScanlines(p, PreRenderScanline+10)
	x, y := p.SpriteZeroHit()
	assert.Equal(t, -1, y, "sprite starts on line 10")

	endScanlines(p, 1)
	x, y = p.SpriteZeroHit()
	assert.Equal(t, 20, x)
	assert.Equal(t, 10, y)
	assert.Equal(t, NESColorToRGB(0x16), p.FrameBuffer()[10*FrameWidth+20])
	assert.False(t, p.StatusFlag(StatusSpriteZeroHit), "the scheduler raises the flag")
}

func TestRenderLine_SpriteZeroHit_ShouldNeedVisibleBackground(t *testing.T) {
	p, cart := newTestPPU()
	setupSolidTiles(p, cart)
	p.WriteRegister(0x2003, 0)
	for _, b := range []uint8{9, 0, 0, 20} {
		p.WriteRegister(0x2004, b)
	}
	p.WriteRegister(0x2001, 0x14) // sprites only

	endScanlines(p, PreRenderScanline+FrameHeight)
	_, y := p.SpriteZeroHit()
	assert.Equal(t, -1, y)
}

func TestState_RoundTrip(t *testing.T) {
	p, cart := newTestPPU()
	setupSolidTiles(p, cart)
	p.WriteRegister(0x2000, 0x90)
	p.WriteRegister(0x2001, 0x1E)
	p.WriteRegister(0x2004, 0x42)
	endScanlines(p, 100)
	p.SetDot(123)

	saved := p.State()
	p.WriteRegister(0x2003, 0x00)
	p.WriteRegister(0x2004, 0x00)
	assert.Equal(t, uint8(0x42), saved.OAM[0], "state is a copy")

	q, _ := newTestPPU()
	q.SetMirroring(cartridge.MirrorHorizontal)
	require.NoError(t, q.Restore(saved))
	assert.Equal(t, saved, q.State())
	assert.Equal(t, 100, q.Scanline())
	assert.Equal(t, 123, q.Dot())
	assert.Equal(t, cartridge.MirrorVertical, q.Memory().Mirroring())

	bad := saved
	bad.Dot = DotsPerScanline
	assert.ErrorIs(t, q.Restore(bad), ErrBadState)
	bad = saved
	bad.Version = 0
	assert.ErrorIs(t, q.Restore(bad), ErrBadState)
}
