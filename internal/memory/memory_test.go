package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nesframe/internal/cartridge"
)

type mockPPU struct {
	regs   map[uint16]uint8
	writes []uint8
}

func newMockPPU() *mockPPU { return &mockPPU{regs: make(map[uint16]uint8)} }

func (p *mockPPU) ReadRegister(address uint16) uint8 { return p.regs[address] }

func (p *mockPPU) WriteRegister(address uint16, value uint8) {
	p.regs[address] = value
	if address == 0x2004 {
		p.writes = append(p.writes, value)
	}
}

type mockAPU struct {
	regs   map[uint16]uint8
	status uint8
}

func (a *mockAPU) WriteRegister(address uint16, value uint8) { a.regs[address] = value }
func (a *mockAPU) ReadStatus() uint8                         { return a.status }

type mockInput struct {
	strobe uint8
	next   uint8
}

func (i *mockInput) Read(address uint16) uint8         { return i.next }
func (i *mockInput) Write(address uint16, value uint8) { i.strobe = value }

type mockCart struct {
	prg [0x10000]uint8
	chr [0x2000]uint8
}

func (c *mockCart) ReadPRG(address uint16) uint8         { return c.prg[address] }
func (c *mockCart) WritePRG(address uint16, value uint8) { c.prg[address] = value }
func (c *mockCart) ReadCHR(address uint16) uint8         { return c.chr[address] }
func (c *mockCart) WriteCHR(address uint16, value uint8) { c.chr[address] = value }

type mockStaller struct {
	cycles uint64
	stall  int
}

func (s *mockStaller) AddStallCycles(n int) { s.stall += n }
func (s *mockStaller) Cycles() uint64       { return s.cycles }

func newTestMemory() (*Memory, *mockPPU, *mockAPU, *mockCart) {
	ppu := newMockPPU()
	apu := &mockAPU{regs: make(map[uint16]uint8)}
	cart := &mockCart{}
	return New(ppu, apu, cart), ppu, apu, cart
}

func TestRAM_ShouldMirrorEvery2KB(t *testing.T) {
	mem, _, _, _ := newTestMemory()

	mem.Write(0x0123, 0x42)
	for _, mirror := range []uint16{0x0123, 0x0923, 0x1123, 0x1923} {
		assert.Equal(t, uint8(0x42), mem.Read(mirror), "$%04X", mirror)
	}
}

func TestReset_ShouldApplyPowerUpPattern(t *testing.T) {
	mem, _, _, _ := newTestMemory()
	mem.Write(0x0000, 0x00)
	mem.Reset()

	assert.Equal(t, uint8(0xFF), mem.Read(0x0000))
	assert.Equal(t, uint8(0xF7), mem.Read(0x0008))
	assert.Equal(t, uint8(0xBF), mem.Read(0x000F))
}

func TestPPURegisters_ShouldMirrorEvery8Bytes(t *testing.T) {
	mem, ppu, _, _ := newTestMemory()

	mem.Write(0x3FF9, 0x10)
	assert.Equal(t, uint8(0x10), ppu.regs[0x2001])

	ppu.regs[0x2002] = 0x80
	assert.Equal(t, uint8(0x80), mem.Read(0x200A))
}

func TestAPURegisters_ShouldRouteWritesAndStatus(t *testing.T) {
	mem, _, apu, _ := newTestMemory()

	mem.Write(0x4000, 0x3F)
	mem.Write(0x4015, 0x0F)
	mem.Write(0x4017, 0x40)
	apu.status = 0x41

	assert.Equal(t, uint8(0x3F), apu.regs[0x4000])
	assert.Equal(t, uint8(0x0F), apu.regs[0x4015])
	assert.Equal(t, uint8(0x40), apu.regs[0x4017])
	assert.Equal(t, uint8(0x41), mem.Read(0x4015))
}

func TestController_ShouldRouteStrobeAndReads(t *testing.T) {
	mem, _, _, _ := newTestMemory()
	input := &mockInput{next: 0x01}
	mem.SetInputSystem(input)

	mem.Write(0x4016, 0x01)
	assert.Equal(t, uint8(0x01), input.strobe)
	assert.Equal(t, uint8(0x01), mem.Read(0x4016)&0x01)
}

func TestCartridge_ShouldServeUpperHalf(t *testing.T) {
	mem, _, _, cart := newTestMemory()
	cart.prg[0x8000] = 0xEA

	assert.Equal(t, uint8(0xEA), mem.Read(0x8000))
	mem.Write(0x6000, 0x12)
	assert.Equal(t, uint8(0x12), cart.prg[0x6000])

	mem.SetCartridge(nil)
	assert.Equal(t, mem.Read(0x0008), mem.Read(0x8000), "open bus without a cartridge")
}

func TestOAMDMA_ShouldCopyPageAndStallCPU(t *testing.T) {
	tests := []struct {
		name   string
		cycles uint64
		stall  int
	}{
		{"even cycle", 100, 513},
		{"odd cycle", 101, 514},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem, ppu, _, _ := newTestMemory()
			staller := &mockStaller{cycles: tt.cycles}
			mem.SetStaller(staller)
			for i := 0; i < 256; i++ {
				mem.Write(0x0200+uint16(i), uint8(i))
			}

			mem.Write(0x4014, 0x02)

			require.Len(t, ppu.writes, 256)
			assert.Equal(t, uint8(0x00), ppu.writes[0])
			assert.Equal(t, uint8(0xFF), ppu.writes[255])
			assert.Equal(t, tt.stall, staller.stall)
		})
	}
}

func TestLoadRAM_ShouldRoundTripAndRejectBadSize(t *testing.T) {
	mem, _, _, _ := newTestMemory()
	mem.Write(0x0010, 0x99)

	saved := mem.RAM()
	mem.Write(0x0010, 0x00)
	assert.Equal(t, uint8(0x99), saved[0x10], "RAM returns a copy")

	require.NoError(t, mem.LoadRAM(saved))
	assert.Equal(t, uint8(0x99), mem.Read(0x0010))
	assert.Error(t, mem.LoadRAM(make([]uint8, 10)))
}

func TestPPUMemory_NametableMirroring(t *testing.T) {
	tests := []struct {
		mode  cartridge.MirrorMode
		write uint16
		alias uint16
		other uint16
	}{
		{cartridge.MirrorHorizontal, 0x2000, 0x2400, 0x2800},
		{cartridge.MirrorVertical, 0x2000, 0x2800, 0x2400},
		{cartridge.MirrorSingleScreen0, 0x2400, 0x2C00, 0xFFFF},
		{cartridge.MirrorFourScreen, 0x2C00, 0x3C00, 0x2000},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			pm := NewPPUMemory(&mockCart{}, tt.mode)
			pm.Write(tt.write+5, 0x77)
			assert.Equal(t, uint8(0x77), pm.Read(tt.alias+5))
			if tt.other != 0xFFFF {
				assert.Equal(t, uint8(0x00), pm.Read(tt.other+5))
			}
		})
	}
}

func TestPPUMemory_PaletteMirrors(t *testing.T) {
	pm := NewPPUMemory(&mockCart{}, cartridge.MirrorHorizontal)

	pm.Write(0x3F10, 0x21)
	assert.Equal(t, uint8(0x21), pm.Read(0x3F00))
	pm.Write(0x3F05, 0x16)
	assert.Equal(t, uint8(0x16), pm.Read(0x3F25))
	assert.Equal(t, uint8(0x0F), pm.Read(0x3F04), "default background entry")
}

func TestPPUMemory_PatternTablesGoThroughCartridge(t *testing.T) {
	cart := &mockCart{}
	pm := NewPPUMemory(cart, cartridge.MirrorHorizontal)

	pm.Write(0x0010, 0xAA)
	assert.Equal(t, uint8(0xAA), cart.chr[0x0010])
	assert.Equal(t, uint8(0xAA), pm.Read(0x0010))
}

func TestPPUMemory_LoadShouldRestoreContents(t *testing.T) {
	pm := NewPPUMemory(&mockCart{}, cartridge.MirrorVertical)
	pm.Write(0x2001, 0x01)
	pm.Write(0x3F01, 0x02)

	nt, pal := pm.Nametables(), pm.Palette()
	pm.Reset()
	require.NoError(t, pm.Load(nt, pal))

	assert.Equal(t, uint8(0x01), pm.Read(0x2001))
	assert.Equal(t, uint8(0x02), pm.Read(0x3F01))
	assert.Error(t, pm.Load(nt[:1], pal))
}
