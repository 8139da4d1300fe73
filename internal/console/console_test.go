package console

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nesframe/internal/cartridge"
	"nesframe/internal/cpu"
	"nesframe/internal/input"
	"nesframe/internal/memory"
	"nesframe/internal/ppu"
)

func newLoadedConsole(t *testing.T, cfg Config) *Console {
	t.Helper()
	c, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, c.LoadROM(cartridge.NMILoopROM()))
	return c
}

func runFrames(t *testing.T, c *Console, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, c.Frame())
	}
}

func TestNew_ShouldReportReadyStatus(t *testing.T) {
	var statuses []string
	cfg := DefaultConfig()
	cfg.OnStatus = func(s string) { statuses = append(statuses, s) }

	c, err := New(cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{"Ready to load a ROM."}, statuses)
	assert.False(t, c.Loaded())
	assert.Equal(t, time.Second/60, c.FrameInterval())
}

func TestNew_ShouldRejectInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"negative frame rate", Config{PreferredFrameRate: -1}},
		{"infinite frame rate", Config{PreferredFrameRate: math.Inf(1)}},
		{"NaN frame rate", Config{PreferredFrameRate: math.NaN()}},
		{"negative sample rate", Config{SampleRate: -44100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestNew_ShouldFillZeroValuesWithDefaults(t *testing.T) {
	f := newFakes([]int{2}, 0, 0)

	c, err := assemble(Config{}, f.parts())
	require.NoError(t, err)

	assert.Equal(t, DefaultFrameRate, c.Framerate())
	require.Len(t, f.apu.sampleRates, 1)
	assert.Equal(t, sampleRateCall{DefaultSampleRate, DefaultFrameRate, true}, f.apu.sampleRates[0])
	assert.Equal(t, DefaultConfig(), c.cfg)
}

func TestFrame_ZeroConfig_ShouldClockAPU(t *testing.T) {
	f := newFakes([]int{3}, 100, 1)
	c, err := assemble(Config{}, f.parts())
	require.NoError(t, err)
	require.NoError(t, c.LoadROM(cartridge.NMILoopROM()))

	require.NoError(t, c.Frame())

	assert.NotEmpty(t, f.apu.clocks)
}

func TestFrame_ShouldFailWithoutCartridge(t *testing.T) {
	c, err := New(DefaultConfig())
	require.NoError(t, err)

	assert.ErrorIs(t, c.Frame(), ErrNotLoaded)
}

func TestFrame_ShouldEndAtScanlineZeroDotEight(t *testing.T) {
	frames := 0
	cfg := DefaultConfig()
	cfg.OnFrame = func(*ppu.Frame) { frames++ }
	c := newLoadedConsole(t, cfg)

	for i := 1; i <= 3; i++ {
		require.NoError(t, c.Frame())

		assert.Equal(t, 0, c.ppu.Scanline(), "frame %d", i)
		assert.Equal(t, 8, c.ppu.Dot(), "frame %d", i)
		pending, _ := c.ppu.VBlankPending()
		assert.False(t, pending)
		assert.Equal(t, i, frames)
	}
}

func TestFrame_ShouldDeliverNMIOncePerFrame(t *testing.T) {
	c := newLoadedConsole(t, DefaultConfig())

	// RAM[0] powers up as $FF; the handler increments it from the second
	// frame on, once the first NMI has been requested.
	runFrames(t, c, 4)

	assert.Equal(t, uint8(0x02), c.bus.RAM()[0])
}

func TestFrame_ShouldTakeOneFrameOfCPUCycles(t *testing.T) {
	c := newLoadedConsole(t, DefaultConfig())
	realCPU := c.cpu.(*cpu.CPU)

	runFrames(t, c, 2)
	before := realCPU.Cycles()
	runFrames(t, c, 1)

	// 262 * 341 / 3 plus whatever the last instruction overran
	assert.InDelta(t, 29781, float64(realCPU.Cycles()-before), 10)
}

func TestFrame_ShouldAdvanceThreeDotsPerCycle(t *testing.T) {
	f := newFakes([]int{2, 3, 4, 7, 5}, 5000, 4)
	c, err := assemble(DefaultConfig(), f.parts())
	require.NoError(t, err)
	require.NoError(t, c.LoadROM(cartridge.NMILoopROM()))

	require.NoError(t, c.Frame())

	assert.Equal(t, f.cpu.emulated, f.apu.clocks)
	total := 0
	for _, n := range f.apu.clocks {
		total += n
	}
	last := f.apu.clocks[len(f.apu.clocks)-1]

	// Every dot but the one that ends the frame is advanced.
	examined := f.ppu.advances + 1
	assert.Equal(t, 5000+4-1, f.ppu.advances)
	assert.LessOrEqual(t, examined, total*DotsPerCycle)
	assert.Less(t, total*DotsPerCycle-examined, last*DotsPerCycle)
	assert.Equal(t, 1, f.ppu.vblanks)
	assert.Equal(t, 1, f.ppu.frameStarts)
}

func TestFrame_ShouldConsumeStallInChunks(t *testing.T) {
	f := newFakes([]int{2}, 200, 1)
	f.cpu.stall = 20
	c, err := assemble(DefaultConfig(), f.parts())
	require.NoError(t, err)
	require.NoError(t, c.LoadROM(cartridge.NMILoopROM()))
	f.cpu.stall = 20

	require.NoError(t, c.Frame())

	require.GreaterOrEqual(t, len(f.apu.clocks), 4)
	assert.Equal(t, []int{8, 8, 4, 2}, f.apu.clocks[:4])
	assert.Zero(t, f.cpu.stall)
}

func TestFrame_ShouldNotClockAPUWithoutSound(t *testing.T) {
	f := newFakes([]int{3}, 100, 1)
	cfg := DefaultConfig()
	cfg.DisableSound = true
	c, err := assemble(cfg, f.parts())
	require.NoError(t, err)
	require.NoError(t, c.LoadROM(cartridge.NMILoopROM()))

	require.NoError(t, c.Frame())

	assert.Empty(t, f.apu.clocks)
	assert.NotEmpty(t, f.cpu.emulated)
}

func TestFrame_ShouldWrapDotAt341(t *testing.T) {
	f := newFakes([]int{1}, 3*ppu.DotsPerScanline+5, 1)
	c, err := assemble(DefaultConfig(), f.parts())
	require.NoError(t, err)
	require.NoError(t, c.LoadROM(cartridge.NMILoopROM()))

	require.NoError(t, c.Frame())

	assert.Equal(t, 3, f.ppu.scanline)
	assert.Equal(t, 5, f.ppu.dot)
}

func TestFrame_SpriteZeroHit(t *testing.T) {
	// Frame ends after examining scanline 29, dot 331.
	raiseAt := 30*ppu.DotsPerScanline - 10

	tests := []struct {
		name    string
		x, y    int
		visible bool
		want    bool
	}{
		{"left edge", 0, 0, true, true},
		{"right edge", 340, 0, true, true},
		{"last scanline reached", 0, 8, true, true},
		{"scanline never reached", 0, 9, true, false},
		{"dot never reached on last scanline", 340, 8, true, false},
		{"dot out of range", 341, 0, true, false},
		{"no hit recorded", -1, -1, true, false},
		{"sprites hidden", 0, 0, false, false},
		{"y offset off by one", 0, -22, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakes([]int{1}, raiseAt, 1)
			c, err := assemble(DefaultConfig(), f.parts())
			require.NoError(t, err)
			require.NoError(t, c.LoadROM(cartridge.NMILoopROM()))
			f.ppu.hitX, f.ppu.hitY = tt.x, tt.y
			f.ppu.spritesVisible = tt.visible

			require.NoError(t, c.Frame())

			assert.Equal(t, 29, f.ppu.scanline)
			assert.Equal(t, tt.want, f.ppu.spriteZeroSets > 0)
		})
	}
}

func TestFrame_ShouldReportProtocolViolation(t *testing.T) {
	t.Run("no vertical blank", func(t *testing.T) {
		f := newFakes([]int{7}, -1, 0)
		c, err := assemble(DefaultConfig(), f.parts())
		require.NoError(t, err)
		require.NoError(t, c.LoadROM(cartridge.NMILoopROM()))

		err = c.Frame()

		assert.ErrorIs(t, err, ErrProtocolViolation)
		assert.Equal(t, MaxDotsPerFrame, f.ppu.advances)
	})

	t.Run("zero cycle step", func(t *testing.T) {
		f := newFakes([]int{0}, 10, 1)
		c, err := assemble(DefaultConfig(), f.parts())
		require.NoError(t, err)
		require.NoError(t, c.LoadROM(cartridge.NMILoopROM()))

		assert.ErrorIs(t, c.Frame(), ErrProtocolViolation)
	})
}

func TestLoadROM_ShouldWireCartridge(t *testing.T) {
	var statuses []string
	f := newFakes([]int{2}, 0, 0)
	cfg := DefaultConfig()
	cfg.OnStatus = func(s string) { statuses = append(statuses, s) }
	c, err := assemble(cfg, f.parts())
	require.NoError(t, err)

	rom := cartridge.NewTestROMBuilder().WithMapper(2).WithPRGSize(2).WithMirroring(cartridge.MirrorVertical).MustBuild()
	require.NoError(t, c.LoadROM(rom))

	assert.True(t, c.Loaded())
	assert.Equal(t, "UxROM", c.MapperName())
	assert.NotNil(t, f.bus.cart)
	assert.Same(t, f.bus.cart, f.ppu.chr)
	assert.Equal(t, cartridge.MirrorVertical, f.ppu.mirroring)
	assert.Equal(t, 1, f.cpu.resets)
	assert.Equal(t, 1, f.ppu.resets)
	assert.Equal(t, 1, f.apu.resets)
	assert.Equal(t, 1, f.bus.resets)
	assert.Equal(t, []string{"Ready to load a ROM.", "Running: UxROM"}, statuses)
}

func TestLoadROM_ShouldKeepPrivateCopy(t *testing.T) {
	c, err := New(DefaultConfig())
	require.NoError(t, err)
	rom := cartridge.NMILoopROM()
	require.NoError(t, c.LoadROM(rom))

	for i := range rom {
		rom[i] = 0
	}

	require.NoError(t, c.ReloadROM())
	assert.Equal(t, "NROM", c.MapperName())
}

func TestLoadROM_InvalidImage_ShouldLeaveStateUntouched(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad magic", []byte("NOPE0000000000000000")},
		{"truncated", cartridge.NMILoopROM()[:1000]},
		{"unsupported mapper", cartridge.NewTestROMBuilder().WithMapper(4).MustBuild()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakes([]int{2}, 0, 0)
			c, err := assemble(DefaultConfig(), f.parts())
			require.NoError(t, err)
			require.NoError(t, c.LoadROM(cartridge.NMILoopROM()))
			resets := f.cpu.resets

			err = c.LoadROM(tt.data)

			assert.ErrorIs(t, err, ErrInvalidImage)
			assert.Equal(t, resets, f.cpu.resets)
			assert.Equal(t, "NROM", c.MapperName())
		})
	}
}

func TestReloadROM_WithoutLoad_ShouldBeNoOp(t *testing.T) {
	var statuses []string
	f := newFakes([]int{2}, 0, 0)
	cfg := DefaultConfig()
	cfg.OnStatus = func(s string) { statuses = append(statuses, s) }
	c, err := assemble(cfg, f.parts())
	require.NoError(t, err)

	assert.NoError(t, c.ReloadROM())

	assert.False(t, c.Loaded())
	assert.Zero(t, f.cpu.resets)
	assert.Zero(t, f.ppu.resets)
	assert.Len(t, statuses, 1)
}

func TestReset_ShouldBeSafeWithoutCartridge(t *testing.T) {
	c, err := New(DefaultConfig())
	require.NoError(t, err)

	assert.NotPanics(t, c.Reset)
	assert.False(t, c.Loaded())
}

func TestReset_ShouldBeIdempotent(t *testing.T) {
	c := newLoadedConsole(t, DefaultConfig())
	runFrames(t, c, 3)

	c.Reset()
	once, err := c.Snapshot()
	require.NoError(t, err)

	c.Reset()
	twice, err := c.Snapshot()
	require.NoError(t, err)

	assert.Equal(t, once, twice)
}

func TestSetFramerate(t *testing.T) {
	f := newFakes([]int{2}, 0, 0)
	c, err := assemble(DefaultConfig(), f.parts())
	require.NoError(t, err)
	base := c.FrameInterval()
	f.apu.sampleRates = nil

	require.NoError(t, c.SetFramerate(30))

	assert.InDelta(t, float64(2*base), float64(c.FrameInterval()), 1)
	assert.Equal(t, 30.0, c.Framerate())
	assert.Equal(t, []sampleRateCall{{DefaultSampleRate, 30, false}}, f.apu.sampleRates)
}

func TestSetFramerate_ShouldRejectInvalidRates(t *testing.T) {
	for _, rate := range []float64{0, -60, math.NaN(), math.Inf(1)} {
		f := newFakes([]int{2}, 0, 0)
		c, err := assemble(DefaultConfig(), f.parts())
		require.NoError(t, err)
		f.apu.sampleRates = nil

		err = c.SetFramerate(rate)

		assert.ErrorIs(t, err, ErrInvalidConfig, "rate %v", rate)
		assert.Equal(t, time.Second/60, c.FrameInterval())
		assert.Empty(t, f.apu.sampleRates)
	}
}

func TestFPS_ShouldMeasureWindow(t *testing.T) {
	c := newLoadedConsole(t, DefaultConfig())
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	_, ok := c.FPS()
	assert.False(t, ok)

	runFrames(t, c, 3)
	clock = clock.Add(500 * time.Millisecond)
	fps, ok := c.FPS()
	assert.True(t, ok)
	assert.InDelta(t, 6.0, fps, 1e-9)

	fps, ok = c.FPS()
	assert.True(t, ok)
	assert.Zero(t, fps)

	c.Reset()
	_, ok = c.FPS()
	assert.False(t, ok)
}

func TestSnapshot_ShouldFailWithoutCartridge(t *testing.T) {
	c, err := New(DefaultConfig())
	require.NoError(t, err)

	_, err = c.Snapshot()
	assert.ErrorIs(t, err, ErrNotLoaded)
	_, err = c.ToJSON()
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestSnapshot_ShouldRoundTripThroughJSON(t *testing.T) {
	c := newLoadedConsole(t, DefaultConfig())
	runFrames(t, c, 5)
	want, err := c.Snapshot()
	require.NoError(t, err)

	data, err := c.ToJSON()
	require.NoError(t, err)

	restored, err := New(DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, restored.FromJSON(data))

	got, err := restored.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// Both consoles carry on identically.
	runFrames(t, c, 2)
	runFrames(t, restored, 2)
	a, err := c.Snapshot()
	require.NoError(t, err)
	b, err := restored.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSnapshot_ShouldNotShareMemory(t *testing.T) {
	c := newLoadedConsole(t, DefaultConfig())
	runFrames(t, c, 2)
	mutated, err := c.Snapshot()
	require.NoError(t, err)
	kept, err := c.Snapshot()
	require.NoError(t, err)

	mutated.ROM[0] ^= 0xFF
	mutated.CPU.RAM[0] ^= 0xFF
	mutated.Mapper.SRAM[0] ^= 0xFF
	mutated.PPU.OAM[0] ^= 0xFF
	mutated.PPU.Nametables[0] ^= 0xFF

	live, err := c.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, kept, live)
	assert.NotEqual(t, mutated, live)

	require.NoError(t, c.Restore(kept))
	kept.CPU.RAM[1] ^= 0xFF
	kept.PPU.Palette[0] ^= 0xFF

	after, err := c.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, live, after)
}

func TestRestore_ShouldRejectUnknownVersion(t *testing.T) {
	c := newLoadedConsole(t, DefaultConfig())
	s, err := c.Snapshot()
	require.NoError(t, err)
	s.Version = SnapshotVersion + 1

	err = c.Restore(s)

	assert.ErrorIs(t, err, ErrSnapshotVersion)
	assert.Error(t, c.Restore(nil))
}

func TestRestore_ShouldReplaceCartridge(t *testing.T) {
	source := newLoadedConsole(t, DefaultConfig())
	runFrames(t, source, 2)
	s, err := source.Snapshot()
	require.NoError(t, err)

	target, err := New(DefaultConfig())
	require.NoError(t, err)
	uxrom := cartridge.NewTestROMBuilder().WithMapper(2).WithPRGSize(2).MustBuild()
	require.NoError(t, target.LoadROM(uxrom))

	require.NoError(t, target.Restore(s))

	assert.Equal(t, "NROM", target.MapperName())
	assert.Equal(t, s.PPU.FrameCount, target.ppu.State().FrameCount)
}

func newUxROMConsole(t *testing.T) *Console {
	t.Helper()
	c, err := New(DefaultConfig())
	require.NoError(t, err)
	uxrom := cartridge.NewTestROMBuilder().WithMapper(2).WithPRGSize(2).MustBuild()
	require.NoError(t, c.LoadROM(uxrom))
	return c
}

func TestRestore_BankOutOfRange_ShouldFailWithoutPanicking(t *testing.T) {
	for _, bank := range []int{-1, 2, 1000} {
		c := newUxROMConsole(t)
		before, err := c.Snapshot()
		require.NoError(t, err)

		bad, err := c.Snapshot()
		require.NoError(t, err)
		bad.Mapper.PRGBank = bank

		assert.ErrorIs(t, c.Restore(bad), cartridge.ErrStateMismatch, "bank %d", bank)
		after, err := c.Snapshot()
		require.NoError(t, err)
		assert.Equal(t, before, after, "bank %d", bank)
		assert.NotPanics(t, func() { _ = c.Frame() })
	}
}

func TestFromJSON_BankOutOfRange_ShouldFail(t *testing.T) {
	c := newUxROMConsole(t)
	s, err := c.Snapshot()
	require.NoError(t, err)
	s.Mapper.PRGBank = -1
	data, err := json.Marshal(s)
	require.NoError(t, err)

	assert.ErrorIs(t, c.FromJSON(data), cartridge.ErrStateMismatch)
	assert.NotPanics(t, func() { _ = c.Frame() })
}

func TestRestore_InvalidPart_ShouldLeaveConsoleUntouched(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *Snapshot)
		want   error
	}{
		{"PPU OAM", func(s *Snapshot) { s.PPU.OAM = s.PPU.OAM[:10] }, ppu.ErrBadState},
		{"PPU position", func(s *Snapshot) { s.PPU.Dot = ppu.DotsPerScanline }, ppu.ErrBadState},
		{"PPU version", func(s *Snapshot) { s.PPU.Version++ }, ppu.ErrBadState},
		{"CPU version", func(s *Snapshot) { s.CPU.Registers.Version++ }, cpu.ErrStateVersion},
		{"work RAM", func(s *Snapshot) { s.CPU.RAM = s.CPU.RAM[:16] }, nil},
		{"mapper SRAM", func(s *Snapshot) { s.Mapper.SRAM = nil }, cartridge.ErrStateMismatch},
		{"ROM", func(s *Snapshot) { s.ROM = []byte("junk") }, ErrInvalidImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := newLoadedConsole(t, DefaultConfig())
			runFrames(t, source, 2)
			s, err := source.Snapshot()
			require.NoError(t, err)
			tt.mutate(s)

			target := newUxROMConsole(t)
			before, err := target.Snapshot()
			require.NoError(t, err)

			err = target.Restore(s)
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}

			assert.Equal(t, "UxROM", target.MapperName())
			after, err := target.Snapshot()
			require.NoError(t, err)
			assert.Equal(t, before, after)
		})
	}
}

func TestFromJSON_ShouldRejectGarbage(t *testing.T) {
	c, err := New(DefaultConfig())
	require.NoError(t, err)

	err = c.FromJSON([]byte("{not json"))

	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrSnapshotVersion))
	assert.False(t, c.Loaded())
}

func TestSetButton_ShouldReachControllerPort(t *testing.T) {
	c := newLoadedConsole(t, DefaultConfig())
	bus := c.bus.(*memory.Memory)

	require.NoError(t, c.SetButton(1, input.ButtonStart, true))
	bus.Write(0x4016, 1)
	bus.Write(0x4016, 0)

	var bits []uint8
	for i := 0; i < 4; i++ {
		bits = append(bits, bus.Read(0x4016)&0x01)
	}
	assert.Equal(t, []uint8{0, 0, 0, 1}, bits)

	assert.ErrorIs(t, c.SetButton(3, input.ButtonA, true), ErrInvalidConfig)
}
