package console

import (
	"nesframe/internal/cartridge"
	"nesframe/internal/cpu"
	"nesframe/internal/memory"
	"nesframe/internal/ppu"
)

// fakeCPU replays a cycle script.
type fakeCPU struct {
	script []int
	next   int
	stall  int

	emulated []int
	resets   int
}

func (f *fakeCPU) Emulate() int {
	n := f.script[f.next%len(f.script)]
	f.next++
	f.emulated = append(f.emulated, n)
	return n
}

func (f *fakeCPU) StallCycles() int { return f.stall }

func (f *fakeCPU) SetStallCycles(n int) {
	if n < 0 {
		panic("negative stall budget")
	}
	f.stall = n
}

func (f *fakeCPU) Reset()                    { f.resets++ }
func (f *fakeCPU) State() cpu.State          { return cpu.State{Version: cpu.StateVersion} }
func (f *fakeCPU) Restore(s cpu.State) error { return nil }

// fakePPU walks dots and scanlines and raises vertical blank after a
// fixed number of dot advances.
type fakePPU struct {
	dot      int
	scanline int

	advances int
	raiseAt  int
	delay    int

	pending bool
	counter int

	hitX, hitY     int
	spritesVisible bool
	spriteZeroSets int

	frameStarts int
	vblanks     int
	resets      int
	mirroring   cartridge.MirrorMode
	chr         memory.CartridgeInterface
}

func newFakePPU(raiseAt, delay int) *fakePPU {
	return &fakePPU{raiseAt: raiseAt, delay: delay, hitX: -1, hitY: -1}
}

func (f *fakePPU) StartFrame() { f.frameStarts++ }
func (f *fakePPU) Dot() int    { return f.dot }

func (f *fakePPU) SetDot(dot int) {
	if dot < 0 || dot >= ppu.DotsPerScanline {
		panic("dot out of range")
	}
	f.dot = dot
	f.advances++
	if f.advances == f.raiseAt {
		f.pending = true
		f.counter = f.delay
	}
}

func (f *fakePPU) Scanline() int { return f.scanline }

func (f *fakePPU) EndScanline() {
	f.scanline = (f.scanline + 1) % ppu.ScanlinesPerFrame
}

func (f *fakePPU) StartVBlank() { f.vblanks++ }

func (f *fakePPU) SetStatusFlag(flag ppu.StatusFlag, on bool) {
	if flag == ppu.StatusSpriteZeroHit && on {
		f.spriteZeroSets++
	}
}

func (f *fakePPU) SpritesVisible() bool       { return f.spritesVisible }
func (f *fakePPU) SpriteZeroHit() (x, y int)  { return f.hitX, f.hitY }
func (f *fakePPU) VBlankPending() (bool, int) { return f.pending, f.counter }

func (f *fakePPU) TickNMIDelay() bool {
	if !f.pending {
		return false
	}
	f.counter--
	if f.counter > 0 {
		return false
	}
	f.pending = false
	return true
}

func (f *fakePPU) SetMirroring(mode cartridge.MirrorMode)   { f.mirroring = mode }
func (f *fakePPU) AttachCHR(chr memory.CartridgeInterface)  { f.chr = chr }
func (f *fakePPU) SetFrameHandler(handler func(*ppu.Frame)) {}
func (f *fakePPU) Reset()                                   { f.resets++ }
func (f *fakePPU) State() ppu.State                         { return ppu.State{Version: ppu.StateVersion} }
func (f *fakePPU) Restore(s ppu.State) error                { return nil }

type sampleRateCall struct {
	rate      int
	frameRate float64
	restart   bool
}

type fakeAPU struct {
	clocks      []int
	sampleRates []sampleRateCall
	resets      int
}

func (f *fakeAPU) ClockFrameCounter(cpuCycles int) { f.clocks = append(f.clocks, cpuCycles) }

func (f *fakeAPU) SetSampleRate(rate int, frameRate float64, restart bool) {
	f.sampleRates = append(f.sampleRates, sampleRateCall{rate, frameRate, restart})
}

func (f *fakeAPU) SetSampleHandler(handler func(left, right float32)) {}
func (f *fakeAPU) Reset()                                             { f.resets++ }

type fakeBus struct {
	ram    [0x800]uint8
	cart   memory.CartridgeInterface
	resets int
}

func (f *fakeBus) Reset()                                      { f.resets++ }
func (f *fakeBus) SetCartridge(cart memory.CartridgeInterface) { f.cart = cart }
func (f *fakeBus) RAM() []uint8                                { return append([]uint8(nil), f.ram[:]...) }
func (f *fakeBus) LoadRAM(data []uint8) error                  { copy(f.ram[:], data); return nil }

type fakes struct {
	cpu *fakeCPU
	ppu *fakePPU
	apu *fakeAPU
	bus *fakeBus
}

func newFakes(script []int, raiseAt, delay int) fakes {
	return fakes{
		cpu: &fakeCPU{script: script},
		ppu: newFakePPU(raiseAt, delay),
		apu: &fakeAPU{},
		bus: &fakeBus{},
	}
}

func (f fakes) parts() parts {
	return parts{cpu: f.cpu, ppu: f.ppu, apu: f.apu, bus: f.bus}
}
