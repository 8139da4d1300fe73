// Package console ties the NES subsystems together. A Console owns the
// CPU, PPU, APU, controllers, CPU bus and the loaded cartridge, runs them
// one frame at a time and handles reset, cartridge loading and save
// states.
//
// A Console is not safe for concurrent use. Callbacks run inside Frame and
// must not call back into the Console.
package console

import (
	"fmt"
	"time"

	"github.com/golang/glog"

	"nesframe/internal/apu"
	"nesframe/internal/cartridge"
	"nesframe/internal/cpu"
	"nesframe/internal/input"
	"nesframe/internal/memory"
	"nesframe/internal/ppu"
)

const statusReady = "Ready to load a ROM."

// Console is a complete NES.
type Console struct {
	cfg Config

	cpu   CPU
	ppu   PPU
	apu   APU
	bus   Bus
	input *input.InputState

	mapper cartridge.Mapper
	rom    []byte

	frameInterval time.Duration

	// FPS measurement window
	now         func() time.Time
	fpsFrames   int
	lastFPSTime time.Time
}

// parts are the subsystems a Console drives.
type parts struct {
	cpu   CPU
	ppu   PPU
	apu   APU
	bus   Bus
	input *input.InputState
}

// New builds a console with the standard NES hardware.
func New(cfg Config) (*Console, error) {
	p := ppu.New()
	a := apu.New()
	in := input.NewInputState()

	bus := memory.New(p, a, nil)
	bus.SetInputSystem(in)

	c := cpu.New(bus)
	bus.SetStaller(c)
	p.SetNMIHandler(c.RequestNMI)
	a.SetIRQHandler(c.RequestIRQ)
	a.SetStallHandler(c.AddStallCycles)
	a.SetMemory(bus)

	return assemble(cfg, parts{cpu: c, ppu: p, apu: a, bus: bus, input: in})
}

func assemble(cfg Config, p parts) (*Console, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if p.input == nil {
		p.input = input.NewInputState()
	}

	c := &Console{
		cfg:   cfg,
		cpu:   p.cpu,
		ppu:   p.ppu,
		apu:   p.apu,
		bus:   p.bus,
		input: p.input,
		now:   time.Now,
	}
	c.frameInterval = intervalFor(cfg.PreferredFrameRate)

	if cfg.OnFrame != nil {
		c.ppu.SetFrameHandler(cfg.OnFrame)
	}
	if cfg.OnAudioSample != nil {
		c.apu.SetSampleHandler(cfg.OnAudioSample)
	}
	c.apu.SetSampleRate(cfg.SampleRate, cfg.PreferredFrameRate, true)

	c.status(statusReady)
	return c, nil
}

// Reset resets every subsystem as the reset button would, and clears the
// FPS window. It is safe to call with no cartridge loaded.
func (c *Console) Reset() {
	if c.mapper != nil {
		c.mapper.Reset()
	}
	c.cpu.Reset()
	c.ppu.Reset()
	c.apu.Reset()
	c.input.Reset()
	c.bus.Reset()

	c.fpsFrames = 0
	c.lastFPSTime = time.Time{}
}

// LoadROM validates an iNES image and, if it is usable, replaces the
// current cartridge with it and resets the console. On error nothing is
// changed.
func (c *Console) LoadROM(data []byte) error {
	mapper, err := newMapper(data)
	if err != nil {
		return fmt.Errorf("load ROM: %w", err)
	}
	mapper.LoadROM()
	c.insert(mapper, data)
	return nil
}

func newMapper(data []byte) (cartridge.Mapper, error) {
	cart, err := cartridge.Load(data)
	if err != nil {
		return nil, err
	}
	return cartridge.NewMapper(cart)
}

// insert resets the console and wires in a prepared mapper.
func (c *Console) insert(mapper cartridge.Mapper, data []byte) {
	c.Reset()
	c.mapper = mapper
	c.bus.SetCartridge(mapper)
	c.ppu.AttachCHR(mapper)
	c.ppu.SetMirroring(mapper.Mirroring())
	c.rom = append([]byte(nil), data...)

	glog.V(1).Infof("[CONSOLE] loaded %d byte image, mapper %s", len(data), mapper.Name())
	c.status("Running: " + mapper.Name())
}

// ReloadROM loads the last successfully loaded image again. It does
// nothing if no image was ever loaded.
func (c *Console) ReloadROM() error {
	if c.rom == nil {
		return nil
	}
	return c.LoadROM(c.rom)
}

// Loaded reports whether a cartridge is inserted.
func (c *Console) Loaded() bool {
	return c.mapper != nil
}

// MapperName returns the board name of the loaded cartridge, or "".
func (c *Console) MapperName() string {
	if c.mapper == nil {
		return ""
	}
	return c.mapper.Name()
}

// SetFramerate changes the rate Frame is expected to be called at and
// retunes the APU to it. Pacing is left to the caller.
func (c *Console) SetFramerate(rate float64) error {
	if err := validateFrameRate(rate); err != nil {
		return err
	}
	c.cfg.PreferredFrameRate = rate
	c.frameInterval = intervalFor(rate)
	c.apu.SetSampleRate(c.cfg.SampleRate, rate, false)
	return nil
}

// Framerate returns the preferred frame rate.
func (c *Console) Framerate() float64 {
	return c.cfg.PreferredFrameRate
}

// FrameInterval is the wall clock time one frame should take.
func (c *Console) FrameInterval() time.Duration {
	return c.frameInterval
}

// FPS returns the frames completed per second since the previous call and
// starts a new window. The first call after construction or Reset has
// nothing to measure and returns false.
func (c *Console) FPS() (float64, bool) {
	now := c.now()
	last := c.lastFPSTime
	frames := c.fpsFrames

	c.lastFPSTime = now
	c.fpsFrames = 0

	if last.IsZero() {
		return 0, false
	}
	elapsed := now.Sub(last).Seconds()
	if elapsed <= 0 {
		return 0, true
	}
	return float64(frames) / elapsed, true
}

// SetButton presses or releases a button on controller player (1 or 2).
func (c *Console) SetButton(player int, button input.Button, pressed bool) error {
	if err := c.input.SetButton(player, button, pressed); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (c *Console) status(msg string) {
	if c.cfg.OnStatus != nil {
		c.cfg.OnStatus(msg)
	}
}

func intervalFor(rate float64) time.Duration {
	return time.Duration(float64(time.Second) / rate)
}
