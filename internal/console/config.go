package console

import (
	"fmt"
	"math"

	"nesframe/internal/ppu"
)

const (
	DefaultFrameRate  = 60.0
	DefaultSampleRate = 44100
)

// Config holds the console options. The zero value of every field selects
// its default, so Config{} is 60 frames per second with sound on.
type Config struct {
	// OnFrame receives each finished picture. The frame is only valid
	// until the callback returns.
	OnFrame func(*ppu.Frame)
	// OnAudioSample receives output samples in [-1, 1].
	OnAudioSample func(left, right float32)
	// OnStatus receives human readable lifecycle messages.
	OnStatus func(string)

	PreferredFrameRate float64
	// DisableSound stops the APU from being clocked; no samples are made.
	DisableSound bool
	SampleRate   int
}

// DefaultConfig returns the defaults: 60 frames per second, sound on at
// 44100 Hz, no callbacks.
func DefaultConfig() Config {
	return Config{
		PreferredFrameRate: DefaultFrameRate,
		SampleRate:         DefaultSampleRate,
	}
}

func (c Config) withDefaults() Config {
	if c.PreferredFrameRate == 0 {
		c.PreferredFrameRate = DefaultFrameRate
	}
	if c.SampleRate == 0 {
		c.SampleRate = DefaultSampleRate
	}
	return c
}

// Validate checks the numeric options.
func (c Config) Validate() error {
	if err := validateFrameRate(c.PreferredFrameRate); err != nil {
		return err
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrInvalidConfig, c.SampleRate)
	}
	return nil
}

func validateFrameRate(rate float64) error {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return fmt.Errorf("%w: frame rate %v", ErrInvalidConfig, rate)
	}
	return nil
}
