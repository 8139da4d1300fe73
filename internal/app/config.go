// Package app is the host around the console: it loads configuration and
// ROM files, paces frames, routes pictures and sound to the output
// backends and manages save states.
package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"nesframe/internal/console"
	"nesframe/internal/graphics"
	"nesframe/internal/input"
)

// Config holds all application configuration
type Config struct {
	Window    WindowConfig    `json:"window"`
	Video     VideoConfig     `json:"video"`
	Audio     AudioConfig     `json:"audio"`
	Input     InputConfig     `json:"input"`
	Emulation EmulationConfig `json:"emulation"`
	Debug     DebugConfig     `json:"debug"`
	Paths     PathsConfig     `json:"paths"`

	configPath string
	loaded     bool
}

// WindowConfig contains window-related configuration
type WindowConfig struct {
	Width      int  `json:"width"`
	Height     int  `json:"height"`
	Fullscreen bool `json:"fullscreen"`
	Scale      int  `json:"scale"` // NES resolution multiplier
}

// VideoConfig contains video rendering configuration
type VideoConfig struct {
	VSync      bool    `json:"vsync"`
	Filter     string  `json:"filter"`  // "nearest", "linear"
	Backend    string  `json:"backend"` // "ebitengine", "headless", "terminal"
	Brightness float32 `json:"brightness"`
	Contrast   float32 `json:"contrast"`
	Saturation float32 `json:"saturation"`

	// ScreenshotScale enlarges PNG screenshots.
	ScreenshotScale int `json:"screenshot_scale"`
}

// AudioConfig contains audio configuration
type AudioConfig struct {
	Enabled    bool    `json:"enabled"`
	SampleRate int     `json:"sample_rate"`
	Volume     float64 `json:"volume"`
	Latency    int     `json:"latency"` // Target latency in milliseconds
}

// InputConfig contains input configuration
type InputConfig struct {
	Player1Keys KeyMapping `json:"player1_keys"`
	Player2Keys KeyMapping `json:"player2_keys"`
}

// KeyMapping represents keyboard key mappings for NES controller
type KeyMapping struct {
	Up     string `json:"up"`
	Down   string `json:"down"`
	Left   string `json:"left"`
	Right  string `json:"right"`
	A      string `json:"a"`
	B      string `json:"b"`
	Start  string `json:"start"`
	Select string `json:"select"`
}

// EmulationConfig contains emulation-specific settings
type EmulationConfig struct {
	FrameRate      float64 `json:"frame_rate"`
	EnableSound    bool    `json:"enable_sound"`
	SaveStateSlots int     `json:"save_state_slots"`
}

// DebugConfig contains debugging and development options
type DebugConfig struct {
	ShowFPS bool `json:"show_fps"`
	// DumpEvery writes every n-th frame as PPM in headless mode.
	DumpEvery int `json:"dump_every"`
}

// PathsConfig contains file and directory paths
type PathsConfig struct {
	SaveStates  string `json:"save_states"`
	Screenshots string `json:"screenshots"`
	Recordings  string `json:"recordings"`
	FrameDumps  string `json:"frame_dumps"`
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		Window: WindowConfig{
			Width:  512,
			Height: 480,
			Scale:  2,
		},
		Video: VideoConfig{
			VSync:           true,
			Filter:          "nearest",
			Backend:         string(graphics.BackendEbitengine),
			Brightness:      1.0,
			Contrast:        1.0,
			Saturation:      1.0,
			ScreenshotScale: 2,
		},
		Audio: AudioConfig{
			Enabled:    true,
			SampleRate: console.DefaultSampleRate,
			Volume:     0.8,
			Latency:    50,
		},
		Input: InputConfig{
			Player1Keys: KeyMapping{
				Up:     "W",
				Down:   "S",
				Left:   "A",
				Right:  "D",
				A:      "J",
				B:      "K",
				Start:  "Return",
				Select: "Space",
			},
			Player2Keys: KeyMapping{
				Up:     "Up",
				Down:   "Down",
				Left:   "Left",
				Right:  "Right",
				A:      "N",
				B:      "M",
				Start:  "RShift",
				Select: "RCtrl",
			},
		},
		Emulation: EmulationConfig{
			FrameRate:      console.DefaultFrameRate,
			EnableSound:    true,
			SaveStateSlots: 10,
		},
		Paths: PathsConfig{
			SaveStates:  "./states",
			Screenshots: "./screenshots",
			Recordings:  "./recordings",
			FrameDumps:  "./frames",
		},
	}
}

// LoadFromFile loads configuration from a JSON file. A missing file is
// created with the current values.
func (c *Config) LoadFromFile(path string) error {
	c.configPath = path

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return c.SaveToFile(path)
	}
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if err := c.validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	c.loaded = true
	return nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	c.configPath = path
	return nil
}

// Save saves the configuration to the current config file
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.New("no config file path set")
	}
	return c.SaveToFile(c.configPath)
}

// validate rejects unusable values and resets out of range ones to their
// defaults.
func (c *Config) validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return &ConfigError{
			Field: "window",
			Value: fmt.Sprintf("%dx%d", c.Window.Width, c.Window.Height),
			Err:   errors.New("dimensions must be positive"),
		}
	}
	if c.Window.Scale <= 0 {
		c.Window.Scale = 1
	}

	switch graphics.BackendType(c.Video.Backend) {
	case graphics.BackendEbitengine, graphics.BackendHeadless, graphics.BackendTerminal:
	default:
		return &ConfigError{Field: "video.backend", Value: c.Video.Backend, Err: errors.New("unknown backend")}
	}
	if c.Video.Brightness < 0.1 || c.Video.Brightness > 3.0 {
		c.Video.Brightness = 1.0
	}
	if c.Video.Contrast < 0.1 || c.Video.Contrast > 3.0 {
		c.Video.Contrast = 1.0
	}
	if c.Video.Saturation < 0.0 || c.Video.Saturation > 3.0 {
		c.Video.Saturation = 1.0
	}
	if c.Video.ScreenshotScale <= 0 {
		c.Video.ScreenshotScale = 1
	}

	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = console.DefaultSampleRate
	}
	if c.Audio.Volume < 0.0 || c.Audio.Volume > 1.0 {
		c.Audio.Volume = 0.8
	}
	if c.Audio.Latency <= 0 {
		c.Audio.Latency = 50
	}

	if !(c.Emulation.FrameRate > 0) || math.IsInf(c.Emulation.FrameRate, 0) {
		c.Emulation.FrameRate = console.DefaultFrameRate
	}
	if c.Emulation.SaveStateSlots <= 0 {
		c.Emulation.SaveStateSlots = 10
	}

	if c.Debug.DumpEvery < 0 {
		c.Debug.DumpEvery = 0
	}

	if _, err := c.KeyMap(); err != nil {
		return err
	}
	return nil
}

// CreateDirectories creates the output directories named in Paths.
func (c *Config) CreateDirectories() error {
	for _, dir := range []string{c.Paths.SaveStates, c.Paths.Screenshots, c.Paths.Recordings} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// GetWindowResolution returns the window resolution based on scale
func (c *Config) GetWindowResolution() (int, int) {
	return 256 * c.Window.Scale, 240 * c.Window.Scale
}

// IsLoaded returns whether the configuration was loaded from file
func (c *Config) IsLoaded() bool {
	return c.loaded
}

// GetConfigPath returns the path to the config file
func (c *Config) GetConfigPath() string {
	return c.configPath
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// ToConsoleConfig maps the emulation and audio sections onto a console
// configuration. Callbacks are left for the caller to set.
func (c *Config) ToConsoleConfig() console.Config {
	cfg := console.DefaultConfig()
	cfg.PreferredFrameRate = c.Emulation.FrameRate
	cfg.SampleRate = c.Audio.SampleRate
	cfg.DisableSound = !c.Emulation.EnableSound
	return cfg
}

// KeyMap builds the keyboard bindings for both controllers.
func (c *Config) KeyMap() (graphics.KeyMap, error) {
	m := graphics.KeyMap{}
	for player, mapping := range map[int]KeyMapping{1: c.Input.Player1Keys, 2: c.Input.Player2Keys} {
		for button, name := range mapping.bindings() {
			if name == "" {
				continue
			}
			key, err := graphics.ParseKey(name)
			if err != nil {
				return nil, &ConfigError{
					Field: fmt.Sprintf("input.player%d_keys.%s", player, button),
					Value: name,
					Err:   err,
				}
			}
			if prev, ok := m[key]; ok {
				return nil, &ConfigError{
					Field: fmt.Sprintf("input.player%d_keys.%s", player, button),
					Value: name,
					Err:   fmt.Errorf("already bound to player %d %s", prev.Player, prev.Button),
				}
			}
			m[key] = graphics.Binding{Player: player, Button: button}
		}
	}
	return m, nil
}

// GraphicsConfig is the backend configuration for this application config.
func (c *Config) GraphicsConfig(headless bool) (graphics.Config, error) {
	keys, err := c.KeyMap()
	if err != nil {
		return graphics.Config{}, err
	}
	width, height := c.Window.Width, c.Window.Height
	if c.Window.Scale > 0 {
		width, height = c.GetWindowResolution()
	}
	return graphics.Config{
		WindowTitle:  "nesframe",
		WindowWidth:  width,
		WindowHeight: height,
		Fullscreen:   c.Window.Fullscreen,
		VSync:        c.Video.VSync,
		Filter:       c.Video.Filter,
		Headless:     headless,
		OutputDir:    c.Paths.FrameDumps,
		DumpEvery:    c.Debug.DumpEvery,
		Keys:         keys,
	}, nil
}

func (k KeyMapping) bindings() map[input.Button]string {
	return map[input.Button]string{
		input.ButtonUp:     k.Up,
		input.ButtonDown:   k.Down,
		input.ButtonLeft:   k.Left,
		input.ButtonRight:  k.Right,
		input.ButtonA:      k.A,
		input.ButtonB:      k.B,
		input.ButtonStart:  k.Start,
		input.ButtonSelect: k.Select,
	}
}

// GetDefaultConfigPath returns the default configuration file path
func GetDefaultConfigPath() string {
	return "./config/nesframe.json"
}

// ConfigError represents configuration-related errors
type ConfigError struct {
	Field string
	Value interface{}
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in field '%s' with value '%v': %v", e.Field, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
