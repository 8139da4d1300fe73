package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"nesframe/internal/console"
	"nesframe/internal/graphics"
	"nesframe/internal/ppu"
)

// Application represents the main NES emulator application
type Application struct {
	console  *console.Console
	config   *Config
	emulator *Emulator
	states   *StateManager

	graphicsBackend graphics.Backend
	window          graphics.Window
	videoProcessor  *graphics.VideoProcessor
	headless        bool

	// frame is the last picture the console delivered; display holds it
	// after video processing.
	frame      ppu.Frame
	display    ppu.Frame
	frameReady bool

	audio    *AudioOutput
	recorder *WAVRecorder

	running   atomic.Bool
	paused    bool
	romPath   string
	status    string
	slot      int
	startTime time.Time
}

// ApplicationError represents application-specific errors
type ApplicationError struct {
	Component string
	Operation string
	Err       error
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("application %s error during %s: %v", e.Component, e.Operation, e.Err)
}

func (e *ApplicationError) Unwrap() error {
	return e.Err
}

// NewApplication creates a windowed application from a config file.
func NewApplication(configPath string) (*Application, error) {
	return NewApplicationWithMode(configPath, false)
}

// NewApplicationWithMode loads configPath (created with defaults if
// missing) and builds the application. headless forces the headless
// backend and disables audio playback.
func NewApplicationWithMode(configPath string, headless bool) (*Application, error) {
	cfg := NewConfig()
	if configPath != "" {
		if err := cfg.LoadFromFile(configPath); err != nil {
			return nil, &ApplicationError{Component: "config", Operation: "load", Err: err}
		}
	}
	return NewApplicationWithConfig(cfg, headless)
}

// NewApplicationWithConfig builds the application from cfg.
func NewApplicationWithConfig(cfg *Config, headless bool) (*Application, error) {
	if err := cfg.validate(); err != nil {
		return nil, &ApplicationError{Component: "config", Operation: "validate", Err: err}
	}
	if err := cfg.CreateDirectories(); err != nil {
		return nil, &ApplicationError{Component: "config", Operation: "create directories", Err: err}
	}

	app := &Application{
		config:    cfg,
		headless:  headless,
		startTime: time.Now(),
	}

	ccfg := cfg.ToConsoleConfig()
	ccfg.OnFrame = app.onFrame
	ccfg.OnAudioSample = app.onAudioSample
	ccfg.OnStatus = app.onStatus
	c, err := console.New(ccfg)
	if err != nil {
		return nil, &ApplicationError{Component: "console", Operation: "create", Err: err}
	}
	app.console = c
	app.emulator = NewEmulator(c, app.present)

	app.states, err = NewStateManager(cfg.Paths.SaveStates, cfg.Emulation.SaveStateSlots)
	if err != nil {
		return nil, &ApplicationError{Component: "states", Operation: "create", Err: err}
	}

	if err := app.initializeGraphicsBackend(); err != nil {
		return nil, &ApplicationError{Component: "graphics", Operation: "initialize", Err: err}
	}
	app.videoProcessor = graphics.NewVideoProcessor(cfg.Video.Brightness, cfg.Video.Contrast, cfg.Video.Saturation)

	if !headless && cfg.Audio.Enabled && cfg.Emulation.EnableSound {
		latency := time.Duration(cfg.Audio.Latency) * time.Millisecond
		out, err := NewAudioOutput(cfg.Audio.SampleRate, latency, cfg.Audio.Volume)
		if err != nil {
			glog.Warningf("[APP] audio disabled: %v", err)
		} else {
			app.audio = out
		}
	}

	return app, nil
}

func (app *Application) initializeGraphicsBackend() error {
	backendType := graphics.BackendType(app.config.Video.Backend)
	if app.headless {
		backendType = graphics.BackendHeadless
	}

	gcfg, err := app.config.GraphicsConfig(app.headless)
	if err != nil {
		return err
	}

	app.graphicsBackend, err = graphics.CreateBackend(backendType)
	if err != nil {
		return err
	}
	if err := app.graphicsBackend.Initialize(gcfg); err != nil {
		if backendType != graphics.BackendEbitengine {
			return err
		}
		// No display available: carry on headless.
		glog.Warningf("[APP] %s backend failed (%v), falling back to headless", backendType, err)
		app.headless = true
		gcfg.Headless = true
		app.graphicsBackend = graphics.NewHeadlessBackend()
		if err := app.graphicsBackend.Initialize(gcfg); err != nil {
			return err
		}
	}

	app.window, err = app.graphicsBackend.CreateWindow(gcfg.WindowTitle, gcfg.WindowWidth, gcfg.WindowHeight)
	if err != nil {
		return fmt.Errorf("create window: %w", err)
	}
	glog.V(1).Infof("[APP] using %s backend", app.graphicsBackend.GetName())
	return nil
}

// LoadROM loads an iNES file and starts emulating it.
func (app *Application) LoadROM(romPath string) error {
	data, err := os.ReadFile(romPath)
	if err != nil {
		return &ApplicationError{Component: "cartridge", Operation: "read ROM", Err: err}
	}
	if err := app.console.LoadROM(data); err != nil {
		return &ApplicationError{Component: "cartridge", Operation: "load ROM", Err: err}
	}

	app.romPath = romPath
	app.states.SetROM(romPath, data)
	app.window.SetTitle("nesframe - " + filepath.Base(romPath))

	app.emulator.Reset()
	app.emulator.Start()
	glog.Infof("[APP] loaded %s (%s)", romPath, app.console.MapperName())
	return nil
}

// Run drives the emulator until the window closes or Stop is called.
func (app *Application) Run() error {
	if !app.console.Loaded() {
		return &ApplicationError{Component: "emulator", Operation: "run", Err: console.ErrNotLoaded}
	}
	app.running.Store(true)

	if w, ok := graphics.AsEbitengineWindow(app.window); ok {
		w.SetEmulatorUpdateFunc(app.tick)
		return w.Run()
	}

	ticker := time.NewTicker(app.console.FrameInterval())
	defer ticker.Stop()
	for app.running.Load() {
		if err := app.tick(); err != nil {
			return err
		}
		<-ticker.C
	}
	return nil
}

// RunFrames runs n frames as fast as possible, for headless use.
func (app *Application) RunFrames(n int) error {
	if !app.console.Loaded() {
		return &ApplicationError{Component: "emulator", Operation: "run", Err: console.ErrNotLoaded}
	}
	if err := app.emulator.RunFrames(n); err != nil {
		return &ApplicationError{Component: "emulator", Operation: "run frames", Err: err}
	}
	return nil
}

// tick is one pass of the host loop: input, then the frames due. An
// emulation error stops the loop and closes the window.
func (app *Application) tick() error {
	for _, event := range app.window.PollEvents() {
		app.handleEvent(event)
	}

	var err error
	if !app.paused {
		if uerr := app.emulator.Update(); uerr != nil {
			app.Stop()
			err = &ApplicationError{Component: "emulator", Operation: "update", Err: uerr}
		}
	}

	if app.window.ShouldClose() {
		app.Stop()
	}
	if !app.running.Load() {
		app.window.Cleanup()
	}
	return err
}

func (app *Application) handleEvent(event graphics.InputEvent) {
	switch event.Type {
	case graphics.InputEventTypeQuit:
		app.Stop()
	case graphics.InputEventTypeButton:
		if err := app.console.SetButton(event.Player, event.Button, event.Pressed); err != nil {
			glog.Warningf("[APP] %v", err)
		}
	case graphics.InputEventTypeKey:
		if event.Pressed {
			app.handleHotkey(event.Key)
		}
	}
}

// handleHotkey runs the function key commands:
// F1 reset, F2 pause, F5 save, F6/F7 pick slot, F8 load, F12 screenshot.
func (app *Application) handleHotkey(key graphics.Key) {
	var err error
	switch key {
	case graphics.KeyF1:
		app.Reset()
	case graphics.KeyF2:
		app.TogglePause()
	case graphics.KeyF5:
		err = app.SaveState(app.slot)
	case graphics.KeyF6:
		app.SelectSlot(app.slot - 1)
	case graphics.KeyF7:
		app.SelectSlot(app.slot + 1)
	case graphics.KeyF8:
		err = app.LoadState(app.slot)
	case graphics.KeyF12:
		_, err = app.Screenshot()
	}
	if err != nil {
		glog.Warningf("[APP] %v", err)
	}
}

// onFrame copies the console's frame; the pointer is only valid during
// the callback.
func (app *Application) onFrame(frame *ppu.Frame) {
	app.frame = *frame
	app.frameReady = true
}

func (app *Application) onAudioSample(left, right float32) {
	if app.audio != nil {
		app.audio.Push(left, right)
	}
	if app.recorder != nil {
		app.recorder.Push(left, right)
	}
}

func (app *Application) onStatus(msg string) {
	app.status = msg
	glog.V(1).Infof("[CONSOLE] %s", msg)
}

// present sends the last delivered frame to the window.
func (app *Application) present() {
	if !app.frameReady {
		return
	}
	app.frameReady = false
	app.videoProcessor.Process(&app.display, &app.frame)
	if err := app.window.RenderFrame(&app.display); err != nil {
		glog.Errorf("[APP] render: %v", err)
	}
}

// Stop ends Run. It may be called from any goroutine.
func (app *Application) Stop() {
	app.running.Store(false)
}

// TogglePause toggles pause state
func (app *Application) TogglePause() {
	app.paused = !app.paused
	if !app.paused {
		app.emulator.Start()
	}
}

// Reset presses the console's reset button.
func (app *Application) Reset() {
	app.console.Reset()
	glog.Info("[APP] reset")
}

// SelectSlot picks the save slot used by the save and load hotkeys.
func (app *Application) SelectSlot(slot int) {
	n := app.states.GetMaxSlots()
	app.slot = (slot%n + n) % n
	glog.Infof("[APP] save slot %d", app.slot)
}

// SaveState saves the console to a slot.
func (app *Application) SaveState(slot int) error {
	if !app.console.Loaded() {
		return fmt.Errorf("save state: %w", console.ErrNotLoaded)
	}
	return app.states.SaveState(app.console, slot)
}

// LoadState restores the console from a slot.
func (app *Application) LoadState(slot int) error {
	if !app.console.Loaded() {
		return fmt.Errorf("load state: %w", console.ErrNotLoaded)
	}
	return app.states.LoadState(app.console, slot)
}

// ExportState writes the console state to path.
func (app *Application) ExportState(path string) error {
	if !app.console.Loaded() {
		return fmt.Errorf("export state: %w", console.ErrNotLoaded)
	}
	return app.states.ExportState(app.console, path)
}

// ImportState restores the console from a file written by ExportState.
func (app *Application) ImportState(path string) error {
	if !app.console.Loaded() {
		return fmt.Errorf("import state: %w", console.ErrNotLoaded)
	}
	return app.states.ImportState(app.console, path)
}

// Screenshot saves the last frame as PNG in the screenshots directory and
// returns its path.
func (app *Application) Screenshot() (string, error) {
	name := strings.TrimSuffix(filepath.Base(app.romPath), filepath.Ext(app.romPath))
	if name == "" || name == "." {
		name = "nesframe"
	}
	path := filepath.Join(app.config.Paths.Screenshots,
		fmt.Sprintf("%s_%s.png", name, time.Now().Format("20060102_150405.000")))
	if err := graphics.SaveScreenshot(path, &app.display, app.config.Video.ScreenshotScale); err != nil {
		return "", err
	}
	glog.Infof("[APP] screenshot %s", path)
	return path, nil
}

// StartRecording writes the sound output to a WAV file until
// StopRecording.
func (app *Application) StartRecording(path string) error {
	if !app.config.Emulation.EnableSound {
		return errors.New("start recording: sound emulation is disabled")
	}
	if app.recorder != nil {
		return errors.New("start recording: already recording")
	}
	r, err := NewWAVRecorder(path, app.config.Audio.SampleRate)
	if err != nil {
		return err
	}
	app.recorder = r
	return nil
}

// StopRecording finishes the current recording, if any.
func (app *Application) StopRecording() error {
	if app.recorder == nil {
		return nil
	}
	err := app.recorder.Close()
	app.recorder = nil
	return err
}

// IsRunning returns whether the application is running
func (app *Application) IsRunning() bool {
	return app.running.Load()
}

// IsPaused returns whether the emulator is paused
func (app *Application) IsPaused() bool {
	return app.paused
}

// Status is the console's most recent status message.
func (app *Application) Status() string {
	return app.status
}

// Console returns the emulated console.
func (app *Application) Console() *console.Console {
	return app.console
}

// Emulator returns the frame pacer.
func (app *Application) Emulator() *Emulator {
	return app.emulator
}

// Window returns the output window.
func (app *Application) Window() graphics.Window {
	return app.window
}

// GetROMPath returns the currently loaded ROM path
func (app *Application) GetROMPath() string {
	return app.romPath
}

// GetConfig returns the application configuration
func (app *Application) GetConfig() *Config {
	return app.config
}

// GetUptime returns the application uptime
func (app *Application) GetUptime() time.Duration {
	return time.Since(app.startTime)
}

// Cleanup releases all resources and shuts down the application
func (app *Application) Cleanup() error {
	var errs []error
	if err := app.StopRecording(); err != nil {
		errs = append(errs, fmt.Errorf("recorder: %w", err))
	}
	if app.audio != nil {
		if err := app.audio.Close(); err != nil {
			errs = append(errs, fmt.Errorf("audio: %w", err))
		}
		app.audio = nil
	}
	if app.window != nil {
		if err := app.window.Cleanup(); err != nil {
			errs = append(errs, fmt.Errorf("window: %w", err))
		}
	}
	if app.graphicsBackend != nil {
		if err := app.graphicsBackend.Cleanup(); err != nil {
			errs = append(errs, fmt.Errorf("graphics backend: %w", err))
		}
	}

	stats := app.emulator.GetPerformanceStats()
	glog.Infof("[APP] %d frames, %d dropped, uptime %v", stats.FrameCount, stats.DroppedFrames, app.GetUptime().Round(time.Second))
	return errors.Join(errs...)
}
