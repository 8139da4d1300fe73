package app

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nesframe/internal/cartridge"
	"nesframe/internal/console"
	"nesframe/internal/graphics"
	"nesframe/internal/input"
)

func newTestApplication(t *testing.T) (*Application, string) {
	t.Helper()
	dir := t.TempDir()

	cfg := NewConfig()
	cfg.Paths.SaveStates = filepath.Join(dir, "states")
	cfg.Paths.Screenshots = filepath.Join(dir, "screenshots")
	cfg.Paths.Recordings = filepath.Join(dir, "recordings")
	cfg.Paths.FrameDumps = filepath.Join(dir, "frames")

	app, err := NewApplicationWithConfig(cfg, true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Cleanup() })

	romPath := filepath.Join(dir, "nmiloop.nes")
	require.NoError(t, os.WriteFile(romPath, cartridge.NMILoopROM(), 0644))
	return app, romPath
}

func headlessWindow(t *testing.T, app *Application) *graphics.HeadlessWindow {
	t.Helper()
	w, ok := app.Window().(*graphics.HeadlessWindow)
	require.True(t, ok, "headless mode must use the headless window")
	return w
}

func TestApplication_ShouldRunLoadedROM(t *testing.T) {
	app, romPath := newTestApplication(t)
	require.NoError(t, app.LoadROM(romPath))

	assert.Equal(t, romPath, app.GetROMPath())
	assert.Equal(t, "Running: NROM", app.Status())
	assert.True(t, app.Emulator().IsRunning())

	require.NoError(t, app.RunFrames(3))
	assert.Equal(t, uint64(3), app.Emulator().GetFrameCount())
	assert.Equal(t, 3, headlessWindow(t, app).FrameCount())
}

func TestApplication_ShouldRequireROM(t *testing.T) {
	app, _ := newTestApplication(t)

	assert.True(t, errors.Is(app.Run(), console.ErrNotLoaded))
	assert.True(t, errors.Is(app.RunFrames(1), console.ErrNotLoaded))
	assert.True(t, errors.Is(app.SaveState(0), console.ErrNotLoaded))
	assert.True(t, errors.Is(app.LoadState(0), console.ErrNotLoaded))
	assert.False(t, app.IsRunning())
}

func TestApplicationLoadROM_ShouldRejectMissingFile(t *testing.T) {
	app, romPath := newTestApplication(t)

	var appErr *ApplicationError
	err := app.LoadROM(romPath + ".missing")
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "cartridge", appErr.Component)
	assert.False(t, app.Console().Loaded())
}

func TestApplication_ShouldRestoreSavedState(t *testing.T) {
	app, romPath := newTestApplication(t)
	require.NoError(t, app.LoadROM(romPath))
	require.NoError(t, app.RunFrames(3))

	want, err := app.Console().Snapshot()
	require.NoError(t, err)
	require.NoError(t, app.SaveState(1))

	require.NoError(t, app.RunFrames(2))
	require.NoError(t, app.LoadState(1))

	got, err := app.Console().Snapshot()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestApplication_ShouldExportAndImportState(t *testing.T) {
	app, romPath := newTestApplication(t)
	require.NoError(t, app.LoadROM(romPath))
	require.NoError(t, app.RunFrames(2))

	want, err := app.Console().Snapshot()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "run.state")
	require.NoError(t, app.ExportState(path))

	require.NoError(t, app.RunFrames(4))
	require.NoError(t, app.ImportState(path))
	got, err := app.Console().Snapshot()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestApplication_ShouldSaveScreenshot(t *testing.T) {
	app, romPath := newTestApplication(t)
	require.NoError(t, app.LoadROM(romPath))
	require.NoError(t, app.RunFrames(1))

	path, err := app.Screenshot()
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Equal(t, app.GetConfig().Paths.Screenshots, filepath.Dir(path))
	assert.Contains(t, filepath.Base(path), "nmiloop_")
}

func TestApplication_ShouldRecordSound(t *testing.T) {
	app, romPath := newTestApplication(t)
	require.NoError(t, app.LoadROM(romPath))

	path := filepath.Join(app.GetConfig().Paths.Recordings, "run.wav")
	require.NoError(t, app.StartRecording(path))
	assert.Error(t, app.StartRecording(path), "only one recording at a time")

	require.NoError(t, app.RunFrames(2))
	require.NoError(t, app.StopRecording())
	require.NoError(t, app.StopRecording())

	info, err := os.Stat(path)
	require.NoError(t, err)
	// Two frames of samples on top of the 44 byte header.
	assert.Greater(t, info.Size(), int64(1000))
}

func TestApplicationHandleEvent_ShouldStopOnQuit(t *testing.T) {
	app, _ := newTestApplication(t)
	app.running.Store(true)

	app.handleEvent(graphics.InputEvent{Type: graphics.InputEventTypeQuit})
	assert.False(t, app.IsRunning())
}

func TestApplicationHandleEvent_ShouldRunHotkeys(t *testing.T) {
	app, romPath := newTestApplication(t)
	require.NoError(t, app.LoadROM(romPath))

	press := func(k graphics.Key) {
		app.handleEvent(graphics.InputEvent{Type: graphics.InputEventTypeKey, Key: k, Pressed: true})
	}

	press(graphics.KeyF2)
	assert.True(t, app.IsPaused())
	press(graphics.KeyF2)
	assert.False(t, app.IsPaused())

	press(graphics.KeyF7)
	assert.Equal(t, 1, app.slot)
	press(graphics.KeyF6)
	press(graphics.KeyF6)
	assert.Equal(t, app.states.GetMaxSlots()-1, app.slot)

	press(graphics.KeyF5)
	assert.True(t, app.states.HasSaveState(app.slot))

	// Releases are ignored.
	app.handleEvent(graphics.InputEvent{Type: graphics.InputEventTypeKey, Key: graphics.KeyF2})
	assert.False(t, app.IsPaused())
}

func TestApplicationHandleEvent_ShouldForwardButtons(t *testing.T) {
	app, romPath := newTestApplication(t)
	require.NoError(t, app.LoadROM(romPath))

	assert.NotPanics(t, func() {
		app.handleEvent(graphics.InputEvent{
			Type:    graphics.InputEventTypeButton,
			Player:  1,
			Button:  input.ButtonStart,
			Pressed: true,
		})
	})
}

func TestApplicationSelectSlot_ShouldWrap(t *testing.T) {
	app, _ := newTestApplication(t)
	n := app.states.GetMaxSlots()

	app.SelectSlot(n)
	assert.Equal(t, 0, app.slot)
	app.SelectSlot(-1)
	assert.Equal(t, n-1, app.slot)
}

func TestApplicationTick_ShouldCloseWindowOnEmulationError(t *testing.T) {
	app, _ := newTestApplication(t)
	boom := errors.New("boom")
	e, clock := newTestEmulator(&fakeRunner{interval: 10 * time.Millisecond, failAt: 1, err: boom}, nil)
	app.emulator = e
	e.Start()
	app.running.Store(true)

	clock.Advance(20 * time.Millisecond)
	err := app.tick()

	var appErr *ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "update", appErr.Operation)
	assert.ErrorIs(t, err, boom)
	assert.False(t, app.IsRunning())
	assert.True(t, app.Window().ShouldClose())
}
