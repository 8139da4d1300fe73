//go:build !headless
// +build !headless

package graphics

import (
	"errors"
	"image"
	"image/color"

	"github.com/golang/glog"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"nesframe/internal/ppu"
)

// EbitengineBackend implements the Backend interface using Ebitengine
type EbitengineBackend struct {
	initialized bool
	config      Config
}

// EbitengineWindow implements the Window interface for Ebitengine
type EbitengineWindow struct {
	title   string
	width   int
	height  int
	game    *EbitengineGame
	running bool
	events  []InputEvent

	emulatorUpdateFunc func() error
}

// EbitengineGame implements ebiten.Game. Update runs one emulator step per
// tick and Draw scales the last frame into the window.
type EbitengineGame struct {
	window *EbitengineWindow
	keys   KeyMap

	frameImage   *ebiten.Image
	imageBuffer  *image.RGBA
	windowWidth  int
	windowHeight int
}

var ebitenKeys = map[ebiten.Key]Key{
	ebiten.KeyEscape:       KeyEscape,
	ebiten.KeyEnter:        KeyEnter,
	ebiten.KeySpace:        KeySpace,
	ebiten.KeyArrowUp:      KeyUp,
	ebiten.KeyArrowDown:    KeyDown,
	ebiten.KeyArrowLeft:    KeyLeft,
	ebiten.KeyArrowRight:   KeyRight,
	ebiten.KeyShiftRight:   KeyRShift,
	ebiten.KeyControlRight: KeyRCtrl,

	ebiten.KeyA: KeyA, ebiten.KeyB: KeyB, ebiten.KeyC: KeyC, ebiten.KeyD: KeyD,
	ebiten.KeyE: KeyE, ebiten.KeyF: KeyF, ebiten.KeyG: KeyG, ebiten.KeyH: KeyH,
	ebiten.KeyI: KeyI, ebiten.KeyJ: KeyJ, ebiten.KeyK: KeyK, ebiten.KeyL: KeyL,
	ebiten.KeyM: KeyM, ebiten.KeyN: KeyN, ebiten.KeyO: KeyO, ebiten.KeyP: KeyP,
	ebiten.KeyQ: KeyQ, ebiten.KeyR: KeyR, ebiten.KeyS: KeyS, ebiten.KeyT: KeyT,
	ebiten.KeyU: KeyU, ebiten.KeyV: KeyV, ebiten.KeyW: KeyW, ebiten.KeyX: KeyX,
	ebiten.KeyY: KeyY, ebiten.KeyZ: KeyZ,

	ebiten.Key0: Key0, ebiten.Key1: Key1, ebiten.Key2: Key2, ebiten.Key3: Key3,
	ebiten.Key4: Key4, ebiten.Key5: Key5, ebiten.Key6: Key6, ebiten.Key7: Key7,
	ebiten.Key8: Key8, ebiten.Key9: Key9,

	ebiten.KeyF1: KeyF1, ebiten.KeyF2: KeyF2, ebiten.KeyF3: KeyF3, ebiten.KeyF4: KeyF4,
	ebiten.KeyF5: KeyF5, ebiten.KeyF6: KeyF6, ebiten.KeyF7: KeyF7, ebiten.KeyF8: KeyF8,
	ebiten.KeyF9: KeyF9, ebiten.KeyF10: KeyF10, ebiten.KeyF11: KeyF11, ebiten.KeyF12: KeyF12,
}

// NewEbitengineBackend creates a new Ebitengine graphics backend
func NewEbitengineBackend() Backend {
	return &EbitengineBackend{}
}

// Initialize initializes the Ebitengine backend
func (b *EbitengineBackend) Initialize(config Config) error {
	if b.initialized {
		return errors.New("ebitengine backend already initialized")
	}
	if config.Keys == nil {
		config.Keys = DefaultKeyMap()
	}
	b.config = config
	b.initialized = true
	return nil
}

// CreateWindow configures the Ebitengine window. Nothing is shown until Run.
func (b *EbitengineBackend) CreateWindow(title string, width, height int) (Window, error) {
	if !b.initialized {
		return nil, errors.New("backend not initialized")
	}
	if b.config.Headless {
		return nil, errors.New("cannot create window in headless mode")
	}

	game := &EbitengineGame{
		keys:         b.config.Keys,
		frameImage:   ebiten.NewImage(ppu.FrameWidth, ppu.FrameHeight),
		imageBuffer:  image.NewRGBA(image.Rect(0, 0, ppu.FrameWidth, ppu.FrameHeight)),
		windowWidth:  width,
		windowHeight: height,
	}
	window := &EbitengineWindow{
		title:   title,
		width:   width,
		height:  height,
		game:    game,
		running: true,
	}
	game.window = window

	ebiten.SetWindowTitle(title)
	ebiten.SetWindowSize(width, height)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetVsyncEnabled(b.config.VSync)
	ebiten.SetFullscreen(b.config.Fullscreen)
	ebiten.SetScreenFilterEnabled(b.config.Filter == "linear")

	glog.V(1).Infof("[EBITENGINE] window %dx%d vsync=%t", width, height, b.config.VSync)
	return window, nil
}

// Cleanup releases all Ebitengine resources
func (b *EbitengineBackend) Cleanup() error {
	b.initialized = false
	return nil
}

// IsHeadless returns true if running in headless mode
func (b *EbitengineBackend) IsHeadless() bool {
	return b.config.Headless
}

// GetName returns the backend name
func (b *EbitengineBackend) GetName() string {
	return "Ebitengine"
}

// SetTitle sets the window title
func (w *EbitengineWindow) SetTitle(title string) {
	w.title = title
	ebiten.SetWindowTitle(title)
}

// GetSize returns window dimensions
func (w *EbitengineWindow) GetSize() (width, height int) {
	return w.width, w.height
}

// ShouldClose returns true if window should close
func (w *EbitengineWindow) ShouldClose() bool {
	return !w.running
}

// PollEvents processes input events and returns them
func (w *EbitengineWindow) PollEvents() []InputEvent {
	events := w.events
	w.events = nil
	return events
}

// RenderFrame uploads a frame to the texture drawn by the next Draw.
func (w *EbitengineWindow) RenderFrame(frame *ppu.Frame) error {
	if w.game == nil {
		return errors.New("game not initialized")
	}

	pix := w.game.imageBuffer.Pix
	for i, pixel := range frame {
		r, g, b := unpackRGB(pixel)
		pix[i*4] = r
		pix[i*4+1] = g
		pix[i*4+2] = b
		pix[i*4+3] = 0xFF
	}
	w.game.frameImage.WritePixels(pix)
	return nil
}

// Cleanup releases window resources
func (w *EbitengineWindow) Cleanup() error {
	w.running = false
	return nil
}

// Run starts the Ebitengine game loop. It blocks until the window closes.
func (w *EbitengineWindow) Run() error {
	if w.game == nil {
		return errors.New("game not initialized")
	}
	err := ebiten.RunGame(w.game)
	if errors.Is(err, ebiten.Termination) {
		return nil
	}
	return err
}

// SetEmulatorUpdateFunc sets the function called on every Update tick.
func (w *EbitengineWindow) SetEmulatorUpdateFunc(updateFunc func() error) {
	w.emulatorUpdateFunc = updateFunc
}

// Update implements ebiten.Game.Update
func (g *EbitengineGame) Update() error {
	if !g.window.running {
		return ebiten.Termination
	}

	g.processInput()
	return g.window.tick()
}

// tick runs the emulator update. An error closes the window and ends the
// game loop; Run returns it.
func (w *EbitengineWindow) tick() error {
	if w.emulatorUpdateFunc == nil {
		return nil
	}
	if err := w.emulatorUpdateFunc(); err != nil {
		glog.Errorf("[EBITENGINE] emulator update: %v", err)
		w.running = false
		return err
	}
	return nil
}

// Draw implements ebiten.Game.Draw
func (g *EbitengineGame) Draw(screen *ebiten.Image) {
	screen.Fill(color.Black)

	scaleX := float64(g.windowWidth) / ppu.FrameWidth
	scaleY := float64(g.windowHeight) / ppu.FrameHeight
	scale := min(scaleX, scaleY)

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(scale, scale)
	op.GeoM.Translate(
		(float64(g.windowWidth)-ppu.FrameWidth*scale)/2,
		(float64(g.windowHeight)-ppu.FrameHeight*scale)/2,
	)
	screen.DrawImage(g.frameImage, op)
}

// Layout implements ebiten.Game.Layout
func (g *EbitengineGame) Layout(outsideWidth, outsideHeight int) (screenWidth, screenHeight int) {
	g.windowWidth = outsideWidth
	g.windowHeight = outsideHeight
	return outsideWidth, outsideHeight
}

func (g *EbitengineGame) processInput() {
	if ebiten.IsWindowBeingClosed() || inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		g.window.events = append(g.window.events, InputEvent{Type: InputEventTypeQuit, Pressed: true})
	}

	var raw []InputEvent
	for ek, key := range ebitenKeys {
		switch {
		case inpututil.IsKeyJustPressed(ek):
			raw = append(raw, InputEvent{Type: InputEventTypeKey, Key: key, Pressed: true})
		case inpututil.IsKeyJustReleased(ek):
			raw = append(raw, InputEvent{Type: InputEventTypeKey, Key: key, Pressed: false})
		}
	}
	g.window.events = append(g.window.events, g.keys.Translate(raw)...)
}
