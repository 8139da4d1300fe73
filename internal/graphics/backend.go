// Package graphics provides the output surfaces a console frame can be sent
// to: an Ebitengine window, a headless frame sink and a terminal renderer.
package graphics

import (
	"fmt"
	"strings"

	"nesframe/internal/input"
	"nesframe/internal/ppu"
)

// Backend creates windows of one kind.
type Backend interface {
	// Initialize prepares the backend. It may be called once.
	Initialize(config Config) error

	// CreateWindow opens a rendering surface.
	CreateWindow(title string, width, height int) (Window, error)

	Cleanup() error

	// IsHeadless reports whether the backend never shows a window.
	IsHeadless() bool

	GetName() string
}

// Window is a surface finished frames are drawn on.
type Window interface {
	SetTitle(title string)
	GetSize() (width, height int)

	// ShouldClose reports whether the user asked to quit.
	ShouldClose() bool

	// PollEvents drains the input events seen since the last call.
	PollEvents() []InputEvent

	// RenderFrame draws a finished frame. The frame is copied; the caller
	// may reuse it once RenderFrame returns.
	RenderFrame(frame *ppu.Frame) error

	Cleanup() error
}

// Config contains configuration for graphics backends
type Config struct {
	WindowTitle  string
	WindowWidth  int
	WindowHeight int
	Fullscreen   bool
	VSync        bool
	Filter       string // "nearest", "linear"

	Headless bool

	// OutputDir receives PPM dumps from the headless backend.
	OutputDir string
	// DumpEvery writes every n-th headless frame; 0 disables dumps.
	DumpEvery int

	// Keys maps keyboard keys to controller buttons.
	Keys KeyMap
}

// InputEvent is a key or controller change reported by a window.
type InputEvent struct {
	Type    InputEventType
	Key     Key
	Player  int
	Button  input.Button
	Pressed bool
}

// InputEventType represents the type of input event
type InputEventType int

const (
	InputEventTypeKey InputEventType = iota
	InputEventTypeButton
	InputEventTypeQuit
)

// Key is a keyboard key, independent of the windowing library.
type Key int

const (
	KeyUnknown Key = iota
	KeyEscape
	KeyEnter
	KeySpace
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyRShift
	KeyRCtrl

	KeyA
	KeyB
	KeyC
	KeyD
	KeyE
	KeyF
	KeyG
	KeyH
	KeyI
	KeyJ
	KeyK
	KeyL
	KeyM
	KeyN
	KeyO
	KeyP
	KeyQ
	KeyR
	KeyS
	KeyT
	KeyU
	KeyV
	KeyW
	KeyX
	KeyY
	KeyZ

	Key0
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9

	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyF6
	KeyF7
	KeyF8
	KeyF9
	KeyF10
	KeyF11
	KeyF12
)

var keyNames = map[string]Key{
	"escape": KeyEscape,
	"return": KeyEnter,
	"enter":  KeyEnter,
	"space":  KeySpace,
	"up":     KeyUp,
	"down":   KeyDown,
	"left":   KeyLeft,
	"right":  KeyRight,
	"rshift": KeyRShift,
	"rctrl":  KeyRCtrl,
}

func init() {
	for k := KeyA; k <= KeyZ; k++ {
		keyNames[string(rune('a'+int(k-KeyA)))] = k
	}
	for k := Key0; k <= Key9; k++ {
		keyNames[string(rune('0'+int(k-Key0)))] = k
	}
	for k := KeyF1; k <= KeyF12; k++ {
		keyNames[fmt.Sprintf("f%d", int(k-KeyF1)+1)] = k
	}
}

// ParseKey looks a key up by its configuration name, ignoring case.
func ParseKey(name string) (Key, error) {
	if k, ok := keyNames[strings.ToLower(strings.TrimSpace(name))]; ok {
		return k, nil
	}
	return KeyUnknown, fmt.Errorf("unknown key %q", name)
}

// Binding is a controller button on one player's pad.
type Binding struct {
	Player int
	Button input.Button
}

// KeyMap binds keyboard keys to controller buttons.
type KeyMap map[Key]Binding

// DefaultKeyMap is WASD/J/K for player 1 and the arrows/N/M for player 2.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		KeyW:      {1, input.ButtonUp},
		KeyS:      {1, input.ButtonDown},
		KeyA:      {1, input.ButtonLeft},
		KeyD:      {1, input.ButtonRight},
		KeyJ:      {1, input.ButtonA},
		KeyK:      {1, input.ButtonB},
		KeyEnter:  {1, input.ButtonStart},
		KeySpace:  {1, input.ButtonSelect},
		KeyUp:     {2, input.ButtonUp},
		KeyDown:   {2, input.ButtonDown},
		KeyLeft:   {2, input.ButtonLeft},
		KeyRight:  {2, input.ButtonRight},
		KeyN:      {2, input.ButtonA},
		KeyM:      {2, input.ButtonB},
		KeyRShift: {2, input.ButtonStart},
		KeyRCtrl:  {2, input.ButtonSelect},
	}
}

// Translate turns raw key events into button events where the key is
// bound. Unbound keys pass through unchanged.
func (m KeyMap) Translate(events []InputEvent) []InputEvent {
	out := make([]InputEvent, 0, len(events))
	for _, event := range events {
		if event.Type == InputEventTypeKey {
			if b, ok := m[event.Key]; ok {
				out = append(out, InputEvent{
					Type:    InputEventTypeButton,
					Key:     event.Key,
					Player:  b.Player,
					Button:  b.Button,
					Pressed: event.Pressed,
				})
				continue
			}
		}
		out = append(out, event)
	}
	return out
}

// BackendType represents different graphics backend types
type BackendType string

const (
	BackendEbitengine BackendType = "ebitengine"
	BackendHeadless   BackendType = "headless"
	BackendTerminal   BackendType = "terminal"
)

// CreateBackend creates a graphics backend of the specified type
func CreateBackend(backendType BackendType) (Backend, error) {
	switch backendType {
	case BackendEbitengine:
		return NewEbitengineBackend(), nil
	case BackendHeadless:
		return NewHeadlessBackend(), nil
	case BackendTerminal:
		return NewTerminalBackend(), nil
	default:
		return nil, fmt.Errorf("unknown graphics backend %q", backendType)
	}
}

// AsEbitengineWindow tries to cast a Window to EbitengineWindow
func AsEbitengineWindow(window Window) (*EbitengineWindow, bool) {
	w, ok := window.(*EbitengineWindow)
	return w, ok
}

func unpackRGB(pixel uint32) (r, g, b uint8) {
	return uint8(pixel >> 16), uint8(pixel >> 8), uint8(pixel)
}
