// Package input implements controller handling for the NES.
package input

import (
	"fmt"
	"strings"

	"github.com/golang/glog"
)

// Button represents NES controller buttons
type Button uint8

const (
	ButtonA Button = 1 << iota
	ButtonB
	ButtonSelect
	ButtonStart
	ButtonUp
	ButtonDown
	ButtonLeft
	ButtonRight
)

var buttonNames = map[string]Button{
	"a":      ButtonA,
	"b":      ButtonB,
	"select": ButtonSelect,
	"start":  ButtonStart,
	"up":     ButtonUp,
	"down":   ButtonDown,
	"left":   ButtonLeft,
	"right":  ButtonRight,
}

// ParseButton maps a button name such as "start" to its Button.
func ParseButton(name string) (Button, error) {
	b, ok := buttonNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown button %q", name)
	}
	return b, nil
}

func (b Button) String() string {
	for name, v := range buttonNames {
		if v == b {
			return name
		}
	}
	return fmt.Sprintf("Button(%d)", uint8(b))
}

// Controller represents a standard NES controller
type Controller struct {
	buttons uint8

	// Serial read state
	shiftRegister uint8
	strobe        bool
	bitPosition   uint8
}

// New creates a new Controller instance
func New() *Controller {
	return &Controller{}
}

// SetButton sets the state of a button
func (c *Controller) SetButton(button Button, pressed bool) {
	if pressed {
		c.buttons |= uint8(button)
	} else {
		c.buttons &^= uint8(button)
	}
}

// SetButtons sets all button states at once, in the order
// A, B, Select, Start, Up, Down, Left, Right.
func (c *Controller) SetButtons(buttons [8]bool) {
	c.buttons = 0
	for i, pressed := range buttons {
		if pressed {
			c.buttons |= 1 << i
		}
	}
}

// IsPressed returns true if the button is currently pressed
func (c *Controller) IsPressed(button Button) bool {
	return c.buttons&uint8(button) != 0
}

// Write handles writes to the strobe register ($4016)
func (c *Controller) Write(value uint8) {
	wasStrobe := c.strobe
	c.strobe = value&1 != 0

	// The shift register is reloaded while strobe is high and latched on
	// the falling edge.
	if c.strobe || wasStrobe {
		c.shiftRegister = c.buttons
		c.bitPosition = 0
	}
}

// Read returns the next button bit in bit 0. After all eight buttons have
// been read a standard controller reports 1.
func (c *Controller) Read() uint8 {
	if c.strobe {
		c.bitPosition = 0
		return c.buttons & 1
	}
	if c.bitPosition >= 8 {
		return 1
	}
	bit := c.shiftRegister & 1
	c.shiftRegister >>= 1
	c.bitPosition++
	return bit
}

// Reset resets the controller state
func (c *Controller) Reset() {
	c.buttons = 0
	c.shiftRegister = 0
	c.strobe = false
	c.bitPosition = 0
}

// InputState represents the two controller ports
type InputState struct {
	Controller1 *Controller
	Controller2 *Controller
}

// NewInputState creates a new input state with two controllers
func NewInputState() *InputState {
	return &InputState{
		Controller1: New(),
		Controller2: New(),
	}
}

// Reset resets all input devices
func (is *InputState) Reset() {
	is.Controller1.Reset()
	is.Controller2.Reset()
}

// Controller returns the controller plugged into port player (1 or 2),
// or nil.
func (is *InputState) Controller(player int) *Controller {
	switch player {
	case 1:
		return is.Controller1
	case 2:
		return is.Controller2
	default:
		return nil
	}
}

// SetButton sets a button on controller player (1 or 2).
func (is *InputState) SetButton(player int, button Button, pressed bool) error {
	c := is.Controller(player)
	if c == nil {
		return fmt.Errorf("no controller port %d", player)
	}
	c.SetButton(button, pressed)
	return nil
}

// Read reads from controller ports
func (is *InputState) Read(address uint16) uint8 {
	switch address {
	case 0x4016:
		return is.Controller1.Read()
	case 0x4017:
		return is.Controller2.Read()
	default:
		return 0
	}
}

// Write writes to controller ports. Both controllers share the strobe line.
func (is *InputState) Write(address uint16, value uint8) {
	if address != 0x4016 {
		glog.V(2).Infof("input: ignored write $%02X to $%04X", value, address)
		return
	}
	is.Controller1.Write(value)
	is.Controller2.Write(value)
}
