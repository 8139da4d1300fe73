package graphics

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"nesframe/internal/ppu"
)

const (
	defaultTerminalColumns = 80
	defaultTerminalRows    = 30
)

// TerminalBackend renders frames with 24-bit ANSI colour, two pixels per
// character cell.
type TerminalBackend struct {
	initialized bool
	config      Config
}

// TerminalWindow implements the Window interface for terminal rendering
type TerminalWindow struct {
	title   string
	width   int
	height  int
	running bool

	out  io.Writer
	size func() (cols, rows int)
}

// NewTerminalBackend creates a new terminal graphics backend
func NewTerminalBackend() Backend {
	return &TerminalBackend{}
}

// Initialize initializes the terminal backend
func (b *TerminalBackend) Initialize(config Config) error {
	if b.initialized {
		return errors.New("terminal backend already initialized")
	}
	b.config = config
	b.initialized = true
	return nil
}

// CreateWindow creates a terminal "window" on standard output.
func (b *TerminalBackend) CreateWindow(title string, width, height int) (Window, error) {
	if !b.initialized {
		return nil, errors.New("backend not initialized")
	}
	return &TerminalWindow{
		title:   title,
		width:   width,
		height:  height,
		running: true,
		out:     os.Stdout,
		size:    stdoutSize,
	}, nil
}

// Cleanup releases all terminal resources
func (b *TerminalBackend) Cleanup() error {
	b.initialized = false
	return nil
}

// IsHeadless returns false (terminal has basic output)
func (b *TerminalBackend) IsHeadless() bool {
	return false
}

// GetName returns the backend name
func (b *TerminalBackend) GetName() string {
	return "Terminal"
}

func stdoutSize() (cols, rows int) {
	fd := int(os.Stdout.Fd())
	if term.IsTerminal(fd) {
		if w, h, err := term.GetSize(fd); err == nil && w > 0 && h > 1 {
			return w, h
		}
	}
	return defaultTerminalColumns, defaultTerminalRows
}

// SetTitle sets the terminal title.
func (w *TerminalWindow) SetTitle(title string) {
	w.title = title
	fmt.Fprintf(w.out, "\033]0;%s\007", title)
}

// GetSize returns window dimensions
func (w *TerminalWindow) GetSize() (width, height int) {
	return w.width, w.height
}

// ShouldClose returns true if window should close
func (w *TerminalWindow) ShouldClose() bool {
	return !w.running
}

// PollEvents returns empty events list (no input handling for now)
func (w *TerminalWindow) PollEvents() []InputEvent {
	return nil
}

// RenderFrame redraws the frame from the top left corner of the terminal,
// sampling it down to fit. Each cell shows the upper pixel as the
// foreground of a half block and the lower pixel as its background.
func (w *TerminalWindow) RenderFrame(frame *ppu.Frame) error {
	cols, rows := w.size()
	step := terminalStep(cols, rows)

	bw := bufio.NewWriter(w.out)
	bw.WriteString("\033[H")
	for y := 0; y < ppu.FrameHeight; y += 2 * step {
		for x := 0; x < ppu.FrameWidth; x += step {
			tr, tg, tb := unpackRGB(frame[y*ppu.FrameWidth+x])
			br, bg, bb := tr, tg, tb
			if y+step < ppu.FrameHeight {
				br, bg, bb = unpackRGB(frame[(y+step)*ppu.FrameWidth+x])
			}
			fmt.Fprintf(bw, "\033[38;2;%d;%d;%dm\033[48;2;%d;%d;%dm▀", tr, tg, tb, br, bg, bb)
		}
		bw.WriteString("\033[0m\n")
	}
	return bw.Flush()
}

// terminalStep is the pixel stride that fits the frame into cols x rows
// cells, keeping one row free for the cursor.
func terminalStep(cols, rows int) int {
	if cols < 1 {
		cols = 1
	}
	if rows < 2 {
		rows = 2
	}
	sx := (ppu.FrameWidth + cols - 1) / cols
	sy := (ppu.FrameHeight + 2*(rows-1) - 1) / (2 * (rows - 1))
	return max(sx, sy, 1)
}

// Cleanup releases window resources
func (w *TerminalWindow) Cleanup() error {
	w.running = false
	return nil
}
