package graphics

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/golang/glog"

	"nesframe/internal/ppu"
)

// HeadlessBackend implements the Backend interface for headless operation
type HeadlessBackend struct {
	initialized bool
	config      Config
}

// HeadlessWindow keeps the last frame and can dump frames to disk as PPM.
type HeadlessWindow struct {
	title      string
	width      int
	height     int
	running    bool
	frameCount int
	last       ppu.Frame

	outputDir string
	dumpEvery int
}

// NewHeadlessBackend creates a new headless graphics backend
func NewHeadlessBackend() Backend {
	return &HeadlessBackend{}
}

// Initialize initializes the headless backend
func (b *HeadlessBackend) Initialize(config Config) error {
	if b.initialized {
		return errors.New("headless backend already initialized")
	}
	if config.DumpEvery < 0 {
		return fmt.Errorf("invalid dump interval %d", config.DumpEvery)
	}
	b.config = config
	b.initialized = true
	return nil
}

// CreateWindow creates a headless "window" (no actual window)
func (b *HeadlessBackend) CreateWindow(title string, width, height int) (Window, error) {
	if !b.initialized {
		return nil, errors.New("backend not initialized")
	}
	if b.config.DumpEvery > 0 && b.config.OutputDir != "" {
		if err := os.MkdirAll(b.config.OutputDir, 0755); err != nil {
			return nil, fmt.Errorf("create frame dump directory: %w", err)
		}
	}

	return &HeadlessWindow{
		title:     title,
		width:     width,
		height:    height,
		running:   true,
		outputDir: b.config.OutputDir,
		dumpEvery: b.config.DumpEvery,
	}, nil
}

// Cleanup releases all headless resources
func (b *HeadlessBackend) Cleanup() error {
	b.initialized = false
	return nil
}

// IsHeadless returns true (this is a headless backend)
func (b *HeadlessBackend) IsHeadless() bool {
	return true
}

// GetName returns the backend name
func (b *HeadlessBackend) GetName() string {
	return "Headless"
}

// SetTitle sets the window title (for logging purposes)
func (w *HeadlessWindow) SetTitle(title string) {
	w.title = title
}

// GetSize returns window dimensions
func (w *HeadlessWindow) GetSize() (width, height int) {
	return w.width, w.height
}

// ShouldClose returns true if window should close
func (w *HeadlessWindow) ShouldClose() bool {
	return !w.running
}

// PollEvents returns empty events list (no input in headless mode)
func (w *HeadlessWindow) PollEvents() []InputEvent {
	return nil
}

// RenderFrame keeps a copy of the frame and dumps it when due.
func (w *HeadlessWindow) RenderFrame(frame *ppu.Frame) error {
	w.frameCount++
	w.last = *frame

	if w.dumpEvery == 0 || w.frameCount%w.dumpEvery != 0 {
		return nil
	}
	path := filepath.Join(w.outputDir, fmt.Sprintf("frame_%05d.ppm", w.frameCount))
	if err := SaveFramePPM(path, frame); err != nil {
		return err
	}
	glog.V(1).Infof("[HEADLESS] wrote %s", path)
	return nil
}

// Cleanup releases window resources
func (w *HeadlessWindow) Cleanup() error {
	w.running = false
	return nil
}

// FrameCount returns the number of frames rendered.
func (w *HeadlessWindow) FrameCount() int {
	return w.frameCount
}

// LastFrame returns a copy of the most recent frame.
func (w *HeadlessWindow) LastFrame() ppu.Frame {
	return w.last
}

// SaveFramePPM writes a frame to path as a plain PPM image.
func SaveFramePPM(path string, frame *ppu.Frame) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WritePPM(f, frame); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// WritePPM encodes a frame as a plain (P3) PPM image.
func WritePPM(out io.Writer, frame *ppu.Frame) error {
	bw := bufio.NewWriter(out)
	fmt.Fprintf(bw, "P3\n%d %d\n255\n", ppu.FrameWidth, ppu.FrameHeight)
	for y := 0; y < ppu.FrameHeight; y++ {
		for x := 0; x < ppu.FrameWidth; x++ {
			r, g, b := unpackRGB(frame[y*ppu.FrameWidth+x])
			fmt.Fprintf(bw, "%d %d %d ", r, g, b)
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}
