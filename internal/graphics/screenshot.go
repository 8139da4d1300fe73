package graphics

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"

	"golang.org/x/image/draw"

	"nesframe/internal/ppu"
)

// FrameImage converts a frame to an RGBA image.
func FrameImage(frame *ppu.Frame) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, ppu.FrameWidth, ppu.FrameHeight))
	for i, pixel := range frame {
		r, g, b := unpackRGB(pixel)
		img.Pix[i*4] = r
		img.Pix[i*4+1] = g
		img.Pix[i*4+2] = b
		img.Pix[i*4+3] = 0xFF
	}
	return img
}

// WritePNG encodes a frame as PNG, enlarged scale times with nearest
// neighbour sampling.
func WritePNG(out io.Writer, frame *ppu.Frame, scale int) error {
	if scale < 1 {
		return fmt.Errorf("invalid screenshot scale %d", scale)
	}

	var img image.Image = FrameImage(frame)
	if scale > 1 {
		dst := image.NewRGBA(image.Rect(0, 0, ppu.FrameWidth*scale, ppu.FrameHeight*scale))
		draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
		img = dst
	}
	return png.Encode(out, img)
}

// SaveScreenshot writes a frame to path as PNG.
func SaveScreenshot(path string, frame *ppu.Frame, scale int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create screenshot: %w", err)
	}
	if err := WritePNG(f, frame, scale); err != nil {
		f.Close()
		return fmt.Errorf("encode screenshot: %w", err)
	}
	return f.Close()
}
