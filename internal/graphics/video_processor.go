package graphics

import (
	"nesframe/internal/ppu"
)

// VideoProcessor adjusts brightness, contrast and saturation of frames.
type VideoProcessor struct {
	brightness float32
	contrast   float32
	saturation float32
}

// NewVideoProcessor creates a new video processor
func NewVideoProcessor(brightness, contrast, saturation float32) *VideoProcessor {
	return &VideoProcessor{
		brightness: brightness,
		contrast:   contrast,
		saturation: saturation,
	}
}

// Identity reports whether Process would leave frames unchanged.
func (vp *VideoProcessor) Identity() bool {
	return vp.brightness == 1 && vp.contrast == 1 && vp.saturation == 1
}

// Process writes the adjusted src into dst. dst and src may be the same
// frame.
func (vp *VideoProcessor) Process(dst, src *ppu.Frame) {
	if vp.Identity() {
		if dst != src {
			*dst = *src
		}
		return
	}
	for i, pixel := range src {
		dst[i] = vp.adjust(pixel)
	}
}

func (vp *VideoProcessor) adjust(pixel uint32) uint32 {
	r8, g8, b8 := unpackRGB(pixel)
	r := float32(r8) / 255 * vp.brightness
	g := float32(g8) / 255 * vp.brightness
	b := float32(b8) / 255 * vp.brightness

	r = (r-0.5)*vp.contrast + 0.5
	g = (g-0.5)*vp.contrast + 0.5
	b = (b-0.5)*vp.contrast + 0.5

	if vp.saturation != 1 {
		h, s, l := rgbToHSL(clamp(r, 0, 1), clamp(g, 0, 1), clamp(b, 0, 1))
		r, g, b = hslToRGB(h, clamp(s*vp.saturation, 0, 1), l)
	}

	return uint32(clamp(r, 0, 1)*255+0.5)<<16 |
		uint32(clamp(g, 0, 1)*255+0.5)<<8 |
		uint32(clamp(b, 0, 1)*255+0.5)
}

// SetBrightness updates the brightness value
func (vp *VideoProcessor) SetBrightness(brightness float32) {
	vp.brightness = brightness
}

// SetContrast updates the contrast value
func (vp *VideoProcessor) SetContrast(contrast float32) {
	vp.contrast = contrast
}

// SetSaturation updates the saturation value
func (vp *VideoProcessor) SetSaturation(saturation float32) {
	vp.saturation = saturation
}

func clamp(v, lo, hi float32) float32 {
	return min(max(v, lo), hi)
}

func rgbToHSL(r, g, b float32) (h, s, l float32) {
	hi := max(r, g, b)
	lo := min(r, g, b)
	l = (hi + lo) / 2
	if hi == lo {
		return 0, 0, l
	}

	d := hi - lo
	if l > 0.5 {
		s = d / (2 - hi - lo)
	} else {
		s = d / (hi + lo)
	}

	switch hi {
	case r:
		h = (g - b) / d
		if g < b {
			h += 6
		}
	case g:
		h = (b-r)/d + 2
	default:
		h = (r-g)/d + 4
	}
	return h / 6, s, l
}

func hslToRGB(h, s, l float32) (r, g, b float32) {
	if s == 0 {
		return l, l, l
	}
	var q float32
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q
	return hueToRGB(p, q, h+1.0/3), hueToRGB(p, q, h), hueToRGB(p, q, h-1.0/3)
}

func hueToRGB(p, q, t float32) float32 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6:
		return p + (q-p)*6*t
	case t < 1.0/2:
		return q
	case t < 2.0/3:
		return p + (q-p)*(2.0/3-t)*6
	}
	return p
}
