package graphics

import (
	"bytes"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWritePNG_ShouldScaleWithNearestNeighbour(t *testing.T) {
	frame := solidFrame(0x000000)
	frame[0] = 0xFF8000
	frame[255] = 0x00FF00

	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, frame, 3))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 768, img.Bounds().Dx())
	assert.Equal(t, 720, img.Bounds().Dy())

	orange := color.RGBAModel.Convert(color.RGBA{0xFF, 0x80, 0x00, 0xFF})
	assert.Equal(t, orange, color.RGBAModel.Convert(img.At(0, 0)))
	assert.Equal(t, orange, color.RGBAModel.Convert(img.At(2, 2)))
	assert.Equal(t, color.RGBAModel.Convert(color.Black), color.RGBAModel.Convert(img.At(3, 0)))
	assert.Equal(t, color.RGBAModel.Convert(color.RGBA{0, 0xFF, 0, 0xFF}), color.RGBAModel.Convert(img.At(767, 2)))
}

func TestWritePNG_ShouldRejectInvalidScale(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, WritePNG(&buf, solidFrame(0), 0))
	assert.Zero(t, buf.Len())
}

func TestSaveScreenshot_ShouldWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shot.png")
	require.NoError(t, SaveScreenshot(path, solidFrame(0x123456), 1))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 256, img.Bounds().Dx())
	r, g, b, _ := img.At(100, 100).RGBA()
	assert.Equal(t, []uint32{0x12, 0x34, 0x56}, []uint32{r >> 8, g >> 8, b >> 8})
}

func TestSaveScreenshot_ShouldFailForMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "shot.png")
	assert.Error(t, SaveScreenshot(path, solidFrame(0), 1))
}
