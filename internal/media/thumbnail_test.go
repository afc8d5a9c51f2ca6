package media

import (
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestJPEG(t *testing.T, path string, width, height int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 255), G: uint8(y % 255), B: 128, A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, jpeg.Encode(f, img, nil))
}

func TestInspect_Landscape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "landscape.jpg")
	createTestJPEG(t, path, 800, 400)

	dims, err := Inspect(path)
	require.NoError(t, err)
	assert.Equal(t, 800, dims.Width)
	assert.Equal(t, 400, dims.Height)
	assert.Equal(t, OrientationLandscape, dims.Orientation)
}

func TestInspect_Portrait(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portrait.jpg")
	createTestJPEG(t, path, 400, 800)

	dims, err := Inspect(path)
	require.NoError(t, err)
	assert.Equal(t, OrientationPortrait, dims.Orientation)
}

func TestThumbnail_DownscalesLargerSide(t *testing.T) {
	src := filepath.Join(t.TempDir(), "src.jpg")
	dst := filepath.Join(t.TempDir(), "thumb.jpg")
	createTestJPEG(t, src, 1200, 600)

	require.NoError(t, Thumbnail(src, dst, 300))

	dims, err := Inspect(dst)
	require.NoError(t, err)
	assert.Equal(t, 300, dims.Width)
	assert.Equal(t, 150, dims.Height)
}
