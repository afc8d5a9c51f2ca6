package media

import (
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"os"

	"github.com/nfnt/resize"
	"github.com/rwcarlsen/goexif/exif"
)

// Orientation classifies an image's aspect ratio, used to decide whether a
// photo post needs a thumbnail tuned for the transport's preview surface.
type Orientation int

const (
	OrientationUnknown Orientation = iota
	OrientationPortrait
	OrientationLandscape
	OrientationSquare
)

// Dimensions holds an image's size and derived orientation.
type Dimensions struct {
	Width, Height int
	Orientation   Orientation
}

// Inspect reads an image's dimensions and orientation, consulting EXIF
// orientation metadata when present and falling back to raw width/height
// comparison otherwise. Grounded on media/images.go's checkOrientationWithEXIF.
func Inspect(path string) (Dimensions, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dimensions{}, fmt.Errorf("media: open %s: %w", path, err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return Dimensions{}, fmt.Errorf("media: decode image config: %w", err)
	}

	d := Dimensions{Width: cfg.Width, Height: cfg.Height, Orientation: byDimensions(cfg.Width, cfg.Height)}

	if _, err := f.Seek(0, 0); err != nil {
		return d, nil
	}

	exifData, err := exif.Decode(f)
	if err != nil {
		return d, nil
	}
	tag, err := exifData.Get(exif.Orientation)
	if err != nil {
		return d, nil
	}
	value, err := tag.Int(0)
	if err != nil {
		return d, nil
	}
	if value >= 5 && value <= 8 {
		// EXIF 5-8 are 90-degree rotations: swap the apparent orientation.
		d.Orientation = byDimensions(cfg.Height, cfg.Width)
	}
	return d, nil
}

func byDimensions(w, h int) Orientation {
	switch {
	case w > h:
		return OrientationLandscape
	case h > w:
		return OrientationPortrait
	default:
		return OrientationSquare
	}
}

// Thumbnail writes a downscaled JPEG of the image at srcPath to dstPath,
// preserving aspect ratio with maxDim as the longer side. Grounded on
// media/images.go's ImageRescale, using resize.Lanczos3 for quality.
func Thumbnail(srcPath, dstPath string, maxDim uint) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("media: open source: %w", err)
	}
	defer src.Close()

	img, _, err := image.Decode(src)
	if err != nil {
		return fmt.Errorf("media: decode source: %w", err)
	}

	bounds := img.Bounds()
	var resized image.Image
	if bounds.Dx() >= bounds.Dy() {
		resized = resize.Resize(maxDim, 0, img, resize.Lanczos3)
	} else {
		resized = resize.Resize(0, maxDim, img, resize.Lanczos3)
	}

	dst, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("media: create thumbnail: %w", err)
	}
	defer dst.Close()

	if err := jpeg.Encode(dst, resized, &jpeg.Options{Quality: 85}); err != nil {
		return fmt.Errorf("media: encode thumbnail: %w", err)
	}
	return nil
}
