package app

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
)

const jpegQuality = 90

// saveImage encodes the rendered survey to disk in the configured format.
func saveImage(img *image.RGBA, path string, format ImageFormat) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	switch format {
	case ImageJPEG:
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: jpegQuality})
	default:
		err = png.Encode(f, img)
	}
	if err != nil {
		return fmt.Errorf("encoding %s: %w", format, err)
	}

	return nil
}
