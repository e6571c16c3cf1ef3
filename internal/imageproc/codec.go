// Package imageproc provides the pixel-buffer codec of the raster processor: decoding sources into a bounded
// NRGBA raster, encoding rasters back to PNG, data-URL framing and result thumbnails.
package imageproc

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // webp sources from phone galleries
)

// DefaultMaxSide - longest side of a raster handed to segmentation
const DefaultMaxSide = 1024

// Decode turns encoded image bytes into an RGBA raster whose longest side is at most maxSide.
// Orientation from EXIF is applied before measuring.
func Decode(data []byte, maxSide int) (*image.NRGBA, error) {
	if len(data) == 0 {
		return nil, errors.New("empty image data provided to Decode")
	}
	if maxSide <= 0 {
		maxSide = DefaultMaxSide
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to DEcode source image: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, errors.New("source image has no pixels")
	}

	return FitWithin(imaging.Clone(img), maxSide), nil
}

// EncodePNG encodes the raster losslessly, alpha channel included
func EncodePNG(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, errors.New("nil image provided to EncodePNG")
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to ENcode result image: %w", err)
	}
	return buf.Bytes(), nil
}
