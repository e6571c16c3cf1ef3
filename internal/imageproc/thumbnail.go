package imageproc

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/disintegration/imaging"
)

// Thumbnail builds a square PNG preview of an already processed result; transparency survives
func Thumbnail(pngData []byte, size int) ([]byte, error) {
	if len(pngData) == 0 {
		return nil, errors.New("empty result provided to Thumbnail")
	}
	if size <= 0 {
		return nil, fmt.Errorf("incorrect thumbnail size %d", size)
	}

	img, err := imaging.Decode(bytes.NewReader(pngData))
	if err != nil {
		return nil, fmt.Errorf("failed to DEcode result in Thumbnail: %w", err)
	}
	thumb := imaging.Thumbnail(img, size, size, imaging.Lanczos)

	return EncodePNG(thumb)
}
