package imageproc

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
)

// FitWithin downscales img so that its longest side is <= maxSide, keeping aspect ratio.
// Smaller images are returned untouched.
func FitWithin(img *image.NRGBA, maxSide int) *image.NRGBA {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	longest := max(w, h)

	if longest <= maxSide {
		return img
	}

	scale := float64(maxSide) / float64(longest)
	newW := max(1, int(math.Round(float64(w)*scale)))
	newH := max(1, int(math.Round(float64(h)*scale)))

	resized := resize.Resize(uint(newW), uint(newH), img, resize.Lanczos3)
	return imaging.Clone(resized)
}
