package segment

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// RGB - full precision 8-bit colour, alpha ignored
type RGB struct {
	R, G, B uint8
}

func (c RGB) Hex() string {
	return colorful.Color{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
	}.Hex()
}

// Distance is the Euclidean distance between two colours in 0-255 channel space
func Distance(a, b RGB) float64 {
	dr := float64(a.R) - float64(b.R)
	dg := float64(a.G) - float64(b.G)
	db := float64(a.B) - float64(b.B)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

// ColorKey packs the top 5 bits of each channel: rrrrrgggggbbbbb
type ColorKey uint16

const (
	keyBits  = 5
	keyShift = 8 - keyBits
	keyMask  = 1<<keyBits - 1
	keySpace = 1 << (3 * keyBits)
)

func Quantize(c RGB) ColorKey {
	return ColorKey(c.R>>keyShift)<<(2*keyBits) |
		ColorKey(c.G>>keyShift)<<keyBits |
		ColorKey(c.B>>keyShift)
}

// RGB returns the representative value of the bucket (low bits zeroed)
func (k ColorKey) RGB() RGB {
	return RGB{
		R: uint8(k>>(2*keyBits)&keyMask) << keyShift,
		G: uint8(k>>keyBits&keyMask) << keyShift,
		B: uint8(k&keyMask) << keyShift,
	}
}
