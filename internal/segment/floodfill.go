// Package segment strips a uniform background from a raster: border sampling, colour quantization,
// dominant-colour estimation and a 4-connected flood fill that zeroes the alpha of matching pixels.
package segment

import "image"

// Stats describes what one Remove call did
type Stats struct {
	Background RGB
	Seeds      int
	Erased     int
}

// Remove erases the dominant border colour region from img in place
func Remove(img *image.NRGBA, tolerance float64) Stats {
	b := img.Bounds()
	seeds := EdgeSeeds(b.Dx(), b.Dy())
	if len(seeds) == 0 {
		return Stats{}
	}

	bg := DominantColor(img, seeds)
	erased := FloodErase(img, seeds, bg, tolerance)

	return Stats{Background: bg, Seeds: len(seeds), Erased: erased}
}

// DominantColor builds a histogram over the given pixels and returns the representative of its top bucket
func DominantColor(img *image.NRGBA, points []image.Point) RGB {
	hist := &Histogram{}
	for _, p := range points {
		hist.Add(pixelAt(img, p.X, p.Y))
	}
	key, _ := hist.Dominant()
	return key.RGB()
}

// FloodErase grows regions from seeds through pixels within tolerance of bg and sets their alpha to 0.
// Seeds outside tolerance stay unvisited and opaque. A neighbour outside tolerance is marked visited but
// not pushed, so it is examined once and the fill never leaks past it. Returns the number of erased pixels.
func FloodErase(img *image.NRGBA, seeds []image.Point, bg RGB, tolerance float64) int {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return 0
	}

	visited := make([]bool, w*h)
	stack := make([]int, 0, len(seeds))

	matches := func(i int) bool {
		return Distance(pixelAt(img, i%w, i/w), bg) <= tolerance
	}

	for _, s := range seeds {
		if s.X < 0 || s.X >= w || s.Y < 0 || s.Y >= h {
			continue
		}
		i := s.Y*w + s.X
		if visited[i] || !matches(i) {
			continue
		}
		visited[i] = true
		stack = append(stack, i)
	}

	erased := 0
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		x, y := i%w, i/w
		img.Pix[img.PixOffset(b.Min.X+x, b.Min.Y+y)+3] = 0
		erased++

		// 4-connectivity
		if x > 0 {
			stack = visit(stack, visited, i-1, matches)
		}
		if x < w-1 {
			stack = visit(stack, visited, i+1, matches)
		}
		if y > 0 {
			stack = visit(stack, visited, i-w, matches)
		}
		if y < h-1 {
			stack = visit(stack, visited, i+w, matches)
		}
	}

	return erased
}

func visit(stack []int, visited []bool, i int, matches func(int) bool) []int {
	if visited[i] {
		return stack
	}
	visited[i] = true
	if matches(i) {
		stack = append(stack, i)
	}
	return stack
}

// pixelAt reads x,y relative to the raster origin
func pixelAt(img *image.NRGBA, x, y int) RGB {
	b := img.Bounds()
	off := img.PixOffset(b.Min.X+x, b.Min.Y+y)
	return RGB{R: img.Pix[off], G: img.Pix[off+1], B: img.Pix[off+2]}
}
