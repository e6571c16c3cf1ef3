package segment

import "image"

// insetStep - stride of the second, inset ring of samples
const insetStep = 4

// EdgeSeeds picks the border pixels used both to estimate the background and to seed the fill:
// full top/bottom rows, left/right columns without corners, and every 4th pixel of the ring one pixel
// inside the border so a soft or anti-aliased frame still yields background samples.
func EdgeSeeds(w, h int) []image.Point {
	if w <= 0 || h <= 0 {
		return nil
	}

	seeds := make([]image.Point, 0, 2*w+2*h+(w+h)/2+4)

	for x := 0; x < w; x++ {
		seeds = append(seeds, image.Pt(x, 0))
	}
	if h > 1 {
		for x := 0; x < w; x++ {
			seeds = append(seeds, image.Pt(x, h-1))
		}
	}
	for y := 1; y < h-1; y++ {
		seeds = append(seeds, image.Pt(0, y))
		if w > 1 {
			seeds = append(seeds, image.Pt(w-1, y))
		}
	}

	// inset ring exists only when row 1 / column 1 are not border lines themselves
	if h > 2 {
		for _, y := range insetLines(h) {
			for x := 0; x < w; x += insetStep {
				seeds = append(seeds, image.Pt(x, y))
			}
		}
	}
	if w > 2 {
		for _, x := range insetLines(w) {
			for y := 0; y < h; y += insetStep {
				seeds = append(seeds, image.Pt(x, y))
			}
		}
	}

	return seeds
}

// insetLines returns index 1 and n-2, once if they coincide
func insetLines(n int) []int {
	if n-2 == 1 {
		return []int{1}
	}
	return []int{1, n - 2}
}
