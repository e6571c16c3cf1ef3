package segment

// Histogram counts quantized colours. Dense array indexed by ColorKey, so iteration order is the key order.
type Histogram struct {
	counts [keySpace]uint32
	total  int
}

func (h *Histogram) Add(c RGB) {
	h.counts[Quantize(c)]++
	h.total++
}

func (h *Histogram) Total() int {
	return h.total
}

func (h *Histogram) Count(k ColorKey) int {
	return int(h.counts[k])
}

// Dominant returns the most frequent key. Keys are scanned in ascending order and only a strictly greater
// count replaces the best one, so on ties the lowest key wins.
func (h *Histogram) Dominant() (ColorKey, int) {
	var best ColorKey
	var bestCount uint32
	for k, n := range h.counts {
		if n > bestCount {
			best = ColorKey(k)
			bestCount = n
		}
	}
	return best, int(bestCount)
}
