package market

import "time"

// History is a fixed-capacity FIFO ring of price points, oldest first. The zero
// value is not usable; call NewHistory.
type History struct {
	buf   []PricePoint
	start int
	size  int
}

// NewHistory returns an empty history holding at most limit points.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{buf: make([]PricePoint, limit)}
}

// Cap returns the maximum number of points.
func (h *History) Cap() int { return len(h.buf) }

// Len returns the number of points held.
func (h *History) Len() int { return h.size }

// Append adds p as the newest point, evicting the oldest once full.
func (h *History) Append(p PricePoint) {
	if h.size < len(h.buf) {
		h.buf[(h.start+h.size)%len(h.buf)] = p
		h.size++
		return
	}
	h.buf[h.start] = p
	h.start = (h.start + 1) % len(h.buf)
}

// Points returns a copy of the points, oldest first.
func (h *History) Points() []PricePoint {
	out := make([]PricePoint, h.size)
	for i := 0; i < h.size; i++ {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}

// Last returns the newest point.
func (h *History) Last() (PricePoint, bool) {
	if h.size == 0 {
		return PricePoint{}, false
	}
	return h.buf[(h.start+h.size-1)%len(h.buf)], true
}

// Seed replaces the contents with seed followed by any currently held points
// newer than the last seed point, keeping only the newest Cap points.
func (h *History) Seed(seed []PricePoint) {
	var cutoff time.Time
	if len(seed) > 0 {
		cutoff = seed[len(seed)-1].Timestamp
	}

	merged := make([]PricePoint, 0, len(seed)+h.size)
	merged = append(merged, seed...)
	for _, p := range h.Points() {
		if p.Timestamp.After(cutoff) {
			merged = append(merged, p)
		}
	}

	h.start, h.size = 0, 0
	if over := len(merged) - len(h.buf); over > 0 {
		merged = merged[over:]
	}
	for _, p := range merged {
		h.Append(p)
	}
}
