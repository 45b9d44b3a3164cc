package belt

import "math"

// History is a fixed capacity FIFO of speed samples.
type History struct {
	buf   []float64
	head  int
	count int
}

func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{buf: make([]float64, capacity)}
}

func (h *History) Cap() int {
	return len(h.buf)
}

func (h *History) Len() int {
	return h.count
}

// Push appends v, evicting the oldest sample when full.
func (h *History) Push(v float64) {
	h.buf[(h.head+h.count)%len(h.buf)] = v
	if h.count < len(h.buf) {
		h.count++
		return
	}
	h.head = (h.head + 1) % len(h.buf)
}

// Values returns the samples oldest first.
func (h *History) Values() []float64 {
	out := make([]float64, h.count)
	for i := 0; i < h.count; i++ {
		out[i] = h.buf[(h.head+i)%len(h.buf)]
	}
	return out
}

func (h *History) Mean() float64 {
	if h.count == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < h.count; i++ {
		sum += h.buf[(h.head+i)%len(h.buf)]
	}
	return sum / float64(h.count)
}

// StdDev is the population standard deviation.
func (h *History) StdDev() float64 {
	if h.count == 0 {
		return 0
	}
	mean := h.Mean()
	var sum float64
	for i := 0; i < h.count; i++ {
		d := h.buf[(h.head+i)%len(h.buf)] - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(h.count))
}

func (h *History) Clear() {
	h.head = 0
	h.count = 0
}
