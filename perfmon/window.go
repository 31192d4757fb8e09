package perfmon

// window is a fixed-capacity ring of recent durations in milliseconds. Once
// full, each Add overwrites the oldest sample. It is not safe for concurrent
// use; the Monitor lock guards it.
type window struct {
	samples []float64
	pos     int
	full    bool
}

func newWindow(size int) *window {
	return &window{samples: make([]float64, size)}
}

// Add appends d, evicting the oldest sample when full.
func (w *window) Add(d float64) {
	w.samples[w.pos] = d
	w.pos++
	if w.pos == len(w.samples) {
		w.pos = 0
		w.full = true
	}
}

// Len returns the number of samples held.
func (w *window) Len() int {
	if w.full {
		return len(w.samples)
	}
	return w.pos
}

// Values returns the samples oldest first.
func (w *window) Values() []float64 {
	n := w.Len()
	out := make([]float64, n)
	if !w.full {
		copy(out, w.samples[:n])
		return out
	}
	k := copy(out, w.samples[w.pos:])
	copy(out[k:], w.samples[:w.pos])
	return out
}

// Last returns up to n of the newest samples, oldest first.
func (w *window) Last(n int) []float64 {
	vals := w.Values()
	if len(vals) > n {
		vals = vals[len(vals)-n:]
	}
	return vals
}

// Stats returns the mean, min and max of the held samples, or zeros when
// empty.
func (w *window) Stats() (avg, lo, hi float64) {
	n := w.Len()
	if n == 0 {
		return 0, 0, 0
	}
	var sum float64
	lo, hi = w.samples[0], w.samples[0]
	for _, v := range w.samples[:n] {
		sum += v
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return sum / float64(n), lo, hi
}
