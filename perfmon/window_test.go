package perfmon

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindowFillsThenWraps(t *testing.T) {
	w := newWindow(3)
	assert.Equal(t, 0, w.Len())
	assert.Empty(t, w.Values())

	w.Add(1)
	w.Add(2)
	assert.Equal(t, []float64{1, 2}, w.Values())

	w.Add(3)
	w.Add(4)
	w.Add(5)
	assert.Equal(t, 3, w.Len())
	assert.Equal(t, []float64{3, 4, 5}, w.Values())
	assert.Equal(t, []float64{4, 5}, w.Last(2))
	assert.Equal(t, []float64{3, 4, 5}, w.Last(10))

	avg, lo, hi := w.Stats()
	assert.Equal(t, 4.0, avg)
	assert.Equal(t, 3.0, lo)
	assert.Equal(t, 5.0, hi)
}

func TestWindowStatsEmpty(t *testing.T) {
	avg, lo, hi := newWindow(5).Stats()
	assert.Zero(t, avg)
	assert.Zero(t, lo)
	assert.Zero(t, hi)
}
