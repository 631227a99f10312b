package spectrum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountAndGet(t *testing.T) {
	s := New([]float64{0, 10, 1}, []float64{1e14, 1e15, 1e14}, 4, 2)
	require.Equal(t, 10, s.NTime())
	require.Equal(t, 9, s.NNu())

	s.Count(2.5, 3.5e14, 1.25, [3]float64{0, 0, 1})
	// mu = 1 lands in the last mu bin, phi = 0 in bin 0
	assert.Equal(t, 1.25, s.Get(2, 2, 3, 0))
	assert.Equal(t, 1.25, s.Total())
}

func TestCountClampsOutOfRange(t *testing.T) {
	s := New([]float64{0, 10, 1}, []float64{1e14, 1e15, 1e14}, 1, 1)
	s.Count(-5, 1e10, 1, [3]float64{1, 0, 0})
	s.Count(1e9, 1e20, 2, [3]float64{-1, 0, 0})
	assert.Equal(t, 3.0, s.Total())
}

func TestRescaleAndWipe(t *testing.T) {
	s := New([]float64{0, 1, 1}, []float64{1e14, 1e15, 1e14}, 1, 1)
	s.Count(0.5, 5e14, 2.0, [3]float64{1, 0, 0})
	s.Rescale(0.5)
	assert.Equal(t, 1.0, s.Total())
	s.Wipe()
	assert.Equal(t, 0.0, s.Total())
}

func TestDegenerateAxes(t *testing.T) {
	// a nil spec collapses the axis to one bin
	s := New(nil, nil, 0, 0)
	require.Equal(t, 1, s.NTime())
	require.Equal(t, 1, s.NNu())
	s.Count(123, 4.5e14, 1, [3]float64{0, 1, 0})
	assert.Equal(t, 1.0, s.Get(0, 0, 0, 0))
}

func TestPhiBinning(t *testing.T) {
	s := New([]float64{0, 1, 1}, nil, 1, 4)
	s.Count(0, 0, 1, [3]float64{1, 0, 0})  // phi = 0
	s.Count(0, 0, 1, [3]float64{-1, 0, 0}) // phi = pi
	assert.Equal(t, 1.0, s.Get(0, 0, 0, 0))
	assert.Equal(t, 1.0, s.Get(0, 0, 0, 2))
}
