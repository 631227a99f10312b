package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocateArrayUniform(t *testing.T) {
	la := NewLocateArray(1e14, 1e15, 1e14)
	require.Equal(t, 9, la.Size())
	assert.Equal(t, 1e14, la.MinVal())
	assert.InEpsilon(t, 1e15, la.MaxVal(), 1e-12)

	assert.InEpsilon(t, 2e14, la.Right(0), 1e-12)
	assert.InEpsilon(t, 1e14, la.Left(0), 1e-12)
	assert.InEpsilon(t, 1.5e14, la.Center(0), 1e-12)
	assert.InEpsilon(t, 1e14, la.Delta(3), 1e-12)
}

func TestLocateRoundTrip(t *testing.T) {
	// locate composed with left/right reconstructs the containing bin
	la := NewLocateArray(0, 10, 1)
	for _, x := range []float64{0.1, 0.99, 1.0, 4.5, 9.99} {
		i := la.Locate(x)
		require.Less(t, i, la.Size())
		assert.LessOrEqual(t, la.Left(i), x)
		assert.GreaterOrEqual(t, la.Right(i), x)
		assert.Greater(t, la.Center(i), la.Left(i))
		assert.Less(t, la.Center(i), la.Right(i))
	}
}

func TestLocateWithinBoundsClamps(t *testing.T) {
	la := NewLocateArray(0, 10, 1)
	assert.Equal(t, la.Size()-1, la.LocateWithinBounds(1e10))
	assert.Equal(t, 0, la.LocateWithinBounds(-5))
}

func TestLocateSampleWithinBin(t *testing.T) {
	la := NewLocateArray(0, 10, 1)
	for u := 0.0; u < 1.0; u += 0.1 {
		x := la.Sample(4, u)
		assert.GreaterOrEqual(t, x, la.Left(4))
		assert.LessOrEqual(t, x, la.Right(4))
	}
	assert.Equal(t, la.Left(2), la.Sample(2, 0))
}

func TestLogLocateArray(t *testing.T) {
	la := NewLogLocateArray(1e14, 1e16, 0.1)
	assert.Greater(t, la.Size(), 10)
	// widths grow with frequency
	assert.Greater(t, la.Delta(la.Size()-1), la.Delta(1))
	// still ordered and locatable
	i := la.LocateWithinBounds(3e15)
	assert.LessOrEqual(t, la.Left(i), 3e15)
	assert.GreaterOrEqual(t, la.Right(i), 3e15)
}

func TestValueAtAndInterpolation(t *testing.T) {
	la := NewLocateArray(0, 4, 1)
	y := []float64{10, 20, 30, 40}
	assert.Equal(t, 20.0, la.ValueAt(1.5, y))
	assert.Equal(t, 10.0, la.ValueAt(0.2, y))

	// log-log interpolation falls back to linear for non-positive values
	y2 := []float64{-1, 20, 30, 40}
	assert.Equal(t, la.InterpolateBetween(1.5, 0, 1, y2), la.LogInterpolateBetween(1.5, 0, 1, y2))
	// equal opacities short-circuit
	y3 := []float64{5, 5, 5, 5}
	assert.Equal(t, 5.0, la.LogInterpolateBetween(2.5, 1, 2, y3))
}
