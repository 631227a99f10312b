package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBrentSimpleRoot(t *testing.T) {
	f := func(x float64) float64 { return x*x - 4 }
	root, iters := BrentSolve(f, 1, 10, 1e-12)
	assert.Greater(t, iters, 0)
	assert.InDelta(t, 2.0, root, 1e-9)
}

func TestBrentTranscendental(t *testing.T) {
	f := func(x float64) float64 { return math.Cos(x) - x }
	root, iters := BrentSolve(f, 0, 2, 1e-12)
	assert.Greater(t, iters, 0)
	assert.InDelta(t, 0.7390851332151607, root, 1e-9)
	assert.Less(t, math.Abs(f(root)), 1e-9)
}

func TestBrentBadBracket(t *testing.T) {
	f := func(x float64) float64 { return x*x + 1 }
	_, iters := BrentSolve(f, -1, 1, 1e-10)
	assert.Equal(t, -1, iters)
}

func TestBrentSteepResidual(t *testing.T) {
	// shape similar to the radiative-equilibrium residual: a - b*T^4
	f := func(T float64) float64 { return 3.2e4 - 7.5657e-15*math.Pow(T, 4) }
	root, iters := BrentSolve(f, 1, 1e8, 1e-10)
	assert.Greater(t, iters, 0)
	want := math.Pow(3.2e4/7.5657e-15, 0.25)
	assert.InEpsilon(t, want, root, 1e-6)
}
