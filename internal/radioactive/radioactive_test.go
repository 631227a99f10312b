package radioactive

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Knights-Templars/pubsed/internal/constants"
)

var (
	elemsZ = []int{28, 27, 26}
	elemsA = []int{56, 56, 56}
)

func TestDecayRatePositive(t *testing.T) {
	x := []float64{1, 0, 0}
	rate, gfrac := Decay(elemsZ, elemsA, x, 0, false)
	require.Greater(t, rate, 0.0)
	assert.Greater(t, gfrac, 0.0)
	assert.LessOrEqual(t, gfrac, 1.0)

	// at t = 0 the rate is pure Ni56 and purely gamma
	n0 := 1.0 / (56 * constants.AMU)
	want := n0 / TauNi56 * QGammaNi56 * constants.MeVToErgs
	assert.InEpsilon(t, want, rate, 1e-10)
	assert.InEpsilon(t, 1.0, gfrac, 1e-10)
}

func TestDecayRateFalls(t *testing.T) {
	x := []float64{1, 0, 0}
	early, _ := Decay(elemsZ, elemsA, x, 1*constants.DayToSec, false)
	late, _ := Decay(elemsZ, elemsA, x, 300*constants.DayToSec, false)
	assert.Greater(t, early, late)
}

func TestDecayNoNickel(t *testing.T) {
	rate, gfrac := Decay([]int{1}, []int{1}, []float64{1}, 1e5, false)
	assert.Equal(t, 0.0, rate)
	assert.Equal(t, 0.0, gfrac)
}

func TestRprocessHeating(t *testing.T) {
	rate, gfrac := Decay([]int{1}, []int{1}, []float64{1}, constants.DayToSec, true)
	assert.InEpsilon(t, 1e10, rate, 1e-10)
	assert.InEpsilon(t, 0.4, gfrac, 1e-10)

	// power-law decline
	rate2, _ := Decay([]int{1}, []int{1}, []float64{1}, 10*constants.DayToSec, true)
	assert.InEpsilon(t, rate*math.Pow(10, -1.3), rate2, 1e-8)
}

func TestDecayCompositionConservesMass(t *testing.T) {
	x := []float64{0.5, 0, 0.5}
	DecayComposition(elemsZ, elemsA, x, 30*constants.DayToSec)

	sum := x[0] + x[1] + x[2]
	assert.InDelta(t, 1.0, sum, 1e-12)
	// nickel has decayed, cobalt has grown
	assert.Less(t, x[0], 0.5)
	assert.Greater(t, x[1], 0.0)
	assert.Greater(t, x[2], 0.5)
}

func TestDecayCompositionLateTimes(t *testing.T) {
	x := []float64{1, 0, 0}
	DecayComposition(elemsZ, elemsA, x, 3000*constants.DayToSec)
	// essentially everything ends up as iron
	assert.Less(t, x[0], 1e-10)
	assert.Greater(t, x[2], 0.99)
}
