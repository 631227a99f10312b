package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGrid() *Sphere1D {
	proto := Zone{Rho: 1e-13, TGas: 1e4, XGas: []float64{1}}
	return NewSphere1D([]float64{0, 1e10, 2e10}, proto, []int{1}, []int{1}, 10.0)
}

func TestGetZone(t *testing.T) {
	g := testGrid()
	assert.Equal(t, 0, g.GetZone([3]float64{5e9, 0, 0}))
	assert.Equal(t, 1, g.GetZone([3]float64{0, 1.5e10, 0}))
	assert.Equal(t, IndexEscaped, g.GetZone([3]float64{0, 0, 3e10}))
}

func TestGetNextZoneOutward(t *testing.T) {
	g := testGrid()
	ind, d := g.GetNextZone([3]float64{0, 0, 0}, [3]float64{1, 0, 0}, 0, 0)
	assert.Equal(t, 1, ind)
	assert.InEpsilon(t, 1e10, d, 1e-12)

	ind, d = g.GetNextZone([3]float64{1.5e10, 0, 0}, [3]float64{1, 0, 0}, 1, 0)
	assert.Equal(t, IndexEscaped, ind)
	assert.InEpsilon(t, 0.5e10, d, 1e-12)
}

func TestGetNextZoneInward(t *testing.T) {
	g := testGrid()
	ind, d := g.GetNextZone([3]float64{1.5e10, 0, 0}, [3]float64{-1, 0, 0}, 1, 0)
	assert.Equal(t, 0, ind)
	assert.InEpsilon(t, 0.5e10, d, 1e-12)
}

func TestGetNextZoneCoreAbsorption(t *testing.T) {
	g := testGrid()
	ind, d := g.GetNextZone([3]float64{5e9, 0, 0}, [3]float64{-1, 0, 0}, 0, 1e9)
	assert.Equal(t, IndexAbsorbed, ind)
	assert.InEpsilon(t, 4e9, d, 1e-12)
}

func TestZoneVolume(t *testing.T) {
	g := testGrid()
	inner := 4.0 / 3.0 * math.Pi * 1e30
	assert.InEpsilon(t, inner, g.ZoneVolume(0), 1e-12)
	assert.InEpsilon(t, 7*inner, g.ZoneVolume(1), 1e-12)
}

func TestSampleInZoneStaysInZone(t *testing.T) {
	g := testGrid()
	for _, u := range [][3]float64{{0, 0, 0}, {0.5, 0.5, 0.5}, {0.999, 0.999, 0.999}, {0.2, 0.9, 0.1}} {
		x := g.SampleInZone(1, u)
		require.Equal(t, 1, g.GetZone(x), "u=%v", u)
	}
}

func TestHomologousVelocity(t *testing.T) {
	g := testGrid()
	g.Homologous = true
	v := g.Velocity([3]float64{1e10, 0, 0}, 0)
	assert.InEpsilon(t, 1e9, v[0], 1e-12)
	assert.Equal(t, 0.0, v[1])
}

func TestBlockedVelocityOutsideGrid(t *testing.T) {
	g := testGrid()
	v := g.Velocity([3]float64{1e10, 0, 0}, IndexEscaped)
	assert.Equal(t, [3]float64{}, v)
}
