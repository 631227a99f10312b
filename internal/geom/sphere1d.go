package geom

import (
	"math"
)

// Sphere1D is a spherically symmetric grid of radial shells. Velocities
// are homologous (v = r/t) when Homologous is set, otherwise they scale
// linearly to VOuter at the outer edge; when VOuter is zero each zone's
// own V is used.
type Sphere1D struct {
	walls  []float64 // len(zones)+1 shell walls, walls[0] may be 0
	zones  []Zone
	elemsZ []int
	elemsA []int

	Homologous bool
	VOuter     float64
	Time       float64
}

// NewSphere1D builds the grid from shell walls; every zone starts with a
// copy of the prototype fluid state.
func NewSphere1D(walls []float64, proto Zone, elemsZ, elemsA []int, tNow float64) *Sphere1D {
	if len(walls) < 2 {
		panic("sphere grid needs at least two walls")
	}
	g := &Sphere1D{
		walls:  append([]float64(nil), walls...),
		elemsZ: elemsZ,
		elemsA: elemsA,
		Time:   tNow,
	}
	for i := 0; i < len(walls)-1; i++ {
		z := proto
		z.XGas = append([]float64(nil), proto.XGas...)
		g.zones = append(g.zones, z)
	}
	return g
}

func (g *Sphere1D) NZones() int       { return len(g.zones) }
func (g *Sphere1D) Zone(i int) *Zone  { return &g.zones[i] }
func (g *Sphere1D) ElemsZ() []int     { return g.elemsZ }
func (g *Sphere1D) ElemsA() []int     { return g.elemsA }
func (g *Sphere1D) TNow() float64     { return g.Time }

func (g *Sphere1D) ZoneVolume(i int) float64 {
	ro := g.walls[i+1]
	ri := g.walls[i]
	return 4.0 * math.Pi / 3.0 * (ro*ro*ro - ri*ri*ri)
}

func (g *Sphere1D) ZoneMinLength(i int) float64 {
	return g.walls[i+1] - g.walls[i]
}

func (g *Sphere1D) SampleInZone(i int, u [3]float64) [3]float64 {
	ri := g.walls[i]
	ro := g.walls[i+1]
	r := math.Cbrt(ri*ri*ri + u[0]*(ro*ro*ro-ri*ri*ri))
	mu := 1 - 2*u[1]
	phi := 2 * math.Pi * u[2]
	smu := math.Sqrt(1 - mu*mu)
	return [3]float64{r * smu * math.Cos(phi), r * smu * math.Sin(phi), r * mu}
}

func (g *Sphere1D) GetZone(x [3]float64) int {
	r := math.Sqrt(x[0]*x[0] + x[1]*x[1] + x[2]*x[2])
	if r < g.walls[0] {
		return IndexAbsorbed
	}
	if r >= g.walls[len(g.walls)-1] {
		return IndexEscaped
	}
	// shells are few; walls are sorted
	for i := 0; i < len(g.zones); i++ {
		if r < g.walls[i+1] {
			return i
		}
	}
	return IndexEscaped
}

// sphereCrossing returns the positive distance along d from x to the
// sphere of radius rad, or +Inf when the ray misses it.
func sphereCrossing(x, d [3]float64, rad float64, inward bool) float64 {
	b := x[0]*d[0] + x[1]*d[1] + x[2]*d[2]
	r2 := x[0]*x[0] + x[1]*x[1] + x[2]*x[2]
	disc := b*b + rad*rad - r2
	if disc < 0 {
		return math.Inf(1)
	}
	var dist float64
	if inward {
		dist = -b - math.Sqrt(disc)
	} else {
		dist = -b + math.Sqrt(disc)
	}
	if dist <= 0 {
		return math.Inf(1)
	}
	return dist
}

func (g *Sphere1D) GetNextZone(x, d [3]float64, ind int, rCore float64) (int, float64) {
	if ind < 0 {
		return ind, 0
	}

	dOut := sphereCrossing(x, d, g.walls[ind+1], false)
	newInd := ind + 1
	dist := dOut

	// inner wall only matters when heading inward
	if g.walls[ind] > 0 {
		if dIn := sphereCrossing(x, d, g.walls[ind], true); dIn < dist {
			dist = dIn
			newInd = ind - 1
		}
	}

	// the luminous core absorbs whatever reaches it
	if rCore > 0 && rCore >= g.walls[0] {
		if dc := sphereCrossing(x, d, rCore, true); dc < dist {
			return IndexAbsorbed, dc
		}
	}

	if newInd < 0 {
		newInd = IndexAbsorbed
	}
	if newInd == len(g.zones) {
		newInd = IndexEscaped
	}
	return newInd, dist
}

func (g *Sphere1D) Velocity(x [3]float64, i int) [3]float64 {
	if g.Homologous {
		if g.Time == 0 {
			return [3]float64{}
		}
		return [3]float64{x[0] / g.Time, x[1] / g.Time, x[2] / g.Time}
	}
	if g.VOuter == 0 {
		if i < 0 || i >= len(g.zones) {
			return [3]float64{}
		}
		return g.zones[i].V
	}
	rMax := g.walls[len(g.walls)-1]
	f := g.VOuter / rMax
	return [3]float64{x[0] * f, x[1] * f, x[2] * f}
}
