package utils

import (
	"fmt"
	"math"
	"sort"
)

// LocateArray is an ordered set of bin right edges over a positive axis,
// with the left edge of bin 0 stored separately. It backs the frequency
// grid and the spectrum axes.
type LocateArray struct {
	x   []float64 // right bin walls
	min float64
	del float64 // uniform spacing, 0 for a flexible grid

	logSpaced bool
}

// NewLocateArray builds a uniform grid of right edges on [start, stop]
// with spacing delta.
func NewLocateArray(start, stop, delta float64) LocateArray {
	la := LocateArray{min: start, del: delta}
	n := int((stop - start) / delta)
	if n < 1 {
		n = 1
	}
	for i := 1; i <= n; i++ {
		la.x = append(la.x, start+float64(i)*delta)
	}
	return la
}

// NewLogLocateArray builds a logarithmic grid: each bin width is delta
// times the left edge.
func NewLogLocateArray(start, stop, delta float64) LocateArray {
	la := LocateArray{min: start, logSpaced: true}
	for v := start * (1 + delta); v < stop*(1+delta); v *= 1 + delta {
		la.x = append(la.x, v)
	}
	if len(la.x) == 0 {
		la.x = append(la.x, stop)
	}
	la.del = delta
	return la
}

// NewLocateArrayFromEdges wraps an existing, sorted set of right edges.
func NewLocateArrayFromEdges(edges []float64, minval float64) LocateArray {
	return LocateArray{x: append([]float64(nil), edges...), min: minval}
}

func (la *LocateArray) Size() int        { return len(la.x) }
func (la *LocateArray) MinVal() float64  { return la.min }
func (la *LocateArray) MaxVal() float64  { return la.x[len(la.x)-1] }
func (la *LocateArray) Edge(i int) float64 { return la.x[i] }

// Center is the midpoint of bin i.
func (la *LocateArray) Center(i int) float64 {
	if i == 0 {
		return 0.5 * (la.min + la.x[0])
	}
	return 0.5 * (la.x[i-1] + la.x[i])
}

// Left is the left wall of bin i.
func (la *LocateArray) Left(i int) float64 {
	if i == 0 {
		return la.min
	}
	return la.x[i-1]
}

// Right is the right wall of bin i.
func (la *LocateArray) Right(i int) float64 { return la.x[i] }

// Delta is the width of bin i.
func (la *LocateArray) Delta(i int) float64 {
	if i == 0 {
		return la.x[0] - la.min
	}
	return la.x[i] - la.x[i-1]
}

// Locate returns the bin whose right wall is the first one >= xval.
// Values beyond the last wall return Size().
func (la *LocateArray) Locate(xval float64) int {
	return sort.SearchFloat64s(la.x, xval)
}

// LocateWithinBounds clamps Locate to a valid bin index.
func (la *LocateArray) LocateWithinBounds(xval float64) int {
	i := la.Locate(xval)
	if i >= len(la.x) {
		i = len(la.x) - 1
	}
	return i
}

// Sample draws a value uniformly within bin i given a standard uniform u.
func (la *LocateArray) Sample(i int, u float64) float64 {
	return la.Left(i) + (la.Right(i)-la.Left(i))*u
}

// ValueAt returns y at the bin containing xval, assuming a 1-1
// correspondence between y and the grid. Out-of-range xval clamps to the
// end bins.
func (la *LocateArray) ValueAt(xval float64, y []float64) float64 {
	return la.ValueAtIndex(xval, y, la.LocateWithinBounds(xval))
}

// ValueAtIndex is ValueAt with the locate already done.
func (la *LocateArray) ValueAtIndex(xval float64, y []float64, ind int) float64 {
	if ind < 0 || ind >= len(y) {
		panic(fmt.Sprintf("index %d out of bounds in ValueAt for array length %d", ind, len(y)))
	}
	return y[ind]
}

// InterpolateBetween linearly interpolates y between walls i1 and i2.
func (la *LocateArray) InterpolateBetween(xval float64, i1, i2 int, y []float64) float64 {
	if len(la.x) == 1 {
		return y[0]
	}
	slope := (y[i2] - y[i1]) / (la.x[i2] - la.x[i1])
	return y[i1] + slope*(xval-la.x[i1])
}

// LogInterpolateBetween interpolates y log-log between walls i1 and i2,
// falling back to linear for non-positive values.
func (la *LocateArray) LogInterpolateBetween(xval float64, i1, i2 int, y []float64) float64 {
	if len(la.x) == 1 {
		return y[0]
	}
	if y[i1] == y[i2] {
		return y[i1]
	}
	if y[i1] <= 0 || y[i2] <= 0 {
		return la.InterpolateBetween(xval, i1, i2, y)
	}
	slope := math.Log(y[i2]/y[i1]) / math.Log(la.x[i2]/la.x[i1])
	return math.Exp(math.Log(y[i1]) + slope*math.Log(xval/la.x[i1]))
}
