// Package spectrum accumulates escaping packets into an observer-frame
// (time, frequency, mu, phi) histogram.
package spectrum

import (
	"math"
	"sync"

	"github.com/Knights-Templars/pubsed/internal/utils"
)

// Array is a 4-D energy histogram. Counting is safe for concurrent use.
type Array struct {
	timeGrid utils.LocateArray
	nuGrid   utils.LocateArray
	nMu      int
	nPhi     int

	mu     sync.Mutex
	bins   []float64
	counts []int64
}

// New builds the histogram. timeSpec and nuSpec are {start, stop, delta}
// triples; a one-element or degenerate spec collapses that axis to a
// single bin.
func New(timeSpec, nuSpec []float64, nMu, nPhi int) *Array {
	if nMu < 1 {
		nMu = 1
	}
	if nPhi < 1 {
		nPhi = 1
	}
	s := &Array{nMu: nMu, nPhi: nPhi}
	s.timeGrid = axisFromSpec(timeSpec)
	s.nuGrid = axisFromSpec(nuSpec)
	n := s.timeGrid.Size() * s.nuGrid.Size() * nMu * nPhi
	s.bins = make([]float64, n)
	s.counts = make([]int64, n)
	return s
}

func axisFromSpec(spec []float64) utils.LocateArray {
	if len(spec) < 3 || spec[2] <= 0 || spec[1] <= spec[0] {
		lo, hi := 0.0, 1.0
		if len(spec) >= 2 {
			lo, hi = spec[0], spec[1]
		}
		return utils.NewLocateArrayFromEdges([]float64{hi}, lo)
	}
	return utils.NewLocateArray(spec[0], spec[1], spec[2])
}

func (s *Array) NTime() int { return s.timeGrid.Size() }
func (s *Array) NNu() int   { return s.nuGrid.Size() }
func (s *Array) NMu() int   { return s.nMu }
func (s *Array) NPhi() int  { return s.nPhi }

func (s *Array) index(it, inu, imu, iphi int) int {
	return ((it*s.nuGrid.Size()+inu)*s.nMu+imu)*s.nPhi + iphi
}

// Count adds packet energy e escaping at observer time t, frequency nu,
// along direction d.
func (s *Array) Count(t, nu, e float64, d [3]float64) {
	it := s.timeGrid.LocateWithinBounds(t)
	inu := s.nuGrid.LocateWithinBounds(nu)

	imu := 0
	if s.nMu > 1 {
		imu = int((d[2] + 1) / 2 * float64(s.nMu))
		if imu >= s.nMu {
			imu = s.nMu - 1
		}
		if imu < 0 {
			imu = 0
		}
	}
	iphi := 0
	if s.nPhi > 1 {
		phi := math.Atan2(d[1], d[0])
		if phi < 0 {
			phi += 2 * math.Pi
		}
		iphi = int(phi / (2 * math.Pi) * float64(s.nPhi))
		if iphi >= s.nPhi {
			iphi = s.nPhi - 1
		}
	}

	k := s.index(it, inu, imu, iphi)
	s.mu.Lock()
	s.bins[k] += e
	s.counts[k]++
	s.mu.Unlock()
}

// Get returns the energy in one bin.
func (s *Array) Get(it, inu, imu, iphi int) float64 {
	return s.bins[s.index(it, inu, imu, iphi)]
}

// Total is the summed energy over all bins.
func (s *Array) Total() float64 {
	return utils.SumSlice(s.bins)
}

// Rescale multiplies every bin, used by the steady-state escape-fraction
// normalization.
func (s *Array) Rescale(f float64) {
	s.mu.Lock()
	for i := range s.bins {
		s.bins[i] *= f
	}
	s.mu.Unlock()
}

// Wipe zeroes the histogram.
func (s *Array) Wipe() {
	s.mu.Lock()
	for i := range s.bins {
		s.bins[i] = 0
		s.counts[i] = 0
	}
	s.mu.Unlock()
}

// Bins exposes the flat energy array for cross-rank reduction and
// checkpointing.
func (s *Array) Bins() []float64 { return s.bins }

// TimeCenter and NuCenter expose axis centers for the output writer.
func (s *Array) TimeCenter(i int) float64 { return s.timeGrid.Center(i) }
func (s *Array) NuCenter(i int) float64   { return s.nuGrid.Center(i) }
