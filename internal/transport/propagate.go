package transport

import (
	"fmt"
	"math"
	"sync"

	"github.com/Knights-Templars/pubsed/internal/constants"
	"github.com/Knights-Templars/pubsed/internal/geom"
	"github.com/Knights-Templars/pubsed/internal/rng"
)

// particleEvent is the outcome of one flight segment.
type particleEvent int

const (
	eventScatter particleEvent = iota
	eventBoundary
	eventTstep
)

// workerTally accumulates zone radiation tallies privately per worker;
// the merge happens after the wait so no atomics are needed in the hot
// loop.
type workerTally struct {
	eRad []float64
	eAbs []float64
	jNu  [][]float64

	negDist int
}

func (t *Solver) newWorkerTally() *workerTally {
	nz := t.grid.NZones()
	wt := &workerTally{
		eRad: make([]float64, nz),
		eAbs: make([]float64, nz),
	}
	wt.jNu = make([][]float64, nz)
	for i := range wt.jNu {
		wt.jNu[i] = make([]float64, len(t.jNu[i]))
	}
	return wt
}

// propagateAll advances every particle to the end of the step across the
// worker pool, merges tallies, and compacts the buffer. Returns the
// escape count.
func (t *Solver) propagateAll(dt float64) int {
	tstop := t.tNow + dt
	n := len(t.particles)
	if n == 0 {
		return 0
	}

	fates := make([]Fate, n)
	tallies := make([]*workerTally, t.nWorkers)

	var wg sync.WaitGroup
	for w := 0; w < t.nWorkers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			wt := t.newWorkerTally()
			tallies[worker] = wt
			stream := t.rngs.Worker(worker)
			for idx := worker; idx < n; idx += t.nWorkers {
				fates[idx] = t.propagate(&t.particles[idx], tstop, stream, wt)
			}
		}(w)
	}
	wg.Wait()

	// merge worker tallies into the zone records
	for _, wt := range tallies {
		if wt == nil {
			continue
		}
		for i := 0; i < t.grid.NZones(); i++ {
			z := t.grid.Zone(i)
			z.ERad += wt.eRad[i]
			z.EAbs += wt.eAbs[i]
			for j := range wt.jNu[i] {
				t.jNu[i][j] += wt.jNu[i][j]
			}
		}
		t.warnings.negDist += wt.negDist
	}

	// compact: escaped and absorbed particles leave the buffer
	nEscape := 0
	kept := t.particles[:0]
	for idx := range t.particles {
		switch fates[idx] {
		case Escaped:
			nEscape++
		case Absorbed:
		default:
			kept = append(kept, t.particles[idx])
		}
	}
	t.particles = kept
	return nEscape
}

// propagate advances one particle until it escapes, is absorbed, or the
// time step ends.
func (t *Solver) propagate(p *Particle, tstop float64, stream *rng.Stream, wt *workerTally) Fate {
	if p.E < 0 || math.IsNaN(p.E) || p.Nu <= 0 {
		panic(fmt.Sprintf("invalid particle state: e=%e nu=%e", p.E, p.Nu))
	}

	fate := Moving
	p.Ind = t.grid.GetZone(p.X)
	if p.Ind == geom.IndexAbsorbed {
		return Absorbed
	}
	if p.Ind == geom.IndexEscaped {
		return Escaped
	}

	for fate == Moving {
		// optically thick zones take a diffusion step instead
		if t.useDDMC != 0 && t.ddmcUseInZone[p.Ind] {
			fate = t.discreteDiffuse(p, tstop, stream, wt)
			continue
		}

		newInd, dBn := t.grid.GetNextZone(p.X, p.D, p.Ind, t.rCore)

		dshift := t.dshiftLabToComoving(p)

		iNu, opacCmf, epsAbsCmf := t.getOpacity(p, dshift)

		// lab-frame extinction for the interaction distance
		// (Mihalas & Mihalas 90.8)
		totOpacLab := opacCmf * dshift

		dSc := stream.Exp() / totOpacLab
		if totOpacLab == 0 {
			dSc = math.Inf(1)
		}
		if dSc <= 0 {
			wt.negDist++
		}

		dTm := (tstop - p.T) * constants.C
		if t.steadyState {
			dTm = math.Inf(1)
		}

		var event particleEvent
		var thisD float64
		if dSc < dBn && dSc < dTm {
			event, thisD = eventScatter, dSc
		} else if dBn < dTm {
			event, thisD = eventBoundary, dBn
		} else {
			event, thisD = eventTstep, dTm
		}

		// zone radiation energy tally, lab frame
		thisE := p.E * thisD
		wt.eRad[p.Ind] += thisE

		// absorbed energy in the comoving frame: two doppler factors, one
		// for the opacity conversion and one for the energy measure
		if p.Type == Photon {
			wt.eAbs[p.Ind] += thisE * dshift * opacCmf * epsAbsCmf * dshift
			if iNu < len(wt.jNu[p.Ind]) {
				wt.jNu[p.Ind][iNu] += thisE
			}
		}

		p.X[0] += thisD * p.D[0]
		p.X[1] += thisD * p.D[1]
		p.X[2] += thisD * p.D[2]
		p.T += thisD / constants.C

		switch event {
		case eventBoundary:
			if newInd == geom.IndexEscaped && t.boundaryOutReflect {
				t.reflectRadial(p)
				continue
			}
			if newInd == geom.IndexAbsorbed && t.boundaryInReflect {
				t.reflectRadial(p)
				continue
			}
			p.Ind = newInd
			if p.Ind == geom.IndexAbsorbed {
				fate = Absorbed
			}
			if p.Ind == geom.IndexEscaped {
				fate = Escaped
			}

		case eventScatter:
			if stream.Uniform() > epsAbsCmf {
				fate = t.doScatter(p, epsAbsCmf, stream)
			} else {
				fate = Absorbed
			}

		case eventTstep:
			fate = Stopped
		}
	}

	if fate == Escaped {
		// account for light crossing time relative to the grid center
		tObs := p.T - p.XDotD()/constants.C
		if p.Type == Photon {
			t.opticalSpectrum.Count(tObs, p.Nu, p.E, p.D)
		} else {
			t.gammaSpectrum.Count(tObs, p.Nu, p.E, p.D)
		}
		if t.saveEscapedParticles {
			t.escapedMu.Lock()
			if t.maxnEscapedParticles <= 0 || len(t.particlesEscaped) < t.maxnEscapedParticles {
				t.particlesEscaped = append(t.particlesEscaped, *p)
			}
			t.escapedMu.Unlock()
		}
	}
	return fate
}

// reflectRadial flips the direction about the local radial normal and
// nudges the particle back inside.
func (t *Solver) reflectRadial(p *Particle) {
	r := p.R()
	if r == 0 {
		p.D[0], p.D[1], p.D[2] = -p.D[0], -p.D[1], -p.D[2]
		return
	}
	n := [3]float64{p.X[0] / r, p.X[1] / r, p.X[2] / r}
	dn := p.D[0]*n[0] + p.D[1]*n[1] + p.D[2]*n[2]
	for i := 0; i < 3; i++ {
		p.D[i] -= 2 * dn * n[i]
		p.X[i] *= 1 - 1e-12
	}
}
