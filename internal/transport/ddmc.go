package transport

import (
	"math"

	"github.com/Knights-Templars/pubsed/internal/constants"
	"github.com/Knights-Templars/pubsed/internal/geom"
	"github.com/Knights-Templars/pubsed/internal/rng"
	"github.com/Knights-Templars/pubsed/internal/utils"
)

// computeDiffusionProbabilities marks the zones whose Rosseland depth
// exceeds the threshold and tabulates, once per step, the per-draw face
// probabilities: leakage up/down, advection, effective absorption, and
// staying put until the step ends. Each is its rate's share of the total
// event rate.
func (t *Solver) computeDiffusionProbabilities(dt float64) {
	for i := 0; i < t.grid.NZones(); i++ {
		dx := t.grid.ZoneMinLength(i)
		alphaR := t.rosselandMean[i]
		tau := alphaR * dx
		t.ddmcUseInZone[i] = tau > t.ddmcTau
		if !t.ddmcUseInZone[i] {
			continue
		}

		diff := constants.C / (3 * alphaR)
		rLeak := diff / (dx * dx)
		v := t.grid.Velocity(t.grid.SampleInZone(i, [3]float64{0.5, 0.5, 0.5}), i)
		vmag := math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
		rAdv := vmag / dx
		z := t.grid.Zone(i)
		rAbs := constants.C * t.planckMean[i] * z.EpsIMC
		rStay := 1 / dt

		rTot := 2*rLeak + rAdv + rAbs + rStay
		t.ddmcPUp[i] = rLeak / rTot
		t.ddmcPDn[i] = rLeak / rTot
		t.ddmcPAdv[i] = rAdv / rTot
		t.ddmcPAbs[i] = rAbs / rTot
		t.ddmcPStay[i] = rStay / rTot
		t.ddmcRTot[i] = rTot
	}
}

// discreteDiffuse substitutes a diffusion step for the Monte Carlo
// flight in an optically thick zone.
func (t *Solver) discreteDiffuse(p *Particle, tstop float64, stream *rng.Stream, wt *workerTally) Fate {
	if t.useDDMC == 3 {
		return t.discreteDiffuseRandomWalk(p, tstop, stream, wt)
	}
	return t.discreteDiffuseDDMC(p, tstop, stream, wt)
}

// discreteDiffuseDDMC drifts the particle one face event per draw.
func (t *Solver) discreteDiffuseDDMC(p *Particle, tstop float64, stream *rng.Stream, wt *workerTally) Fate {
	for {
		i := p.Ind
		if i < 0 {
			break
		}
		if !t.ddmcUseInZone[i] {
			// crossed into an IMC zone; resume flights there
			return Moving
		}

		// residence time of one draw
		dtEvent := stream.Exp() / t.ddmcRTot[i]
		if p.T+dtEvent > tstop {
			dtEvent = tstop - p.T
		}

		// diffusing radiation still tallies energy density along the
		// equivalent path
		pathLen := constants.C * dtEvent
		wt.eRad[i] += p.E * pathLen
		if p.Type == Photon {
			wt.eAbs[i] += p.E * pathLen * t.planckMean[i] * t.grid.Zone(i).EpsIMC
		}
		p.T += dtEvent

		u := stream.Uniform()
		switch {
		case u < t.ddmcPAbs[i]:
			return Absorbed
		case u < t.ddmcPAbs[i]+t.ddmcPUp[i]:
			t.moveAcrossDDMCInterface(p, i+1, stream)
		case u < t.ddmcPAbs[i]+t.ddmcPUp[i]+t.ddmcPDn[i]:
			t.moveAcrossDDMCInterface(p, i-1, stream)
		default:
			// advected or stayed; the particle remains in the zone
		}

		if p.T >= tstop {
			return Stopped
		}
		if p.Ind == geom.IndexAbsorbed {
			return Absorbed
		}
		if p.Ind == geom.IndexEscaped {
			return Escaped
		}
	}
	return Absorbed
}

// moveAcrossDDMCInterface places the particle just inside the target
// zone with an outward-biased direction, the interface condition into
// IMC zones.
func (t *Solver) moveAcrossDDMCInterface(p *Particle, newInd int, stream *rng.Stream) {
	nz := t.grid.NZones()
	if newInd >= nz {
		p.Ind = geom.IndexEscaped
		return
	}
	if newInd < 0 {
		p.Ind = geom.IndexAbsorbed
		return
	}

	// sample a position in the target zone and bias the direction along
	// the interface normal (sqrt(U) cosine emission)
	u := [3]float64{stream.Uniform(), stream.Uniform(), stream.Uniform()}
	p.X = t.grid.SampleInZone(newInd, u)
	r := p.R()
	var n [3]float64
	if r > 0 {
		n = [3]float64{p.X[0] / r, p.X[1] / r, p.X[2] / r}
	} else {
		n = [3]float64{0, 0, 1}
	}
	if newInd < p.Ind {
		n[0], n[1], n[2] = -n[0], -n[1], -n[2]
	}
	cosT := math.Sqrt(stream.Uniform())
	phi := 2 * math.Pi * stream.Uniform()
	p.D = rotateAbout(n, cosT, phi)
	p.Ind = newInd
}

// setupRandomWalk tabulates the diffusion-sphere escape probability
// series P(x) = 1 + 2 sum_n (-1)^n exp(-n^2 x) on a log grid of the
// dimensionless diffusion time x = pi^2 D t / R^2.
func (t *Solver) setupRandomWalk() {
	const nx = 200
	t.randomwalkX = utils.NewLogLocateArray(1e-3, 20.0, math.Pow(20.0/1e-3, 1.0/nx)-1)
	t.randomwalkPesc = make([]float64, t.randomwalkX.Size())
	for i := range t.randomwalkPesc {
		x := t.randomwalkX.Center(i)
		sum := 1.0
		for n := 1; n <= 100; n++ {
			term := 2 * math.Exp(-float64(n*n)*x)
			if n%2 == 1 {
				sum -= term
			} else {
				sum += term
			}
			if term < 1e-14 {
				break
			}
		}
		if sum < 0 {
			sum = 0
		}
		t.randomwalkPesc[i] = sum
	}
}

// randomwalkSampleX inverts the tabulated escape probability for a
// uniform deviate.
func (t *Solver) randomwalkSampleX(u float64) float64 {
	// Pesc rises with x; find the first bin where it exceeds u
	for i := 0; i < len(t.randomwalkPesc); i++ {
		if t.randomwalkPesc[i] >= u {
			return t.randomwalkX.Center(i)
		}
	}
	return t.randomwalkX.MaxVal()
}

// discreteDiffuseRandomWalk does a Fleck-Canfield random walk on a
// sphere inscribed in the zone.
func (t *Solver) discreteDiffuseRandomWalk(p *Particle, tstop float64, stream *rng.Stream, wt *workerTally) Fate {
	i := p.Ind
	r0 := 0.5 * t.grid.ZoneMinLength(i)
	diff := constants.C / (3 * t.rosselandMean[i])

	// dimensionless time to escape the sphere
	x := t.randomwalkSampleX(stream.Uniform())
	tDiff := x * r0 * r0 / (math.Pi * math.Pi * diff)

	remaining := tstop - p.T
	if tDiff >= remaining {
		// still inside the sphere when the step ends
		tDiff = remaining
		pathLen := constants.C * tDiff
		wt.eRad[i] += p.E * pathLen
		if p.Type == Photon {
			wt.eAbs[i] += p.E * pathLen * t.planckMean[i] * t.grid.Zone(i).EpsIMC
		}
		p.T = tstop
		return Stopped
	}

	pathLen := constants.C * tDiff
	wt.eRad[i] += p.E * pathLen
	if p.Type == Photon {
		wt.eAbs[i] += p.E * pathLen * t.planckMean[i] * t.grid.Zone(i).EpsIMC
	}

	// emerge on the sphere surface with a fresh direction
	var dir [3]float64
	sampleIsotropic(&dir, stream)
	for k := 0; k < 3; k++ {
		p.X[k] += r0 * dir[k]
	}
	sampleIsotropic(&p.D, stream)
	p.T += tDiff
	p.Ind = t.grid.GetZone(p.X)
	if p.Ind == geom.IndexAbsorbed {
		return Absorbed
	}
	if p.Ind == geom.IndexEscaped {
		return Escaped
	}
	return Moving
}
