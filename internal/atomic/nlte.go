package atomic

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/Knights-Templars/pubsed/internal/constants"
	"github.com/Knights-Templars/pubsed/internal/utils"
)

const (
	nlteMaxIter = 100
	betaTol     = 0.1
)

// setRates assembles the full rate matrix at (T, ne). Rates are
// multiplied by the LTE population of the originating level because the
// linear system solves for departure coefficients.
func (a *Atom) setRates(T, ne float64) {
	for i := range a.rates {
		for j := range a.rates[i] {
			a.rates[i][j] = 0
		}
	}

	// radiative bound-bound
	for l := range a.Lines {
		line := &a.Lines[l]
		rUl := line.BUl*line.J + line.AUl
		rLu := line.BLu * line.J
		if a.UseBetas {
			rUl *= line.Beta
			rLu *= line.Beta
		}
		a.rates[line.Ll][line.Lu] += rLu
		a.rates[line.Lu][line.Ll] += rUl
	}

	// non-thermal (radioactive) excitation, from the ground state only
	for l := range a.Lines {
		line := &a.Lines[l]
		if line.Ll != 0 {
			continue
		}
		dE := (a.Levels[line.Lu].E - a.Levels[line.Ll].E) * constants.EvToErgs
		a.rates[line.Ll][line.Lu] += a.EGamma / a.NDens / dE
	}

	// collisional bound-bound, within the same ion
	for i := range a.Levels {
		for j := range a.Levels {
			if i == j {
				continue
			}
			if a.Levels[i].Ion != a.Levels[j].Ion {
				continue
			}

			dE := a.Levels[i].E - a.Levels[j].E
			zeta := dE / constants.KEv / T
			if zeta < 0 {
				zeta = -zeta
			}

			// downward rate u -> l
			c := 2.16 * math.Pow(zeta, -1.68) * math.Pow(T, -1.5)

			// upward transitions balance to LTE
			if dE < 0 {
				gl := a.Levels[i].G
				gu := a.Levels[j].G
				c = c * gu / gl * math.Exp(-zeta)
			}
			a.rates[i][j] += c
		}
	}

	// bound-free
	for i := range a.Levels {
		l := &a.Levels[i]
		ic := l.IC
		if ic == -1 {
			continue
		}

		chi := a.Ions[l.Ion].Chi - l.E
		zeta := chi / constants.KEv / T

		// collisional ionization
		cIon := 2.7 / zeta / zeta * math.Pow(T, -1.5) * math.Exp(-zeta) * ne
		a.rates[i][ic] += cIon

		// collisional recombination
		cRec := 5.59080e-16 / zeta / zeta * math.Pow(T, -3) * l.G / a.Levels[ic].G * ne * ne
		a.rates[ic][i] += cRec

		// radiative recombination
		rRec := ne * a.RecombinationCoefficient(i, T)
		if a.NoGroundRecomb && l.E == 0 {
			rRec = 0
		}
		a.rates[ic][i] += rRec

		// photoionization over the cross-section table, with the
		// stimulated-recombination correction
		w := 1.0
		rIon := 0.0
		for j := 1; j < len(l.SPhotoE); j++ {
			nu := l.SPhotoE[j] * constants.EvToErgs / constants.H
			nu0 := l.SPhotoE[j-1] * constants.EvToErgs / constants.H
			dnu := nu - nu0
			J := w * utils.BlackbodyNu(T, nu)
			sigma := l.SPhotoS[j] * (1 - math.Exp(-constants.H*nu/constants.K/T))
			rIon += 4 * math.Pi * sigma * J / (constants.H * nu) * dnu
		}
		a.rates[i][ic] += rIon
	}

	// solve for departure coefficients: weight by the LTE population of
	// the level the rate comes from
	for i := range a.Levels {
		for j := range a.Levels {
			a.rates[i][j] *= a.Levels[i].NLTE
		}
	}
}

// SolveNLTE computes level populations at (T, ne, t), iterating the
// Sobolev escape probabilities to consistency when UseBetas is set.
// Returns false when the beta iteration failed to converge.
func (a *Atom) SolveNLTE(T, ne, time float64) bool {
	// LTE seed
	a.SolveLTE(T, ne)

	nl := len(a.Levels)
	m := mat.NewDense(nl, nl, nil)
	b := mat.NewVecDense(nl, nil)
	x := mat.NewVecDense(nl, nil)

	for iter := 0; iter < nlteMaxIter; iter++ {
		a.setRates(T, ne)

		m.Zero()
		b.Zero()

		// diagonal holds the total outflow
		for i := 0; i < nl; i++ {
			rOut := 0.0
			for j := 0; j < nl; j++ {
				rOut += a.rates[i][j]
			}
			m.Set(i, i, -rOut)
		}
		// off-diagonal inflow
		for i := 0; i < nl; i++ {
			for j := 0; j < nl; j++ {
				if i != j {
					m.Set(i, j, a.rates[j][i])
				}
			}
		}
		// last row expresses number conservation
		for i := 0; i < nl; i++ {
			m.Set(nl-1, i, a.Levels[i].NLTE)
		}
		b.SetVec(nl-1, 1.0)

		var lu mat.LU
		lu.Factorize(m)
		if err := lu.SolveVecTo(x, false, b); err != nil {
			a.NonConvergences++
			return false
		}

		for i := 0; i < nl; i++ {
			bi := x.AtVec(i)
			a.Levels[i].B = bi
			a.Levels[i].N = bi * a.Levels[i].NLTE
		}

		// ionization fractions from the solved populations
		for i := range a.Ions {
			a.Ions[i].Frac = 0
		}
		for i := range a.Levels {
			a.Ions[a.Levels[i].Ion].Frac += a.Levels[i].N
		}

		if !a.UseBetas {
			return true
		}

		converged := true
		for i := range a.Lines {
			oldBeta := a.Lines[i].Beta
			a.computeSobolevTau(i, time)
			newBeta := a.Lines[i].Beta
			if math.Abs(oldBeta-newBeta)/newBeta > betaTol {
				converged = false
			}
		}
		if converged {
			return true
		}
	}

	a.NonConvergences++
	return false
}

// ComputeSobolevTaus refreshes every line's Sobolev depth and escape
// probability from the current populations.
func (a *Atom) ComputeSobolevTaus(time float64) {
	for i := range a.Lines {
		a.computeSobolevTau(i, time)
	}
}

func (a *Atom) computeSobolevTau(i int, time float64) float64 {
	line := &a.Lines[i]
	nl := a.Levels[line.Ll].N
	nu := a.Levels[line.Lu].N
	gl := a.Levels[line.Ll].G
	gu := a.Levels[line.Lu].G

	if nl < math.SmallestNonzeroFloat64 {
		line.Tau = 0
		line.ETau = 1
		line.Beta = 1
		return 0
	}

	lam := constants.C / line.Nu
	tau := nl * a.NDens * constants.SigmaTot * line.FLu * time * lam
	// correction for stimulated emission
	tau = tau * (1 - nu*gl/(nl*gu))

	if nu*gl > nl*gu {
		// laser regime; clamp rather than abort
		a.LaserWarnings++
		line.Tau = 0
		line.ETau = 1
		line.Beta = 1
		return 0
	}

	etau := math.Exp(-tau)
	line.Tau = tau
	line.ETau = etau
	if tau < 1e-10 {
		line.Beta = 1
	} else {
		line.Beta = (1 - etau) / tau
	}
	return tau
}
