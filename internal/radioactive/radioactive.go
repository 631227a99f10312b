// Package radioactive supplies the decay energy rates and composition
// evolution for the isotopes that power supernova and kilonova light
// curves.
package radioactive

import (
	"math"

	"github.com/Knights-Templars/pubsed/internal/constants"
)

// Mean lifetimes [s].
const (
	TauNi56 = 8.80 * constants.DayToSec
	TauCo56 = 111.3 * constants.DayToSec
)

// Energy per decay [MeV].
const (
	QGammaNi56    = 1.75
	QGammaCo56    = 3.61
	QPositronCo56 = 0.12
)

// r-process heating fit: eps = rprocessEps0 * (t/1 day)^-1.3 erg/g/s,
// with a fixed gamma-ray share.
const (
	rprocessEps0      = 1.0e10
	rprocessSlope     = -1.3
	rprocessGammaFrac = 0.4
)

func isotopeIndex(elemsZ, elemsA []int, z, a int) int {
	for i := range elemsZ {
		if elemsZ[i] == z && elemsA[i] == a {
			return i
		}
	}
	return -1
}

// Decay returns the instantaneous specific heating rate [erg g^-1 s^-1]
// for the composition x at time t, along with the fraction of that energy
// emerging as gamma-rays. x holds the mass fractions at t = 0.
func Decay(elemsZ, elemsA []int, x []float64, t float64, forceRprocess bool) (rate, gammaFrac float64) {
	iNi := isotopeIndex(elemsZ, elemsA, 28, 56)

	var lGamma, lPositron float64

	if iNi >= 0 && x[iNi] > 0 {
		// number of Ni56 nuclei per gram at t = 0
		n0 := x[iNi] / (56.0 * constants.AMU)
		nNi := n0 * math.Exp(-t/TauNi56)
		nCo := n0 * TauCo56 / (TauCo56 - TauNi56) *
			(math.Exp(-t/TauCo56) - math.Exp(-t/TauNi56))

		lGamma += nNi / TauNi56 * QGammaNi56 * constants.MeVToErgs
		lGamma += nCo / TauCo56 * QGammaCo56 * constants.MeVToErgs
		lPositron += nCo / TauCo56 * QPositronCo56 * constants.MeVToErgs
	}

	if forceRprocess {
		tday := t / constants.DayToSec
		if tday < 1e-4 {
			tday = 1e-4
		}
		eps := rprocessEps0 * math.Pow(tday, rprocessSlope)
		lGamma += eps * rprocessGammaFrac
		lPositron += eps * (1 - rprocessGammaFrac)
	}

	rate = lGamma + lPositron
	if rate == 0 {
		return 0, 0
	}
	return rate, lGamma / rate
}

// DecayComposition evolves the Ni56 -> Co56 -> Fe56 chain mass fractions
// in place to time t. Mass fractions of the chain members stay normalized
// (A = 56 throughout).
func DecayComposition(elemsZ, elemsA []int, x []float64, t float64) {
	iNi := isotopeIndex(elemsZ, elemsA, 28, 56)
	iCo := isotopeIndex(elemsZ, elemsA, 27, 56)
	iFe := isotopeIndex(elemsZ, elemsA, 26, 56)
	if iNi < 0 || x[iNi] == 0 {
		return
	}

	x0 := x[iNi]
	fNi := math.Exp(-t / TauNi56)
	fCo := TauCo56 / (TauCo56 - TauNi56) *
		(math.Exp(-t/TauCo56) - math.Exp(-t/TauNi56))

	x[iNi] = x0 * fNi
	if iCo >= 0 {
		x[iCo] += x0 * fCo
	}
	if iFe >= 0 {
		x[iFe] += x0 * (1 - fNi - fCo)
	}
}
