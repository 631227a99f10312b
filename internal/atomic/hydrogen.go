package atomic

import (
	"math"

	"github.com/Knights-Templars/pubsed/internal/constants"
)

const hydrogenChi = 13.5984 // eV

// NewHydrogen builds a hydrogen model atom with n bound levels of H I
// plus the bare proton, Lyman-series lines from the ground state, and
// hydrogenic photoionization cross sections. It stands in when no atomic
// data file is supplied and anchors the closed-form Saha-Boltzmann tests.
func NewHydrogen(nLevels int) *Atom {
	var levels []Level
	for n := 1; n <= nLevels; n++ {
		fn := float64(n)
		en := hydrogenChi * (1 - 1/(fn*fn))
		lev := Level{
			GlobalID: n - 1,
			Ion:      0,
			E:        en,
			G:        2 * fn * fn,
			IC:       nLevels,
			EIon:     hydrogenChi - en,
		}
		// hydrogenic nu^-3 photoionization cross section from threshold
		sigma0 := 6.30e-18 / (fn * fn * fn) // cm^2 at threshold
		for k := 0; k < 12; k++ {
			e := lev.EIon * math.Pow(1.25, float64(k))
			lev.SPhotoE = append(lev.SPhotoE, e)
			lev.SPhotoS = append(lev.SPhotoS, sigma0*math.Pow(lev.EIon/e, 3))
		}
		levels = append(levels, lev)
	}
	// continuum: H II ground
	levels = append(levels, Level{GlobalID: nLevels, Ion: 1, E: 0, G: 1, IC: -1})

	ions := []Ion{
		{Stage: 0, Chi: hydrogenChi},
		{Stage: 1, Chi: 1e99},
	}

	// Lyman lines; oscillator strengths from the Kramers formula
	var lines []Line
	for n := 2; n <= nLevels; n++ {
		fn := float64(n)
		nu := (levels[n-1].E - levels[0].E) * constants.EvToErgs / constants.H
		flu := 1.6 / (fn * fn * fn) // approximate f_1n
		gu := levels[n-1].G
		gl := levels[0].G
		// A_ul = 8 pi^2 e^2 / (m_e c^3) nu^2 (g_l/g_u) f_lu
		aul := 8 * math.Pi * constants.SigmaTot / (constants.C * constants.C) * nu * nu * gl / gu * flu
		bul := aul * constants.C * constants.C / (2 * constants.H * nu * nu * nu)
		blu := bul * gu / gl
		lines = append(lines, Line{
			Ll: 0, Lu: n - 1, Nu: nu,
			FLu: flu, AUl: aul, BUl: bul, BLu: blu,
			Beta: 1, ETau: 1,
		})
	}

	return NewAtom(1, levels, ions, lines)
}
