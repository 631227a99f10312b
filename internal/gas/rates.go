package gas

import (
	"math"

	"github.com/Knights-Templars/pubsed/internal/constants"
	"github.com/Knights-Templars/pubsed/internal/utils"
)

// ComputeHeatingCooling fills the bf/ff/collisional heating and cooling
// rates [erg s^-1 cm^-3] from the current populations and the zone mean
// intensity. These back the NLTE radiative-equilibrium residual.
func (s *State) ComputeHeatingCooling(jNu []float64) {
	s.BfHeating, s.BfCooling = 0, 0
	s.FfHeating, s.FfCooling = 0, 0
	s.CollCooling = 0

	ng := s.nuGrid.Size()
	ff := make([]float64, ng)
	bf := make([]float64, ng)
	s.addFreeFree(ff)
	s.addBoundFree(bf)

	haveJ := len(jNu) == ng
	for j := 0; j < ng; j++ {
		nu := s.nuGrid.Center(j)
		dnu := s.nuGrid.Delta(j)
		b := utils.BlackbodyNu(s.Temp, nu)
		var jv float64
		if haveJ {
			jv = jNu[j]
		}
		s.FfHeating += 4 * math.Pi * ff[j] * jv * dnu
		s.FfCooling += 4 * math.Pi * ff[j] * b * dnu
		s.BfHeating += 4 * math.Pi * bf[j] * jv * dnu
		s.BfCooling += 4 * math.Pi * bf[j] * b * dnu
	}

	// net collisional bound-bound cooling: upward collisions take thermal
	// energy, downward ones return it
	for _, z := range s.elemsZ {
		a, ok := s.atoms[z]
		if !ok || a == nil {
			continue
		}
		for li := range a.Lines {
			line := &a.Lines[li]
			dE := (a.Levels[line.Lu].E - a.Levels[line.Ll].E) * constants.EvToErgs
			zeta := dE / constants.K / s.Temp
			cDown := 2.16 * math.Pow(zeta, -1.68) * math.Pow(s.Temp, -1.5) * s.NElec
			cUp := cDown * a.Levels[line.Lu].G / a.Levels[line.Ll].G * math.Exp(-zeta)
			nl := a.Levels[line.Ll].N * a.NDens
			nu := a.Levels[line.Lu].N * a.NDens
			s.CollCooling += (cUp*nl - cDown*nu) * dE
		}
	}
}

// NetHeating is the radiative-equilibrium residual for the NLTE solve.
func (s *State) NetHeating() float64 {
	return (s.BfHeating + s.FfHeating) - (s.BfCooling + s.FfCooling + s.CollCooling)
}
