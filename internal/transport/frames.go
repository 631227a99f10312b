package transport

import (
	"math"

	"github.com/Knights-Templars/pubsed/internal/constants"
)

// dshiftLabToComoving is the Doppler factor nu_cmf/nu_lab =
// gamma*(1 - v.D/c) at the particle's position.
func (t *Solver) dshiftLabToComoving(p *Particle) float64 {
	v := t.grid.Velocity(p.X, p.Ind)
	return dopplerFactor(v, p.D)
}

func dopplerFactor(v, d [3]float64) float64 {
	beta2 := (v[0]*v[0] + v[1]*v[1] + v[2]*v[2]) / (constants.C * constants.C)
	gamma := 1.0 / math.Sqrt(1-beta2)
	vdd := v[0]*d[0] + v[1]*d[1] + v[2]*d[2]
	return gamma * (1 - vdd/constants.C)
}

// lorentzTransform boosts the particle by velocity v: frequency, energy,
// and direction (aberration). Pass the fluid velocity for lab->comoving
// and its negation for comoving->lab.
func lorentzTransform(p *Particle, v [3]float64) {
	beta2 := (v[0]*v[0] + v[1]*v[1] + v[2]*v[2]) / (constants.C * constants.C)
	gamma := 1.0 / math.Sqrt(1-beta2)
	vdd := v[0]*p.D[0] + v[1]*p.D[1] + v[2]*p.D[2]
	dshift := gamma * (1 - vdd/constants.C)

	var newD [3]float64
	for i := 0; i < 3; i++ {
		newD[i] = 1.0 / dshift * (p.D[i] - gamma*v[i]/constants.C*(1-gamma*vdd/constants.C/(gamma+1)))
	}
	// renormalize against accumulated roundoff
	norm := math.Sqrt(newD[0]*newD[0] + newD[1]*newD[1] + newD[2]*newD[2])
	for i := 0; i < 3; i++ {
		p.D[i] = newD[i] / norm
	}
	p.Nu *= dshift
	p.E *= dshift
}

// TransformLabToComoving boosts into the local fluid frame.
func (t *Solver) TransformLabToComoving(p *Particle) {
	lorentzTransform(p, t.grid.Velocity(p.X, p.Ind))
}

// TransformComovingToLab boosts back to the grid frame.
func (t *Solver) TransformComovingToLab(p *Particle) {
	v := t.grid.Velocity(p.X, p.Ind)
	lorentzTransform(p, [3]float64{-v[0], -v[1], -v[2]})
}
