package transport

import "math"

// PType tags the packet species.
type PType int

const (
	Photon PType = iota
	GammaRay
)

// Fate is the outcome of propagating a particle within one time step.
type Fate int

const (
	Moving Fate = iota
	Stopped
	Escaped
	Absorbed
)

// Particle is one Monte Carlo energy packet in the lab frame.
type Particle struct {
	X  [3]float64 // position [cm]
	D  [3]float64 // unit direction cosines
	Nu float64    // lab-frame frequency [Hz]
	E  float64    // lab-frame packet energy [erg]
	T  float64    // absolute time [s]

	Ind  int // current zone, or geom.IndexAbsorbed / geom.IndexEscaped
	Type PType

	// position of emission or last interaction, for observer-time binning
	XInteract [3]float64
}

// R is the radius of the particle position.
func (p *Particle) R() float64 {
	return math.Sqrt(p.X[0]*p.X[0] + p.X[1]*p.X[1] + p.X[2]*p.X[2])
}

// XDotD projects the position onto the flight direction.
func (p *Particle) XDotD() float64 {
	return p.X[0]*p.D[0] + p.X[1]*p.D[1] + p.X[2]*p.D[2]
}
