package transport

import (
	"math"

	"github.com/Knights-Templars/pubsed/internal/constants"
	"github.com/Knights-Templars/pubsed/internal/rng"
)

// doScatter dispatches on the particle kind: Klein-Nishina Compton for
// gamma-rays, isotropic coherent scattering for photons (optionally
// Compton against thermal electrons).
func (t *Solver) doScatter(p *Particle, eps float64, stream *rng.Stream) Fate {
	p.XInteract = p.X

	switch {
	case p.Type == GammaRay:
		t.comptonScatter(p, stream)
	case t.comptonScatterPhotons:
		t.comptonScatterPhoton(p, stream)
	default:
		t.isotropicScatter(p, stream)
	}
	return Moving
}

// isotropicScatter redirects the packet isotropically in the comoving
// frame.
func (t *Solver) isotropicScatter(p *Particle, stream *rng.Stream) {
	t.TransformLabToComoving(p)
	sampleIsotropic(&p.D, stream)
	t.TransformComovingToLab(p)
}

func sampleIsotropic(d *[3]float64, stream *rng.Stream) {
	mu := 1 - 2.0*stream.Uniform()
	phi := 2.0 * math.Pi * stream.Uniform()
	smu := math.Sqrt(1 - mu*mu)
	d[0] = smu * math.Cos(phi)
	d[1] = smu * math.Sin(phi)
	d[2] = mu
}

// rotateAbout redirects d by polar angle (cosTheta) about its own axis
// with azimuth phi.
func rotateAbout(d [3]float64, cosTheta, phi float64) [3]float64 {
	sinTheta := math.Sqrt(1 - cosTheta*cosTheta)

	// orthonormal basis around d
	var u [3]float64
	if math.Abs(d[2]) < 0.99 {
		u = [3]float64{-d[1], d[0], 0}
	} else {
		u = [3]float64{0, -d[2], d[1]}
	}
	un := math.Sqrt(u[0]*u[0] + u[1]*u[1] + u[2]*u[2])
	for i := range u {
		u[i] /= un
	}
	v := [3]float64{
		d[1]*u[2] - d[2]*u[1],
		d[2]*u[0] - d[0]*u[2],
		d[0]*u[1] - d[1]*u[0],
	}

	var out [3]float64
	for i := 0; i < 3; i++ {
		out[i] = cosTheta*d[i] + sinTheta*(math.Cos(phi)*u[i]+math.Sin(phi)*v[i])
	}
	n := math.Sqrt(out[0]*out[0] + out[1]*out[1] + out[2]*out[2])
	for i := range out {
		out[i] /= n
	}
	return out
}

// comptonScatter performs Klein-Nishina Compton scattering of a
// gamma-ray; the packet frequency carries its energy in MeV.
func (t *Solver) comptonScatter(p *Particle, stream *rng.Stream) {
	t.TransformLabToComoving(p)

	x := p.Nu / constants.MElectronMeV

	// rejection sample the KN angular distribution
	var cosTheta, ratio float64
	for {
		cosTheta = 1 - 2*stream.Uniform()
		ratio = 1 / (1 + x*(1-cosTheta)) // nu'/nu
		sin2 := 1 - cosTheta*cosTheta
		w := 0.5 * ratio * ratio * (ratio + 1/ratio - sin2)
		if stream.Uniform() < w {
			break
		}
	}

	phi := 2 * math.Pi * stream.Uniform()
	p.D = rotateAbout(p.D, cosTheta, phi)

	// the packet hands the recoil energy to the electrons
	p.Nu *= ratio
	p.E *= ratio

	t.TransformComovingToLab(p)
}

// comptonScatterPhoton Compton-scatters an optical photon off a thermal
// electron drawn from the tabulated Maxwell-Boltzmann distribution.
func (t *Solver) comptonScatterPhoton(p *Particle, stream *rng.Stream) {
	t.TransformLabToComoving(p)

	// thermal electron velocity
	tg := t.grid.Zone(p.Ind).TGas
	vth := math.Sqrt(2 * constants.K * tg / constants.MElectron)
	iv := t.mbCDF.Sample(stream.Uniform())
	vmag := (float64(iv) + stream.Uniform()) * t.mbDV * vth
	if vmag >= 0.1*constants.C {
		vmag = 0.1 * constants.C
	}
	var vel [3]float64
	sampleIsotropic(&vel, stream)
	for i := range vel {
		vel[i] *= vmag
	}

	// boost into the electron frame, scatter coherently, boost back
	lorentzTransform(p, vel)
	sampleIsotropic(&p.D, stream)
	lorentzTransform(p, [3]float64{-vel[0], -vel[1], -vel[2]})

	t.TransformComovingToLab(p)
}
