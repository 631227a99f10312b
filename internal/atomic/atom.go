// Package atomic models a single atomic species for the NLTE level
// population problem: levels, ionization stages, bound-bound lines, and
// the dense rate matrix tying them together.
//
// The level populations solve M x = b where x are departure coefficients
// from LTE. One rate equation is redundant, so the last row of M is
// replaced by number conservation (sum of fractions = 1).
package atomic

import (
	"math"

	"github.com/Knights-Templars/pubsed/internal/constants"
	"github.com/Knights-Templars/pubsed/internal/utils"
)

// Level is one bound level of some ionization stage.
type Level struct {
	GlobalID int
	Ion      int     // ion stage index within the atom
	E        float64 // excitation energy above the ion ground [eV]
	G        float64 // statistical weight
	IC       int     // level index ionized to, -1 for the topmost stage
	EIon     float64 // ionization energy from this level [eV]

	// photoionization cross-section table: photon energy [eV] -> sigma [cm^2]
	SPhotoE, SPhotoS []float64
	// radiative recombination coefficient table: T [K] -> alpha [cm^3 s^-1]
	ARecT, ARecA []float64

	// solved state
	N    float64 // population fraction
	NLTE float64 // LTE population fraction
	B    float64 // departure coefficient
}

// Ion is one ionization stage.
type Ion struct {
	Stage int
	Chi   float64 // ionization potential to the next stage [eV]
	Part  float64 // partition function
	Frac  float64 // ionization fraction
}

// Line is one bound-bound transition.
type Line struct {
	Ll, Lu int
	Nu     float64 // rest frequency [Hz]
	FLu    float64
	AUl    float64
	BUl    float64
	BLu    float64

	J    float64 // line mean intensity
	Tau  float64 // Sobolev optical depth
	ETau float64
	Beta float64 // escape probability
}

// Atom bundles the species data with the solver workspace.
type Atom struct {
	Z      int // atomic number
	Levels []Level
	Ions   []Ion
	Lines  []Line

	NDens  float64 // total number density of the species [cm^-3]
	EGamma float64 // non-thermal deposition rate [erg s^-1 cm^-3]

	UseBetas       bool
	NoGroundRecomb bool

	// counters surfaced to the caller as aggregated warnings
	LaserWarnings   int
	NonConvergences int

	rates [][]float64
}

// NewAtom allocates the rate workspace for the given species data.
func NewAtom(z int, levels []Level, ions []Ion, lines []Line) *Atom {
	a := &Atom{Z: z, Levels: levels, Ions: ions, Lines: lines}
	n := len(levels)
	a.rates = make([][]float64, n)
	for i := range a.rates {
		a.rates[i] = make([]float64, n)
	}
	return a
}

// Clone deep-copies the atom so each worker can own a private solver
// state.
func (a *Atom) Clone() *Atom {
	levels := append([]Level(nil), a.Levels...)
	for i := range levels {
		levels[i].SPhotoE = append([]float64(nil), levels[i].SPhotoE...)
		levels[i].SPhotoS = append([]float64(nil), levels[i].SPhotoS...)
		levels[i].ARecT = append([]float64(nil), levels[i].ARecT...)
		levels[i].ARecA = append([]float64(nil), levels[i].ARecA...)
	}
	c := NewAtom(a.Z, levels, append([]Ion(nil), a.Ions...), append([]Line(nil), a.Lines...))
	c.NDens = a.NDens
	c.EGamma = a.EGamma
	c.UseBetas = a.UseBetas
	c.NoGroundRecomb = a.NoGroundRecomb
	return c
}

func (a *Atom) NLevels() int { return len(a.Levels) }
func (a *Atom) NIons() int   { return len(a.Ions) }
func (a *Atom) NLines() int  { return len(a.Lines) }

// SolveLTE sets level populations to the Saha-Boltzmann distribution at
// (T, ne) and resets the departure coefficients to 1.
func (a *Atom) SolveLTE(T, ne float64) {
	// partition functions
	for i := range a.Ions {
		a.Ions[i].Part = 0
	}
	for i := range a.Levels {
		l := &a.Levels[i]
		l.N = l.G * math.Exp(-l.E/constants.KEv/T)
		a.Ions[l.Ion].Part += l.N
	}

	// square of the thermal de Broglie wavelength, lam_t^2
	lt := constants.H * constants.H / (2.0 * math.Pi * constants.MElectron * constants.K * T)
	fac := 2 / ne / math.Pow(lt, 1.5)

	// saha ratios of stage i to i-1
	a.Ions[0].Frac = 1.0
	norm := 1.0
	for i := 1; i < len(a.Ions); i++ {
		saha := math.Exp(-a.Ions[i-1].Chi / constants.KEv / T)
		saha = saha * (a.Ions[i].Part / a.Ions[i-1].Part) * fac
		a.Ions[i].Frac = saha * a.Ions[i-1].Frac
		if ne < 1e-50 {
			a.Ions[i].Frac = 0
		}
		norm += a.Ions[i].Frac
	}
	for i := range a.Ions {
		a.Ions[i].Frac /= norm
	}

	// boltzmann level populations
	for i := range a.Levels {
		l := &a.Levels[i]
		ion := &a.Ions[l.Ion]
		l.N = ion.Frac * l.G * math.Exp(-l.E/constants.KEv/T) / ion.Part
		l.NLTE = l.N
		l.B = 1
	}
}

// GetIonFrac returns the population-weighted mean charge.
func (a *Atom) GetIonFrac() float64 {
	x := 0.0
	for i := range a.Levels {
		x += a.Levels[i].N * float64(a.Levels[i].Ion)
	}
	return x
}

// IonFraction returns the solved fraction in stage i.
func (a *Atom) IonFraction(i int) float64 { return a.Ions[i].Frac }

// SeedLineJ sets every line mean intensity to a dilute blackbody at T.
func (a *Atom) SeedLineJ(T, w float64) {
	for i := range a.Lines {
		a.Lines[i].J = w * utils.BlackbodyNu(T, a.Lines[i].Nu)
	}
}

// RecombinationCoefficient evaluates the level's alpha_rec at T, falling
// back to the Milne integral over the photoionization table when no
// tabulated coefficient exists.
func (a *Atom) RecombinationCoefficient(lev int, T float64) float64 {
	l := &a.Levels[lev]
	if len(l.ARecT) > 0 {
		// clamped table lookup
		if T <= l.ARecT[0] {
			return l.ARecA[0]
		}
		n := len(l.ARecT)
		if T >= l.ARecT[n-1] {
			return l.ARecA[n-1]
		}
		for j := 1; j < n; j++ {
			if T < l.ARecT[j] {
				slope := (l.ARecA[j] - l.ARecA[j-1]) / (l.ARecT[j] - l.ARecT[j-1])
				return l.ARecA[j-1] + slope*(T-l.ARecT[j-1])
			}
		}
	}
	return a.milne(lev, T)
}

// milne integrates the Milne relation over the photoionization table.
func (a *Atom) milne(lev int, temp float64) float64 {
	l := &a.Levels[lev]
	if l.IC == -1 || len(l.SPhotoE) == 0 {
		return 0
	}

	vMB := math.Sqrt(2 * constants.K * temp / constants.MElectron)
	mbA := 4 / math.Sqrt(math.Pi) * math.Pow(vMB, -3)
	mbB := constants.MElectron / constants.K / 2.0 / temp
	milneFac := math.Pow(constants.H/constants.C/constants.MElectron, 2)

	sum := 0.0
	nuT := l.EIon * constants.EvToErgs / constants.H
	var oldVel, oldCoef float64
	for i := 1; i < len(a.Levels[lev].SPhotoE); i++ {
		E := l.SPhotoE[i]
		S := l.SPhotoS[i]
		nu := E * constants.EvToErgs / constants.H
		vel := 0.0
		if nu > nuT {
			vel = math.Sqrt(2 * constants.H * (nu - nuT) / constants.MElectron)
		}
		coef := 0.0
		if vel > 0 {
			fMB := mbA * vel * vel * math.Exp(-mbB*vel*vel)
			sigma := milneFac * S * nu * nu / vel / vel
			coef = vel * sigma * fMB
		}
		sum += 0.5 * (coef + oldCoef) * (vel - oldVel)
		oldVel = vel
		oldCoef = coef
	}

	return l.G / a.Levels[l.IC].G * sum
}
