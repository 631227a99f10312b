// Package gas solves the microphysical state of one zone's material and
// assembles its frequency-dependent opacities and emissivities.
package gas

import (
	"fmt"
	"math"

	"github.com/wildstyl3r/lxgata"

	"github.com/Knights-Templars/pubsed/internal/atomic"
	"github.com/Knights-Templars/pubsed/internal/constants"
	"github.com/Knights-Templars/pubsed/internal/utils"
)

// Solve error codes, counted per rank and surfaced as warnings.
const (
	SolveOK = iota
	SolveRootError
	SolveIterError
)

// Options carries the opacity feature flags and parameters, one set per
// run.
type Options struct {
	UseElectronScattering bool
	UseLineExpansion      bool
	UseFuzzExpansion      bool
	UseBoundFree          bool
	UseBoundBound         bool
	UseFreeFree           bool
	UseUserOpacity        bool

	UseNLTE           bool
	UseCollisionsNLTE bool
	NoGroundRecomb    bool
	AtomsInNLTE       []int

	GreyOpacity       float64 // global grey opacity [cm^2 g^-1]
	Epsilon           float64 // absorption fraction of grey opacity
	MinimumExtinction float64
	LineVelocityWidth float64 // [cm s^-1], Gaussian width of detailed lines

	UserOpacityFile string
	FuzzlineFile    string
}

// FuzzLine is one weak line carried only through the expansion opacity.
type FuzzLine struct {
	Z    int
	Nu   float64
	Gf   float64
	ELow float64 // [eV]
}

// State is the per-worker gas-state solver. Load it with a zone's fluid
// state, call SolveState, then ComputeOpacity.
type State struct {
	Opts Options

	// zone inputs
	Dens   float64
	Temp   float64
	Time   float64
	EGamma float64 // non-thermal deposition [erg s^-1 cm^-3]

	// per-zone grey overrides
	BulkGreyOpacity  float64
	TotalGreyOpacity float64

	// solved outputs
	NElec float64

	// heating/cooling rates from the last solve [erg s^-1 cm^-3]
	BfHeating, BfCooling float64
	FfHeating, FfCooling float64
	CollCooling          float64

	elemsZ, elemsA []int
	massFrac       []float64
	nuGrid         utils.LocateArray

	atoms map[int]*atomic.Atom // keyed by element Z, nil entry = no data

	userOpacity lxgata.Collisions
	fuzzLines   []FuzzLine

	nlteEnabled bool
}

// NewState builds a worker-private state. atomsByZ supplies model atoms
// for the elements that have them; elements without data contribute only
// scattering and free-free assuming single ionization.
func NewState(opts Options, atomsByZ map[int]*atomic.Atom, elemsZ, elemsA []int, nuGrid utils.LocateArray) *State {
	s := &State{
		Opts:   opts,
		elemsZ: elemsZ,
		elemsA: elemsA,
		nuGrid: nuGrid,
		atoms:  make(map[int]*atomic.Atom),
	}
	for z, a := range atomsByZ {
		c := a.Clone()
		c.NoGroundRecomb = opts.NoGroundRecomb
		s.atoms[z] = c
	}
	s.massFrac = make([]float64, len(elemsZ))
	s.nlteEnabled = opts.UseNLTE
	return s
}

// LoadUserOpacity reads the cross-section table backing the user-defined
// opacity component.
func (s *State) LoadUserOpacity() error {
	if !s.Opts.UseUserOpacity || s.Opts.UserOpacityFile == "" {
		return nil
	}
	cs, err := lxgata.LoadCrossSections(s.Opts.UserOpacityFile)
	if err != nil {
		return fmt.Errorf("invalid user opacity cross section file: %w", err)
	}
	s.userOpacity = cs
	return nil
}

// ReadFuzzfile loads the weak-line list for the fuzz expansion opacity.
// Columns: Z nu gf E_low.
func (s *State) ReadFuzzfile(filename string) (int, error) {
	if filename == "" {
		return 0, nil
	}
	rows, err := utils.ReadFloatColumns(filename, 4)
	if err != nil {
		return 0, err
	}
	for _, r := range rows {
		s.fuzzLines = append(s.fuzzLines, FuzzLine{Z: int(r[0]), Nu: r[1], Gf: r[2], ELow: r[3]})
	}
	return len(s.fuzzLines), nil
}

// SetFuzzLines injects an already-loaded weak-line list (shared across
// worker states).
func (s *State) SetFuzzLines(lines []FuzzLine) { s.fuzzLines = lines }

// TakeWarnings returns and clears the laser-regime and non-convergence
// counters accumulated by this state's atoms.
func (s *State) TakeWarnings() (laser, nonconv int) {
	for _, a := range s.atoms {
		if a == nil {
			continue
		}
		laser += a.LaserWarnings
		nonconv += a.NonConvergences
		a.LaserWarnings = 0
		a.NonConvergences = 0
	}
	return laser, nonconv
}

// TurnOffNLTE forces LTE populations; used on the first step before any
// radiation field exists.
func (s *State) TurnOffNLTE() { s.nlteEnabled = false }

// TurnOnNLTE restores the configured NLTE behavior.
func (s *State) TurnOnNLTE() { s.nlteEnabled = s.Opts.UseNLTE }

// SetMassFractions copies the (possibly decayed) composition in.
func (s *State) SetMassFractions(x []float64) {
	copy(s.massFrac, x)
}

// elemNumberDensity is the number density of element k [cm^-3].
func (s *State) elemNumberDensity(k int) float64 {
	return s.massFrac[k] * s.Dens / (float64(s.elemsA[k]) * constants.MProton)
}

func (s *State) atomInNLTE(z int) bool {
	if !s.nlteEnabled {
		return false
	}
	if len(s.Opts.AtomsInNLTE) == 0 {
		return true
	}
	for _, az := range s.Opts.AtomsInNLTE {
		if az == z {
			return true
		}
	}
	return false
}

// SolveState determines the electron density consistent with the
// ionization state at the current (dens, temp), then solves the flagged
// atoms in NLTE against the zone mean intensity jNu (indexed like the
// frequency grid).
func (s *State) SolveState(jNu []float64) int {
	nTot := 0.0
	maxCharge := 0.0
	for k := range s.elemsZ {
		nTot += s.elemNumberDensity(k)
		maxCharge += s.elemNumberDensity(k) * float64(s.elemsZ[k])
	}
	if nTot == 0 {
		s.NElec = 0
		return SolveOK
	}

	// charge conservation residual
	f := func(ne float64) float64 {
		charge := 0.0
		for k := range s.elemsZ {
			nk := s.elemNumberDensity(k)
			if nk == 0 {
				continue
			}
			if a, ok := s.atoms[s.elemsZ[k]]; ok && a != nil {
				a.NDens = nk
				a.SolveLTE(s.Temp, ne)
				charge += nk * a.GetIonFrac()
			} else {
				// no atomic data; assume singly ionized
				charge += nk
			}
		}
		return charge - ne
	}

	lo := 1e-15 * nTot
	hi := 1.05 * maxCharge
	ne, iters := utils.BrentSolve(f, lo, hi, 1e-8)
	if iters == -1 {
		// no sign change; fall back to the closer endpoint
		if math.Abs(f(hi)) < math.Abs(f(lo)) {
			s.NElec = hi
		} else {
			s.NElec = lo
		}
		return SolveRootError
	}
	s.NElec = ne

	status := SolveOK
	if iters >= utils.BrentMaxIter {
		status = SolveIterError
	}

	// final populations at the solved n_e
	for k := range s.elemsZ {
		a, ok := s.atoms[s.elemsZ[k]]
		if !ok || a == nil {
			continue
		}
		a.NDens = s.elemNumberDensity(k)
		a.EGamma = s.EGamma
		a.UseBetas = false
		if s.atomInNLTE(s.elemsZ[k]) {
			a.UseBetas = true
			a.SeedLineJ(s.Temp, 1.0)
			s.setLineJFromField(a, jNu)
			if !a.SolveNLTE(s.Temp, s.NElec, s.Time) {
				status = SolveIterError
			}
		} else {
			a.SolveLTE(s.Temp, s.NElec)
			a.ComputeSobolevTaus(s.Time)
		}
	}
	return status
}

// setLineJFromField overwrites the blackbody line seeds with the stored
// zone mean intensity where it exists.
func (s *State) setLineJFromField(a *atomic.Atom, jNu []float64) {
	if len(jNu) != s.nuGrid.Size() {
		return
	}
	for i := range a.Lines {
		nu := a.Lines[i].Nu
		if nu <= s.nuGrid.MinVal() || nu >= s.nuGrid.MaxVal() {
			continue
		}
		j := s.nuGrid.ValueAt(nu, jNu)
		if j > 0 {
			a.Lines[i].J = j
		}
	}
}
