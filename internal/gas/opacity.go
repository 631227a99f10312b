package gas

import (
	"math"

	"github.com/Knights-Templars/pubsed/internal/constants"
	"github.com/Knights-Templars/pubsed/internal/utils"
)

// ComputeOpacity fills the comoving absorption and scattering opacity
// arrays [cm^-1] and the emissivity [erg s^-1 cm^-3 Hz^-1 ster^-1] over
// the frequency grid for the currently loaded zone state.
func (s *State) ComputeOpacity(abs, scat, emis []float64) {
	ng := s.nuGrid.Size()
	for j := 0; j < ng; j++ {
		abs[j] = 0
		scat[j] = 0
		emis[j] = 0
	}

	// grey override short-circuits the microphysics
	grey := s.Opts.GreyOpacity
	if s.TotalGreyOpacity != 0 {
		grey = s.TotalGreyOpacity
	}
	if grey != 0 {
		eps := s.Opts.Epsilon
		for j := 0; j < ng; j++ {
			abs[j] = eps * grey * s.Dens
			scat[j] = (1 - eps) * grey * s.Dens
			emis[j] = abs[j] * utils.BlackbodyNu(s.Temp, s.nuGrid.Center(j))
		}
		return
	}

	if s.BulkGreyOpacity != 0 {
		for j := 0; j < ng; j++ {
			scat[j] += s.BulkGreyOpacity * s.Dens
		}
	}

	if s.Opts.UseElectronScattering {
		es := constants.ThomsonCS * s.NElec
		for j := 0; j < ng; j++ {
			scat[j] += es
		}
	}

	if s.Opts.UseFreeFree {
		s.addFreeFree(abs)
	}
	if s.Opts.UseBoundFree {
		s.addBoundFree(abs)
	}
	if s.Opts.UseLineExpansion {
		s.addLineExpansion(abs)
	}
	if s.Opts.UseBoundBound {
		s.addBoundBound(abs)
	}
	if s.Opts.UseFuzzExpansion {
		s.addFuzzExpansion(abs)
	}
	if s.Opts.UseUserOpacity && s.userOpacity != nil {
		nTot := 0.0
		for k := range s.elemsZ {
			nTot += s.elemNumberDensity(k)
		}
		for j := 0; j < ng; j++ {
			eEv := constants.H * s.nuGrid.Center(j) / constants.EvToErgs
			abs[j] += nTot * s.userOpacity.TotalCrossSectionAt(eEv)
		}
	}

	for j := 0; j < ng; j++ {
		if abs[j] < s.Opts.MinimumExtinction {
			abs[j] = s.Opts.MinimumExtinction
		}
		if math.IsNaN(abs[j]) || math.IsNaN(scat[j]) {
			panic("NaN opacity")
		}
		// kirchhoff emissivity from the absorptive part
		emis[j] = abs[j] * utils.BlackbodyNu(s.Temp, s.nuGrid.Center(j))
	}
}

// addFreeFree adds the Kramers free-free opacity summed over ions,
// with the stimulated-emission correction.
func (s *State) addFreeFree(abs []float64) {
	for j := 0; j < s.nuGrid.Size(); j++ {
		nu := s.nuGrid.Center(j)
		zeta := constants.H * nu / constants.K / s.Temp
		stim := 1 - math.Exp(-zeta)
		pref := 3.7e8 * stim * math.Pow(s.Temp, -0.5) / (nu * nu * nu) * s.NElec
		for k := range s.elemsZ {
			nk := s.elemNumberDensity(k)
			if nk == 0 {
				continue
			}
			q := 1.0
			if a, ok := s.atoms[s.elemsZ[k]]; ok && a != nil {
				q = a.GetIonFrac()
			}
			abs[j] += pref * q * q * nk
		}
	}
}

// addBoundFree integrates the photoionization cross-section tables of
// every populated level.
func (s *State) addBoundFree(abs []float64) {
	for _, z := range s.elemsZ {
		a, ok := s.atoms[z]
		if !ok || a == nil {
			continue
		}
		for li := range a.Levels {
			lev := &a.Levels[li]
			if lev.IC == -1 || len(lev.SPhotoE) == 0 {
				continue
			}
			nLev := lev.N * a.NDens
			if nLev == 0 {
				continue
			}
			for j := 0; j < s.nuGrid.Size(); j++ {
				nu := s.nuGrid.Center(j)
				eEv := constants.H * nu / constants.EvToErgs
				if eEv < lev.EIon {
					continue
				}
				sigma := interpTable(lev.SPhotoE, lev.SPhotoS, eEv)
				stim := 1 - math.Exp(-constants.H*nu/constants.K/s.Temp)
				abs[j] += nLev * sigma * stim
			}
		}
	}
}

// addLineExpansion adds the Sobolev expansion opacity, binning each
// line's (1 - e^-tau) into its frequency bin.
func (s *State) addLineExpansion(abs []float64) {
	if s.Time <= 0 {
		return
	}
	for _, z := range s.elemsZ {
		a, ok := s.atoms[z]
		if !ok || a == nil {
			continue
		}
		for li := range a.Lines {
			line := &a.Lines[li]
			nu := line.Nu
			if nu <= s.nuGrid.MinVal() || nu >= s.nuGrid.MaxVal() {
				continue
			}
			j := s.nuGrid.LocateWithinBounds(nu)
			abs[j] += nu / (constants.C * s.Time * s.nuGrid.Delta(j)) * (1 - line.ETau)
		}
	}
}

// addBoundBound adds Gaussian-profile line opacity with the configured
// velocity width.
func (s *State) addBoundBound(abs []float64) {
	vw := s.Opts.LineVelocityWidth
	if vw <= 0 {
		return
	}
	for _, z := range s.elemsZ {
		a, ok := s.atoms[z]
		if !ok || a == nil {
			continue
		}
		for li := range a.Lines {
			line := &a.Lines[li]
			nLo := a.Levels[line.Ll].N * a.NDens
			nUp := a.Levels[line.Lu].N * a.NDens
			gl := a.Levels[line.Ll].G
			gu := a.Levels[line.Lu].G
			if nLo <= 0 {
				continue
			}
			// integrated line opacity with stimulated correction
			alpha0 := constants.SigmaTot * line.FLu * nLo * (1 - nUp*gl/(nLo*gu))
			if alpha0 <= 0 {
				continue
			}
			dnu := line.Nu * vw / constants.C
			jlo := s.nuGrid.LocateWithinBounds(line.Nu - 5*dnu)
			jhi := s.nuGrid.LocateWithinBounds(line.Nu + 5*dnu)
			for j := jlo; j <= jhi; j++ {
				x := (s.nuGrid.Center(j) - line.Nu) / dnu
				phi := math.Exp(-x*x/2) / (dnu * math.Sqrt(2*math.Pi))
				abs[j] += alpha0 * phi
			}
		}
	}
}

// addFuzzExpansion bins the weak-line list into the expansion opacity
// with Boltzmann lower-level populations.
func (s *State) addFuzzExpansion(abs []float64) {
	if s.Time <= 0 || len(s.fuzzLines) == 0 {
		return
	}
	for _, fl := range s.fuzzLines {
		a, ok := s.atoms[fl.Z]
		if !ok || a == nil {
			continue
		}
		if fl.Nu <= s.nuGrid.MinVal() || fl.Nu >= s.nuGrid.MaxVal() {
			continue
		}
		// boltzmann population of the lower level relative to the ion ground
		boltz := math.Exp(-fl.ELow / constants.KEv / s.Temp)
		nl := a.NDens * a.Ions[0].Frac * boltz
		lam := constants.C / fl.Nu
		tau := nl * constants.SigmaTot * fl.Gf * s.Time * lam
		j := s.nuGrid.LocateWithinBounds(fl.Nu)
		abs[j] += fl.Nu / (constants.C * s.Time * s.nuGrid.Delta(j)) * (1 - math.Exp(-tau))
	}
}

// GetPlanckMean integrates the absorption opacity against the Planck
// function.
func (s *State) GetPlanckMean(abs, scat []float64) float64 {
	var num, den float64
	for j := 0; j < s.nuGrid.Size(); j++ {
		b := utils.BlackbodyNu(s.Temp, s.nuGrid.Center(j)) * s.nuGrid.Delta(j)
		num += abs[j] * b
		den += b
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// GetRosselandMean is the harmonic mean of the total extinction weighted
// by the temperature derivative of the Planck function.
func (s *State) GetRosselandMean(abs, scat []float64) float64 {
	var num, den float64
	for j := 0; j < s.nuGrid.Size(); j++ {
		w := utils.DBlackbodyDT(s.Temp, s.nuGrid.Center(j)) * s.nuGrid.Delta(j)
		tot := abs[j]
		if scat != nil {
			tot += scat[j]
		}
		if tot == 0 {
			continue
		}
		num += w / tot
		den += w
	}
	if num == 0 {
		return 0
	}
	return den / num
}

func interpTable(xs, ys []float64, x float64) float64 {
	n := len(xs)
	if x <= xs[0] {
		return ys[0]
	}
	if x >= xs[n-1] {
		return ys[n-1]
	}
	for j := 1; j < n; j++ {
		if x < xs[j] {
			t := (x - xs[j-1]) / (xs[j] - xs[j-1])
			return ys[j-1] + t*(ys[j]-ys[j-1])
		}
	}
	return ys[n-1]
}
