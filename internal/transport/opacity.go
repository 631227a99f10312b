package transport

import (
	"math"
	"sync"

	"github.com/Knights-Templars/pubsed/internal/constants"
	"github.com/Knights-Templars/pubsed/internal/gas"
	"github.com/Knights-Templars/pubsed/internal/radioactive"
	"github.com/Knights-Templars/pubsed/internal/utils"
)

// SetOpacity runs the gas-state solve over this rank's zones on the
// worker pool, assembles the per-zone opacity and emissivity state, and
// reduces it across ranks.
func (t *Solver) SetOpacity(dt float64) {
	nz := t.grid.NZones()
	ng := t.nuGrid.Size()

	// zero out opacities and means
	for i := 0; i < nz; i++ {
		t.comptonOpac[i] = 0
		t.photoionOpac[i] = 0
		t.planckMean[i] = 0
		t.rosselandMean[i] = 0
		t.emissivity[i].Wipe()
		for j := 0; j < ng; j++ {
			t.absOpacity[i][j] = 0
			t.rawEmis[i][j] = 0
			if !t.omitScattering {
				t.scatOpacity[i][j] = 0
			}
		}
	}
	nElecLocal := make([]float64, nz)
	tgasLocal := make([]float64, nz)
	lthermalLocal := make([]float64, nz)

	// always do LTE on the first step
	if t.firstStep {
		for _, gs := range t.gasStates {
			gs.TurnOffNLTE()
		}
	}
	if t.verbose && t.solveTgasWithUpdatedOpacities && !t.firstStep {
		t.log.Info().Msg("solving coupled equations for gas state and temperature")
	}

	var solveRootErrors, solveIterErrors, nlteErrors int
	var errMu sync.Mutex

	// fan the local zones out over the workers, each with its private
	// gas state
	var wg sync.WaitGroup
	zoneCh := make(chan int, t.myZoneStop-t.myZoneStart)
	for i := t.myZoneStart; i < t.myZoneStop; i++ {
		zoneCh <- i
	}
	close(zoneCh)

	for w := 0; w < t.nWorkers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			gasState := t.gasStates[worker]
			scat := make([]float64, ng)
			emis := make([]float64, ng)

			for i := range zoneCh {
				z := t.grid.Zone(i)
				gasState.BulkGreyOpacity = z.BulkGreyOpacity
				gasState.TotalGreyOpacity = z.TotalGreyOpacity

				solveErr := t.fillAndSolveGasState(gasState, i)
				if solveErr != gas.SolveOK {
					errMu.Lock()
					switch solveErr {
					case gas.SolveRootError:
						solveRootErrors++
					case gas.SolveIterError:
						solveIterErrors++
					default:
						nlteErrors++
					}
					errMu.Unlock()
				}

				nElecLocal[i] = gasState.NElec
				tgasLocal[i] = gasState.Temp

				gasState.ComputeOpacity(t.absOpacity[i], scat, emis)

				maxExtinction := t.maximumOpacity * z.Rho

				// means come from the unclamped arrays
				t.planckMean[i] = gasState.GetPlanckMean(t.absOpacity[i], scat)
				t.rosselandMean[i] = gasState.GetRosselandMean(t.absOpacity[i], scat)

				lthermalLocal[i] = 0
				for j := 0; j < ng; j++ {
					ednu := emis[j] * t.nuGrid.Delta(j)
					t.rawEmis[i][j] = ednu
					lthermalLocal[i] += 4 * math.Pi * ednu
					if !t.omitScattering {
						t.scatOpacity[i][j] = scat[j]
						if t.scatOpacity[i][j] > maxExtinction {
							t.scatOpacity[i][j] = maxExtinction
						}
					}
					if t.absOpacity[i][j] > maxExtinction {
						t.absOpacity[i][j] = maxExtinction
					}
				}

				// gamma-ray opacity: compton + photo-electric, summed
				// analytically over elements
				elemsZ, elemsA := t.grid.ElemsZ(), t.grid.ElemsA()
				for k := range elemsZ {
					dens := z.XGas[k] * z.Rho
					ndens := dens / (constants.MProton * float64(elemsA[k]))
					t.comptonOpac[i] += ndens * constants.ThomsonCS * float64(elemsZ[k])
					photo := math.Pow(constants.AlphaFS, 4.0) * 4.0 * math.Sqrt(2.0)
					photo *= math.Pow(float64(elemsZ[k]), 5.0)
					photo *= math.Pow(constants.MElectronMeV, 3.5)
					t.photoionOpac[i] += ndens * 2.0 * constants.ThomsonCS * photo
				}
			}
		}(w)
	}
	wg.Wait()

	if solveRootErrors != 0 {
		t.warnings.brentRoot += solveRootErrors
	}
	if solveIterErrors != 0 {
		t.warnings.brentIter += solveIterErrors
	}
	if nlteErrors != 0 {
		t.warnings.nlteNonConv += nlteErrors
	}
	for _, gs := range t.gasStates {
		laser, nonconv := gs.TakeWarnings()
		t.warnings.laser += laser
		t.warnings.nlteNonConv += nonconv
	}

	// combine local zone blocks across ranks
	t.reduceOpacities(nElecLocal, tgasLocal, lthermalLocal)

	// build emissivity CDFs everywhere from the reduced arrays
	for i := 0; i < nz; i++ {
		z := t.grid.Zone(i)
		z.NElec = nElecLocal[i]
		if t.solveTgasWithUpdatedOpacities && !t.firstStep {
			z.TGas = tgasLocal[i]
		}
		if ng == 1 {
			bbInt := constants.StefanBoltzmann * math.Pow(z.TGas, 4) / math.Pi
			z.LThermal = 4 * math.Pi * t.absOpacity[i][0] * bbInt
			t.emissivity[i].SetValue(0, 1)
		} else {
			z.LThermal = lthermalLocal[i]
			for j := 0; j < ng; j++ {
				t.emissivity[i].SetValue(j, t.rawEmis[i][j])
			}
		}
		t.emissivity[i].Normalize()
	}

	// implicit monte carlo softening factor
	for i := 0; i < nz; i++ {
		z := t.grid.Zone(i)
		if t.radiativeEq {
			z.EpsIMC = 1
			continue
		}
		fleckBeta := 4.0 * constants.RadConst * math.Pow(z.TGas, 4) / (z.EGas * z.Rho)
		tfac := constants.C * t.planckMean[i] * dt
		fIMC := t.fleckAlpha * fleckBeta * tfac
		if t.fleckAlpha == 0 {
			fIMC = 0
		}
		z.EpsIMC = 1.0 / (1.0 + fIMC)
	}

	if t.useDDMC != 0 {
		t.computeDiffusionProbabilities(dt)
	}

	// turn nlte back on after the first step
	if t.firstStep && t.useNLTE {
		for _, gs := range t.gasStates {
			gs.TurnOnNLTE()
		}
	}
}

// reduceOpacities sums the rank-local zone blocks so every rank sees the
// full grid.
func (t *Solver) reduceOpacities(nElec, tgas, lthermal []float64) {
	if t.comm.Size() == 1 {
		return
	}
	for i := range t.absOpacity {
		t.comm.AllReduceSum(t.absOpacity[i])
		t.comm.AllReduceSum(t.scatOpacity[i])
		t.comm.AllReduceSum(t.rawEmis[i])
	}
	t.comm.AllReduceSum(t.planckMean)
	t.comm.AllReduceSum(t.rosselandMean)
	t.comm.AllReduceSum(t.comptonOpac)
	t.comm.AllReduceSum(t.photoionOpac)
	t.comm.AllReduceSum(nElec)
	t.comm.AllReduceSum(tgas)
	t.comm.AllReduceSum(lthermal)
}

// fillAndSolveGasState loads zone i into the worker's gas state and
// solves it, optionally nesting the radiative-equilibrium temperature
// solve.
func (t *Solver) fillAndSolveGasState(gasState *gas.State, i int) int {
	z := t.grid.Zone(i)

	gasState.Dens = z.Rho
	gasState.Temp = z.TGas
	gasState.Time = t.tNow
	if gasState.Temp < t.tempMin {
		gasState.Temp = t.tempMin
	}
	if gasState.Temp > t.tempMax {
		gasState.Temp = t.tempMax
	}

	// non-thermal (radioactive) energy deposition [erg/s/cm^3]
	gasState.EGamma = z.LRadioDep

	xNow := append([]float64(nil), z.XGas...)
	if !t.omitCompositionDecay {
		radioactive.DecayComposition(t.grid.ElemsZ(), t.grid.ElemsA(), xNow, t.tNow)
	}
	gasState.SetMassFractions(xNow)

	// grey zones skip the state solve entirely
	if z.TotalGreyOpacity != 0 {
		return gas.SolveOK
	}

	if t.solveTgasWithUpdatedOpacities && !t.firstStep {
		return t.solveStateAndTemperature(gasState, i)
	}
	return gasState.SolveState(t.jNu[i])
}

// getOpacity returns the comoving continuum opacity and absorption
// fraction at the particle's comoving frequency, plus the frequency bin
// index.
func (t *Solver) getOpacity(p *Particle, dshift float64) (iNu int, opac, eps float64) {
	if p.Ind < 0 {
		panic("getOpacity called with invalid zone index")
	}

	nu := p.Nu * dshift

	if p.Type == Photon {
		iNu = t.nuGrid.LocateWithinBounds(nu)
		aOpac := t.nuGrid.ValueAtIndex(nu, t.absOpacity[p.Ind], iNu)
		sOpac := 0.0
		if !t.omitScattering {
			sOpac = t.nuGrid.ValueAtIndex(nu, t.scatOpacity[p.Ind], iNu)
		}
		opac = aOpac + sOpac
		if opac == 0 {
			eps = 0
		} else {
			eps = aOpac / opac
		}
		return iNu, opac, eps
	}

	// gamma-rays: analytic compton + photoelectric
	cOpac := t.comptonOpac[p.Ind] * kleinNishina(p.Nu)
	pOpac := t.photoionOpac[p.Ind] * math.Pow(p.Nu, -3.5)
	opac = cOpac + pOpac
	eps = pOpac / (cOpac + pOpac)
	return 0, opac, eps
}

// kleinNishina is the quantum correction to the Thomson cross-section;
// x is the photon energy in MeV.
func kleinNishina(x float64) float64 {
	x = x / constants.MElectronMeV
	logfac := math.Log(1 + 2*x)
	term1 := (1 + x) / x / x / x * (2*x*(1+x)/(1+2*x) - logfac)
	term2 := 1.0 / 2.0 / x * logfac
	term3 := -1.0 * (1 + 3*x) / (1 + 2*x) / (1 + 2*x)
	return .75 * (term1 + term2 + term3)
}

// blackbodyNu is kept as a method-scoped alias so emission code reads
// like the physics.
func blackbodyNu(T, nu float64) float64 { return utils.BlackbodyNu(T, nu) }
