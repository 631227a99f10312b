package transport

import (
	"math"

	"github.com/Knights-Templars/pubsed/internal/constants"
	"github.com/Knights-Templars/pubsed/internal/gas"
	"github.com/Knights-Templars/pubsed/internal/utils"
)

// ReduceRadiation normalizes the zone tallies into rates and densities
// and combines them across ranks.
func (t *Solver) ReduceRadiation(dt float64) {
	nz := t.grid.NZones()

	eRad := make([]float64, nz)
	eAbs := make([]float64, nz)
	lDep := make([]float64, nz)
	for i := 0; i < nz; i++ {
		z := t.grid.Zone(i)
		eRad[i] = z.ERad
		eAbs[i] = z.EAbs
		lDep[i] = z.LRadioDep
	}
	t.comm.AllReduceSum(eRad)
	t.comm.AllReduceSum(eAbs)
	t.comm.AllReduceSum(lDep)
	for i := 0; i < nz; i++ {
		t.comm.AllReduceSum(t.jNu[i])
	}

	for i := 0; i < nz; i++ {
		z := t.grid.Zone(i)
		vol := t.grid.ZoneVolume(i)

		// e_rad: path-length estimator of the radiation energy density
		z.ERad = eRad[i] / (vol * dt * constants.C)
		// e_abs: absorbed energy rate per volume, comoving
		z.EAbs = eAbs[i] / (vol * dt)
		// radioactive deposition rate per volume
		z.LRadioDep = lDep[i] / (vol * dt)

		// mean intensity per frequency bin
		for j := range t.jNu[i] {
			t.jNu[i][j] /= 4 * math.Pi * vol * dt * t.nuGrid.Delta(j)
		}
	}

	if t.setTgasToTrad && !t.fixTgasDuringTransport {
		for i := 0; i < nz; i++ {
			z := t.grid.Zone(i)
			trad := math.Pow(z.ERad/constants.RadConst, 0.25)
			z.TGas = t.clampTemp(trad)
		}
	}
}

func (t *Solver) clampTemp(T float64) float64 {
	if T < t.tempMin {
		return t.tempMin
	}
	if T > t.tempMax {
		return t.tempMax
	}
	return T
}

// solveEqTemperature finds, for each local zone, the gas temperature
// that balances absorbed against emitted radiation, then shares the
// result across ranks.
func (t *Solver) solveEqTemperature() {
	if t.fixTgasDuringTransport {
		return
	}

	tgas := make([]float64, t.grid.NZones())
	gasState := t.gasStates[0]

	for i := t.myZoneStart; i < t.myZoneStop; i++ {
		root, iters := t.tempBrentMethod(gasState, i)
		switch {
		case iters == -1:
			t.warnings.brentRoot++
			tgas[i] = t.grid.Zone(i).TGas
		case iters >= utils.BrentMaxIter:
			t.warnings.brentIter++
			tgas[i] = t.clampTemp(root)
		default:
			tgas[i] = t.clampTemp(root)
		}
	}

	t.comm.AllReduceSum(tgas)
	for i := 0; i < t.grid.NZones(); i++ {
		t.grid.Zone(i).TGas = tgas[i]
	}
}

// tempBrentMethod brackets the radiative-equilibrium residual between
// the configured temperature limits.
func (t *Solver) tempBrentMethod(gasState *gas.State, i int) (float64, int) {
	f := func(T float64) float64 {
		if t.useNLTE {
			return t.radEqFunctionNLTE(gasState, i, T)
		}
		return t.radEqFunctionLTE(gasState, i, T)
	}
	return utils.BrentSolve(f, t.tempMin, t.tempMax, 1e-6)
}

// radEqFunctionLTE is absorbed minus emitted with the stored opacities
// scaled to temperature T through the Planck function.
func (t *Solver) radEqFunctionLTE(gasState *gas.State, i int, T float64) float64 {
	z := t.grid.Zone(i)

	emitted := 0.0
	for j := 0; j < t.nuGrid.Size(); j++ {
		emitted += 4 * math.Pi * t.absOpacity[i][j] *
			utils.BlackbodyNu(T, t.nuGrid.Center(j)) * t.nuGrid.Delta(j)
	}

	absorbed := z.EAbs + z.LRadioDep
	return absorbed - emitted
}

// radEqFunctionNLTE balances the bf/ff/collisional heating and cooling
// rates returned by the gas state at T.
func (t *Solver) radEqFunctionNLTE(gasState *gas.State, i int, T float64) float64 {
	z := t.grid.Zone(i)
	gasState.Dens = z.Rho
	gasState.Temp = T
	gasState.Time = t.tNow
	gasState.EGamma = z.LRadioDep
	gasState.SetMassFractions(z.XGas)
	gasState.SolveState(t.jNu[i])
	gasState.ComputeHeatingCooling(t.jNu[i])
	return gasState.NetHeating() + z.LRadioDep
}

// solveStateAndTemperature nests the temperature root inside the gas
// solve so the opacities stay consistent with T; used when
// transport_solve_Tgas_with_updated_opacities is on.
func (t *Solver) solveStateAndTemperature(gasState *gas.State, i int) int {
	ng := t.nuGrid.Size()
	abs := make([]float64, ng)
	scat := make([]float64, ng)
	emis := make([]float64, ng)

	residual := func(T float64) float64 {
		gasState.Temp = T
		gasState.SolveState(t.jNu[i])
		gasState.ComputeOpacity(abs, scat, emis)
		absorbed, emitted := 0.0, 0.0
		for j := 0; j < ng; j++ {
			dnu := t.nuGrid.Delta(j)
			var jv float64
			if j < len(t.jNu[i]) {
				jv = t.jNu[i][j]
			}
			absorbed += 4 * math.Pi * abs[j] * jv * dnu
			emitted += 4 * math.Pi * abs[j] * utils.BlackbodyNu(T, t.nuGrid.Center(j)) * dnu
		}
		return absorbed + t.grid.Zone(i).LRadioDep - emitted
	}

	root, iters := utils.BrentSolve(residual, t.tempMin, t.tempMax, 1e-6)
	status := gas.SolveOK
	if iters == -1 {
		status = gas.SolveRootError
		root = t.grid.Zone(i).TGas
	} else if iters >= utils.BrentMaxIter {
		status = gas.SolveIterError
	}

	gasState.Temp = t.clampTemp(root)
	if s := gasState.SolveState(t.jNu[i]); s != gas.SolveOK && status == gas.SolveOK {
		status = s
	}
	return status
}
