package transport

import (
	"math"

	"github.com/Knights-Templars/pubsed/internal/constants"
	"github.com/Knights-Templars/pubsed/internal/radioactive"
	"github.com/Knights-Templars/pubsed/internal/utils"
)

// EmitParticles samples new packets from all four sources.
func (t *Solver) EmitParticles(dt float64) {
	t.EmitRadioactive(dt)
	t.EmitThermal(dt)
	t.EmitInnerSource(dt)
	t.EmitFromPointsources(dt)
}

// samplePhotonFrequency draws a comoving frequency from the zone
// emissivity CDF; gamma-rays carry their energy in MeV instead.
func (t *Solver) samplePhotonFrequency(p *Particle) {
	if p.Type == Photon {
		inu := t.emissivity[p.Ind].Sample(t.rngs.Rank().Uniform())
		p.Nu = t.nuGrid.Sample(inu, t.rngs.Rank().Uniform())
	} else {
		p.Nu = 1
	}
}

// createIsotropicParticle makes one packet in zone i: uniform position in
// the zone, isotropic comoving direction, frequency from the local
// emissivity, then a boost to the lab frame.
func (t *Solver) createIsotropicParticle(i int, ptype PType, ep, tEmit float64) {
	var p Particle
	p.Ind = i
	p.Type = ptype

	u := [3]float64{t.rngs.Rank().Uniform(), t.rngs.Rank().Uniform(), t.rngs.Rank().Uniform()}
	p.X = t.grid.SampleInZone(i, u)
	p.XInteract = p.X

	// isotropic in the comoving frame
	mu := 1 - 2.0*t.rngs.Rank().Uniform()
	phi := 2.0 * math.Pi * t.rngs.Rank().Uniform()
	smu := math.Sqrt(1 - mu*mu)
	p.D = [3]float64{smu * math.Cos(phi), smu * math.Sin(phi), mu}

	t.samplePhotonFrequency(&p)
	p.E = ep

	t.TransformComovingToLab(&p)
	p.T = tEmit

	t.appendParticle(p)
}

func (t *Solver) appendParticle(p Particle) {
	t.particleMu.Lock()
	t.particles = append(t.particles, p)
	t.particleMu.Unlock()
}

// myEmitCount floor-splits a total emission count across ranks with a
// stochastic remainder packet, exact in expectation.
func (t *Solver) myEmitCount(total int) int {
	n := int(math.Floor(float64(total) / float64(t.comm.Size())))
	remainder := float64(total)/float64(t.comm.Size()) - float64(n)
	if t.rngs.Rank().Uniform() < remainder {
		n++
	}
	return n
}

// InitializeParticles seeds the initial radiation field with packets
// weighted by each zone's current radiation energy.
func (t *Solver) InitializeParticles(initParticles int) {
	myNEmit := initParticles / t.comm.Size()
	if t.comm.Rank() < initParticles%t.comm.Size() {
		myNEmit++
	}
	if myNEmit == 0 {
		return
	}
	if myNEmit > t.maxTotalParticles {
		t.log.Warn().Msg("not enough particle space to initialize")
		return
	}
	if t.verbose {
		t.log.Info().Int("total", initParticles).Int("per_rank", myNEmit).Msg("initializing particles")
	}

	nuEmit := t.params.GetFloat("particles_init_photon_frequency")
	blackbody := nuEmit == 0

	eSum := 0.0
	ng := t.nuGrid.Size()
	for i := 0; i < t.grid.NZones(); i++ {
		z := t.grid.Zone(i)
		eZone := z.ERad * t.grid.ZoneVolume(i)
		t.zoneEmissionCDF.SetValue(i, eZone)
		eSum += eZone

		if blackbody {
			for j := 0; j < ng; j++ {
				num := t.nuGrid.Center(j)
				t.emissivity[i].SetValue(j, blackbodyNu(z.TGas, num)*t.nuGrid.Delta(j))
			}
		} else {
			for j := 0; j < ng; j++ {
				if t.nuGrid.Left(j) <= nuEmit && t.nuGrid.Right(j) >= nuEmit {
					t.emissivity[i].SetValue(j, 1)
				} else {
					t.emissivity[i].SetValue(j, 0)
				}
			}
		}
		t.emissivity[i].Normalize()
	}
	t.zoneEmissionCDF.Normalize()

	if eSum == 0 {
		return
	}
	ep := eSum / float64(myNEmit)
	for q := 0; q < myNEmit; q++ {
		i := t.zoneEmissionCDF.Sample(t.rngs.Rank().Uniform())
		t.createIsotropicParticle(i, Photon, ep, t.tNow)
	}
}

// EmitRadioactive samples gamma-ray and positron-photon packets from the
// decay power of every zone.
func (t *Solver) EmitRadioactive(dt float64) {
	totalNEmit := t.params.GetInt("particles_n_emit_radioactive")
	if t.params.GetInt("multiply_particles_n_emit_by_dt_over_dtmax") != 0 {
		totalNEmit = int(float64(totalNEmit) * dt / t.params.GetFloat("tstep_max_dt"))
	}
	if totalNEmit == 0 {
		return
	}

	if t.lastIteration {
		if pump := t.params.GetInt("particles_last_iter_pump"); pump != 0 {
			totalNEmit *= pump
			if t.verbose {
				t.log.Info().Int("factor", pump).Msg("last iteration, increasing radioactive emission")
			}
		}
	}

	myNEmit := t.myEmitCount(totalNEmit)

	// total decay energy on the grid
	lTot := 0.0
	gammaFrac := make([]float64, t.grid.NZones())
	for i := 0; i < t.grid.NZones(); i++ {
		z := t.grid.Zone(i)
		vol := t.grid.ZoneVolume(i)
		rate, gfrac := radioactive.Decay(t.grid.ElemsZ(), t.grid.ElemsA(), z.XGas, t.tNow, t.forceRprocess)
		lDecay := z.Rho * rate * vol
		z.LRadioEmit = lDecay
		gammaFrac[i] = gfrac
		lTot += lDecay
		t.zoneEmissionCDF.SetValue(i, lDecay)
	}
	t.zoneEmissionCDF.Normalize()

	if lTot == 0 || myNEmit == 0 {
		return
	}
	ep := lTot * dt / float64(myNEmit)

	if len(t.particles)+myNEmit > t.maxTotalParticles {
		t.log.Warn().Msg("out of particle space; not adding radioactive packets")
		return
	}

	for q := 0; q < myNEmit; q++ {
		i := t.zoneEmissionCDF.Sample(t.rngs.Rank().Uniform())
		tEmit := t.tNow + dt*t.rngs.Rank().Uniform()

		if t.rngs.Rank().Uniform() < gammaFrac[i] {
			t.createIsotropicParticle(i, GammaRay, ep, tEmit)
		} else {
			// positron energy thermalizes on the spot
			t.grid.Zone(i).LRadioDep += ep
			t.createIsotropicParticle(i, Photon, ep, tEmit)
		}
	}

	if t.verbose {
		t.log.Info().Float64("L_radioactive", lTot).Int("total", totalNEmit).Int("per_rank", myNEmit).Msg("radioactive emission")
	}
}

// EmitThermal samples packets from the zone thermal emission, softened by
// the Fleck factor.
func (t *Solver) EmitThermal(dt float64) {
	totalNEmit := t.params.GetInt("particles_n_emit_thermal")
	if totalNEmit == 0 {
		return
	}
	myNEmit := totalNEmit / t.comm.Size()

	eTot := 0.0
	for i := 0; i < t.grid.NZones(); i++ {
		z := t.grid.Zone(i)
		vol := t.grid.ZoneVolume(i)
		// dt * vol is frame invariant
		eZoneEmit := z.LThermal * vol * dt * z.EpsIMC
		eTot += eZoneEmit
		t.zoneEmissionCDF.SetValue(i, eZoneEmit)
	}
	t.zoneEmissionCDF.Normalize()

	if eTot == 0 || myNEmit == 0 {
		return
	}
	ep := eTot / float64(myNEmit)

	if len(t.particles)+myNEmit > t.maxTotalParticles {
		t.log.Warn().Msg("out of particle space; not adding thermal packets")
		return
	}

	for q := 0; q < myNEmit; q++ {
		i := t.zoneEmissionCDF.Sample(t.rngs.Rank().Uniform())
		tEmit := t.tNow + dt*t.rngs.Rank().Uniform()
		t.createIsotropicParticle(i, Photon, ep, tEmit)
	}

	if t.verbose {
		t.log.Info().Float64("E_thermal", eTot).Int("total", totalNEmit).Int("per_rank", myNEmit).Msg("thermal emission")
	}
}

// EmitInnerSource injects packets from the luminous core: a point when
// rCore is zero, otherwise the surface of a sphere with outward-biased
// cos-theta emission.
func (t *Solver) EmitInnerSource(dt float64) {
	totalNEmit := t.params.GetInt("core_n_emit")
	if totalNEmit == 0 {
		return
	}
	if t.lastIteration {
		if pump := t.params.GetInt("particles_last_iter_pump"); pump != 0 {
			totalNEmit *= pump
			if t.verbose {
				t.log.Info().Int("factor", pump).Msg("last iteration, increasing core emission")
			}
		}
	}
	nEmit := totalNEmit / t.comm.Size()
	if nEmit == 0 {
		return
	}

	// current luminosity, possibly time dependent
	if !t.coreFixLum {
		if lCurrent := t.params.GetFunction("core_luminosity", t.tNow); lCurrent != 0 {
			t.LCore = lCurrent
		}
		if t.timeCore > 0 {
			t.LCore *= math.Exp(-t.tNow / t.timeCore)
		}
	}
	ep := t.LCore * dt / float64(nEmit)

	if len(t.particles)+nEmit > t.maxTotalParticles {
		t.log.Warn().Msg("not enough particle space for core emission")
		return
	}

	for q := 0; q < nEmit; q++ {
		var p Particle

		if t.rCore == 0 {
			p.X = [3]float64{}
			mu := 1 - 2.0*t.rngs.Rank().Uniform()
			phi := 2.0 * math.Pi * t.rngs.Rank().Uniform()
			smu := math.Sqrt(1 - mu*mu)
			p.D = [3]float64{smu * math.Cos(phi), smu * math.Sin(phi), mu}
		} else {
			// initial position on the photosphere
			phiCore := 2 * math.Pi * t.rngs.Rank().Uniform()
			cospCore := math.Cos(phiCore)
			sinpCore := math.Sin(phiCore)
			costCore := 1 - 2.0*t.rngs.Rank().Uniform()
			sintCore := math.Sqrt(1 - costCore*costCore)
			aPhot := t.rCore + t.rCore*1e-10
			p.X = [3]float64{
				aPhot * sintCore * cospCore,
				aPhot * sintCore * sinpCore,
				aPhot * costCore,
			}

			// outward cos-theta biased local direction
			phiLoc := 2 * math.Pi * t.rngs.Rank().Uniform()
			costLoc := math.Sqrt(t.rngs.Rank().Uniform())
			sintLoc := math.Sqrt(1 - costLoc*costLoc)
			dxl := sintLoc * math.Cos(phiLoc)
			dyl := sintLoc * math.Sin(phiLoc)
			dzl := costLoc
			p.D = [3]float64{
				costCore*cospCore*dxl - sinpCore*dyl + sintCore*cospCore*dzl,
				costCore*sinpCore*dxl + cospCore*dyl + sintCore*sinpCore*dzl,
				-sintCore*dxl + costCore*dzl,
			}
		}
		p.XInteract = p.X
		p.E = ep

		if t.coreFrequency > 0 {
			p.Nu = t.coreFrequency
		} else {
			inu := t.coreEmissionSpectrum.Sample(t.rngs.Rank().Uniform())
			p.Nu = t.nuGrid.Sample(inu, t.rngs.Rank().Uniform())
			p.E /= t.emissivityWeight[inu]
		}

		p.Ind = t.grid.GetZone(p.X)
		t.TransformComovingToLab(&p)
		p.T = t.tNow + t.rngs.Rank().Uniform()*dt
		p.Type = Photon

		t.appendParticle(p)
	}

	if t.verbose {
		t.log.Info().Float64("L_core", t.LCore).Int("total", totalNEmit).Int("per_rank", nEmit).Msg("core emission")
	}
}

// EmitFromPointsources injects packets from the discrete source list.
func (t *Solver) EmitFromPointsources(dt float64) {
	if !t.usePointsources {
		return
	}
	totalNEmit := t.params.GetInt("particles_n_emit_pointsources")
	if totalNEmit == 0 {
		return
	}
	nEmit := totalNEmit / t.comm.Size()
	if nEmit == 0 {
		return
	}

	if len(t.particles)+nEmit > t.maxTotalParticles {
		t.log.Warn().Msg("not enough particle space for pointsource emission")
		return
	}

	ep := t.pointsourcesLTot * dt / float64(nEmit)

	for q := 0; q < nEmit; q++ {
		var p Particle

		ind := t.pointsourceCDF.Sample(t.rngs.Rank().Uniform())
		p.X = [3]float64{t.pointsourceX[ind], t.pointsourceY[ind], t.pointsourceZ[ind]}
		p.XInteract = p.X

		mu := 1 - 2.0*t.rngs.Rank().Uniform()
		phi := 2.0 * math.Pi * t.rngs.Rank().Uniform()
		smu := math.Sqrt(1 - mu*mu)
		p.D = [3]float64{smu * math.Cos(phi), smu * math.Sin(phi), mu}

		p.E = ep
		inu := t.pointsourceSpec.Sample(t.rngs.Rank().Uniform())
		p.Nu = t.nuGrid.Sample(inu, t.rngs.Rank().Uniform())
		p.E /= t.emissivityWeight[inu]

		p.Ind = t.grid.GetZone(p.X)
		t.TransformComovingToLab(&p)
		p.T = t.tNow + t.rngs.Rank().Uniform()*dt
		p.Type = Photon

		t.appendParticle(p)
	}

	if t.verbose {
		t.log.Info().Float64("L_tot", t.pointsourcesLTot).Int("total", totalNEmit).Int("per_rank", nEmit).Msg("pointsource emission")
	}
}

// setupCoreEmission reads the inner-boundary emission parameters and
// builds the core emission spectrum.
func (t *Solver) setupCoreEmission() {
	t.rCore = t.params.GetFloat("core_radius")
	t.TCore = t.params.GetFloat("core_temperature")
	t.coreFrequency = t.params.GetFloat("core_photon_frequency")
	t.LCore = t.params.GetFunction("core_luminosity", 0)
	t.timeCore = t.params.GetFloat("core_timescale")
	t.coreFixLum = t.params.GetInt("core_fix_luminosity") != 0

	// blackbody temperature from L and R if appropriate
	if t.LCore != 0 && t.rCore != 0 && t.TCore == 0 {
		t.TCore = math.Pow(t.LCore/(4.0*math.Pi*t.rCore*t.rCore*constants.StefanBoltzmann), 0.25)
	}

	if t.params.GetInt("core_n_emit") == 0 {
		return
	}

	ng := t.nuGrid.Size()
	t.coreEmissionSpectrum = utils.NewCDFArray(ng)

	specFile := t.params.GetString("core_spectrum_file")
	var cspecNu, cspecLnu []float64
	if specFile != "" {
		rows, err := utils.ReadFloatPairs(specFile)
		if err != nil {
			t.log.Warn().Err(err).Str("file", specFile).Msg("can't open core_spectrum_file")
			specFile = ""
		} else {
			for _, r := range rows {
				cspecNu = append(cspecNu, r[0])
				cspecLnu = append(cspecLnu, r[1])
			}
		}
	}

	lSum := 0.0
	for j := 0; j < ng; j++ {
		nu := t.nuGrid.Center(j)
		dnu := t.nuGrid.Delta(j)

		if specFile != "" {
			// piecewise-constant read of the supplied spectrum
			lnu := 0.0
			for k := len(cspecNu) - 1; k >= 0; k-- {
				if cspecNu[k] <= nu {
					if k < len(cspecNu)-1 {
						lnu = cspecLnu[k]
					}
					break
				}
			}
			t.coreEmissionSpectrum.SetValue(j, lnu*dnu*t.emissivityWeight[j])
			lSum += lnu * dnu
		} else {
			bb := 1.0
			if t.TCore > 0 {
				bb = blackbodyNu(t.TCore, nu)
			}
			t.coreEmissionSpectrum.SetValue(j, bb*dnu*t.emissivityWeight[j])
			// blackbody flux is pi*B(T)
			lSum += 4.0 * math.Pi * t.rCore * t.rCore * math.Pi * bb * dnu
		}
	}
	t.coreEmissionSpectrum.Normalize()
	if t.LCore == 0 {
		t.LCore = lSum
	}

	if t.verbose {
		t.log.Info().Float64("L_core", t.LCore).Float64("T_core", t.TCore).Str("spectrum_file", specFile).Msg("inner source")
	}
}

// setupPointsourceEmission reads the (x y z L T) source list and builds
// the source CDF plus a shared blackbody spectrum.
func (t *Solver) setupPointsourceEmission() error {
	psFile := t.params.GetString("particles_pointsource_file")
	t.usePointsources = false
	if psFile == "" {
		return nil
	}

	rows, err := utils.ReadFloatColumns(psFile, 5)
	if err != nil {
		t.log.Warn().Err(err).Str("file", psFile).Msg("can't open point source file")
		return nil
	}
	for _, r := range rows {
		t.usePointsources = true
		t.pointsourceX = append(t.pointsourceX, r[0])
		t.pointsourceY = append(t.pointsourceY, r[1])
		t.pointsourceZ = append(t.pointsourceZ, r[2])
		t.pointsourceL = append(t.pointsourceL, r[3])
		t.pointsourceT = append(t.pointsourceT, r[4])
	}
	if !t.usePointsources {
		return nil
	}

	nSources := len(t.pointsourceL)
	t.pointsourceCDF = utils.NewCDFArray(nSources)
	for i := 0; i < nSources; i++ {
		t.pointsourcesLTot += t.pointsourceL[i]
		t.pointsourceCDF.SetValue(i, t.pointsourceL[i])
	}
	t.pointsourceCDF.Normalize()

	ng := t.nuGrid.Size()
	t.pointsourceSpec = utils.NewCDFArray(ng)
	for j := 0; j < ng; j++ {
		nu := t.nuGrid.Center(j)
		dnu := t.nuGrid.Delta(j)
		t.pointsourceSpec.SetValue(j, blackbodyNu(t.TCore, nu)*dnu*t.emissivityWeight[j])
	}
	t.pointsourceSpec.Normalize()

	if t.verbose {
		t.log.Info().Str("file", psFile).Int("n_sources", nSources).Float64("L_tot", t.pointsourcesLTot).Msg("pointsource emission setup")
	}
	return nil
}
