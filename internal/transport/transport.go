// Package transport implements the time-dependent Monte Carlo radiation
// transport step: emission, propagation, zone tallies, observer spectra,
// and the radiative-equilibrium coupling back to the gas temperature.
package transport

import (
	"fmt"
	"math"
	"os"
	"runtime"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Knights-Templars/pubsed/internal/atomic"
	"github.com/Knights-Templars/pubsed/internal/comm"
	"github.com/Knights-Templars/pubsed/internal/config"
	"github.com/Knights-Templars/pubsed/internal/gas"
	"github.com/Knights-Templars/pubsed/internal/geom"
	"github.com/Knights-Templars/pubsed/internal/rng"
	"github.com/Knights-Templars/pubsed/internal/spectrum"
	"github.com/Knights-Templars/pubsed/internal/utils"
)

// warningCounters aggregates the per-rank numerical warnings of a step.
type warningCounters struct {
	brentRoot   int
	brentIter   int
	nlteNonConv int
	laser       int
	negDist     int
}

// Solver owns all rank-scoped mutable transport state. The driver builds
// one per rank and calls Step once per time step.
type Solver struct {
	params *config.Reader
	grid   geom.Grid
	comm   comm.Communicator
	log    zerolog.Logger

	verbose  bool
	nWorkers int

	// particle buffer; appends go through particleMu
	particles         []Particle
	particleMu        sync.Mutex
	maxTotalParticles int

	// escaped-packet list, kept when a list name is configured
	saveEscapedParticles bool
	maxnEscapedParticles int
	particlesEscaped     []Particle
	escapedMu            sync.Mutex

	gasStates []*gas.State
	rngs      *rng.Set

	// runtime toggles
	steadyState                   bool
	radiativeEq                   bool
	fleckAlpha                    float64
	solveTgasWithUpdatedOpacities bool
	fixTgasDuringTransport        bool
	setTgasToTrad                 bool
	omitScattering                bool
	storeJnu                      bool
	omitCompositionDecay          bool
	comptonScatterPhotons         bool
	forceRprocess                 bool
	boundaryInReflect             bool
	boundaryOutReflect            bool
	useNLTE                       bool
	lastIteration                 bool
	firstStep                     bool

	maximumOpacity float64
	tempMin        float64
	tempMax        float64

	// inner boundary
	LCore         float64
	rCore         float64
	TCore         float64
	timeCore      float64
	coreFrequency float64
	coreFixLum    bool

	coreEmissionSpectrum utils.CDFArray
	zoneEmissionCDF      utils.CDFArray

	// point sources
	usePointsources  bool
	pointsourceX     []float64
	pointsourceY     []float64
	pointsourceZ     []float64
	pointsourceL     []float64
	pointsourceT     []float64
	pointsourceCDF   utils.CDFArray
	pointsourceSpec  utils.CDFArray
	pointsourcesLTot float64

	// Maxwell-Boltzmann sampling for photon Compton scattering
	mbCDF utils.CDFArray
	mbDV  float64

	opticalSpectrum *spectrum.Array
	gammaSpectrum   *spectrum.Array

	nuGrid           utils.LocateArray
	emissivityWeight []float64

	// per-zone opacity state
	absOpacity    [][]float64
	scatOpacity   [][]float64
	rawEmis       [][]float64
	emissivity    []utils.CDFArray
	planckMean    []float64
	rosselandMean []float64
	comptonOpac   []float64
	photoionOpac  []float64
	jNu           [][]float64

	// discrete diffusion
	useDDMC       int
	ddmcTau       float64
	ddmcPUp       []float64
	ddmcPDn       []float64
	ddmcPAdv      []float64
	ddmcPAbs      []float64
	ddmcPStay     []float64
	ddmcRTot      []float64
	ddmcUseInZone []bool
	randomwalkX   utils.LocateArray
	randomwalkPesc []float64

	tNow                     float64
	myZoneStart, myZoneStop int

	warnings warningCounters
}

// New wires a Solver to its collaborators and reads every parameter the
// core consumes. Configuration errors are fatal.
func New(params *config.Reader, g geom.Grid, c comm.Communicator, atomsByZ map[int]*atomic.Atom) (*Solver, error) {
	t := &Solver{
		params: params,
		grid:   g,
		comm:   c,
	}
	t.verbose = c.Rank() == 0
	t.log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().
		Timestamp().Int("rank", c.Rank()).Logger()
	if !t.verbose {
		t.log = t.log.Level(zerolog.ErrorLevel)
	}

	t.nWorkers = runtime.GOMAXPROCS(0)
	t.myZoneStart, t.myZoneStop = comm.BlockPartition(g.NZones(), c.Size(), c.Rank())

	fixSeed := params.GetInt("transport_fix_rng_seed") != 0
	seed := uint64(params.GetInt("transport_rng_seed"))
	t.rngs = rng.NewSet(t.nWorkers, fixSeed, seed, c.Rank())

	// scalar parameters and toggles
	t.maxTotalParticles = params.GetInt("particles_max_total")
	t.radiativeEq = params.GetInt("transport_radiative_equilibrium") != 0
	t.steadyState = params.GetInt("transport_steady_iterate") > 0
	t.tempMax = params.GetFloat("limits_temp_max")
	t.tempMin = params.GetFloat("limits_temp_min")
	t.fleckAlpha = params.GetFloat("transport_fleck_alpha")
	t.solveTgasWithUpdatedOpacities = params.GetInt("transport_solve_Tgas_with_updated_opacities") != 0
	t.fixTgasDuringTransport = params.GetInt("transport_fix_Tgas_during_transport") != 0
	t.setTgasToTrad = params.GetInt("transport_set_Tgas_to_Trad") != 0
	t.boundaryInReflect = params.GetInt("transport_boundary_in_reflect") != 0
	t.boundaryOutReflect = params.GetInt("transport_boundary_out_reflect") != 0
	t.omitCompositionDecay = params.GetInt("dont_decay_composition") != 0
	t.omitScattering = params.GetInt("opacity_no_scattering") != 0
	t.storeJnu = params.GetInt("transport_store_Jnu") != 0
	t.comptonScatterPhotons = params.GetInt("opacity_compton_scatter_photons") != 0
	t.forceRprocess = params.GetInt("force_rprocess_heating") != 0
	t.useNLTE = params.GetInt("opacity_use_nlte") != 0
	t.maximumOpacity = params.GetFloat("opacity_maximum_opacity")
	t.firstStep = true

	if err := t.checkToggleConflicts(); err != nil {
		t.log.Error().Err(err).Msg("contradictory temperature toggles")
		return nil, err
	}

	// frequency grid
	nuDims := params.GetVector("transport_nu_grid")
	if len(nuDims) != 3 && len(nuDims) != 4 {
		return nil, fmt.Errorf("improperly defined transport_nu_grid; need {nu_1, nu_2, dnu, (log?)}")
	}
	if len(nuDims) == 4 && nuDims[3] == 1 {
		t.nuGrid = utils.NewLogLocateArray(nuDims[0], nuDims[1], nuDims[2])
	} else {
		t.nuGrid = utils.NewLocateArray(nuDims[0], nuDims[1], nuDims[2])
	}
	if t.verbose {
		t.log.Info().
			Float64("nu_min", t.nuGrid.MinVal()).
			Float64("nu_max", t.nuGrid.MaxVal()).
			Int("n", t.nuGrid.Size()).
			Msg("frequency grid")
	}

	// output spectra
	stg := params.GetVector("spectrum_time_grid")
	sng := params.GetVector("spectrum_nu_grid")
	nmu := params.GetInt("spectrum_n_mu")
	nphi := params.GetInt("spectrum_n_phi")
	t.opticalSpectrum = spectrum.New(stg, sng, nmu, nphi)
	gng := params.GetVector("gamma_nu_grid")
	if gng == nil {
		gng = sng
	}
	t.gammaSpectrum = spectrum.New(stg, gng, nmu, nphi)

	t.saveEscapedParticles = params.GetString("spectrum_particle_list_name") != ""
	t.maxnEscapedParticles = int(params.GetFloat("spectrum_particle_list_maxn"))

	// gas states, one per worker
	opts := gas.Options{
		UseElectronScattering: params.GetInt("opacity_electron_scattering") != 0,
		UseLineExpansion:      params.GetInt("opacity_line_expansion") != 0,
		UseFuzzExpansion:      params.GetInt("opacity_fuzz_expansion") != 0,
		UseBoundFree:          params.GetInt("opacity_bound_free") != 0,
		UseBoundBound:         params.GetInt("opacity_bound_bound") != 0,
		UseFreeFree:           params.GetInt("opacity_free_free") != 0,
		UseUserOpacity:        params.GetInt("opacity_user_defined") != 0,
		UseNLTE:               t.useNLTE,
		UseCollisionsNLTE:     params.GetInt("opacity_use_collisions_nlte") != 0,
		NoGroundRecomb:        params.GetInt("opacity_no_ground_recomb") != 0,
		AtomsInNLTE:           params.GetIntVector("opacity_atoms_in_nlte"),
		GreyOpacity:           params.GetFloat("opacity_grey_opacity"),
		Epsilon:               params.GetFloat("opacity_epsilon"),
		MinimumExtinction:     params.GetFloat("opacity_minimum_extinction"),
		LineVelocityWidth:     params.GetFloat("line_velocity_width"),
		UserOpacityFile:       params.GetString("opacity_user_file"),
		FuzzlineFile:          params.GetString("data_fuzzline_file"),
	}
	if !t.storeJnu && t.useNLTE {
		t.log.Warn().Msg("not storing Jnu while using NLTE; bad idea")
	}
	for w := 0; w < t.nWorkers; w++ {
		gs := gas.NewState(opts, atomsByZ, g.ElemsZ(), g.ElemsA(), t.nuGrid)
		if err := gs.LoadUserOpacity(); err != nil {
			return nil, err
		}
		if opts.UseFuzzExpansion {
			if _, err := gs.ReadFuzzfile(opts.FuzzlineFile); err != nil {
				return nil, fmt.Errorf("reading fuzzline file: %w", err)
			}
		}
		t.gasStates = append(t.gasStates, gs)
	}

	// per-zone opacity state
	nz := g.NZones()
	ng := t.nuGrid.Size()
	t.absOpacity = make2D(nz, ng)
	t.scatOpacity = make2D(nz, ng)
	t.rawEmis = make2D(nz, ng)
	t.emissivity = make([]utils.CDFArray, nz)
	for i := range t.emissivity {
		t.emissivity[i] = utils.NewCDFArray(ng)
	}
	t.planckMean = make([]float64, nz)
	t.rosselandMean = make([]float64, nz)
	t.comptonOpac = make([]float64, nz)
	t.photoionOpac = make([]float64, nz)
	if t.storeJnu {
		t.jNu = make2D(nz, ng)
	} else {
		t.jNu = make2D(nz, 1)
	}
	t.zoneEmissionCDF = utils.NewCDFArray(nz)

	// flat emissivity weighting; kept as a hook for biased sampling
	t.emissivityWeight = make([]float64, ng)
	norm := 0.0
	for j := range t.emissivityWeight {
		t.emissivityWeight[j] = 1.0
		norm += 1.0
	}
	for j := range t.emissivityWeight {
		t.emissivityWeight[j] *= float64(ng) / norm
	}

	// discrete diffusion
	t.useDDMC = params.GetInt("transport_use_ddmc")
	if t.useDDMC != 0 {
		t.ddmcTau = params.GetFloat("transport_ddmc_tau_threshold")
		t.ddmcPUp = make([]float64, nz)
		t.ddmcPDn = make([]float64, nz)
		t.ddmcPAdv = make([]float64, nz)
		t.ddmcPAbs = make([]float64, nz)
		t.ddmcPStay = make([]float64, nz)
		t.ddmcRTot = make([]float64, nz)
		t.ddmcUseInZone = make([]bool, nz)
		if t.useDDMC == 3 {
			t.setupRandomWalk()
		}
		if t.verbose {
			t.log.Info().Int("method", t.useDDMC).Float64("tau", t.ddmcTau).Msg("using diffusion acceleration")
		}
	}

	t.setupCoreEmission()
	if err := t.setupPointsourceEmission(); err != nil {
		return nil, err
	}

	if t.comptonScatterPhotons {
		t.setupMBCDF(0., 5., 512) // non-dimensional velocity units
	}

	t.tNow = g.TNow()

	// restart or fresh particles
	if params.GetInt("run_do_restart") != 0 {
		if err := t.ReadCheckpoint(params.GetString("run_restart_file")); err != nil {
			t.log.Warn().Err(err).Msg("restart file unreadable; initializing fresh")
			t.InitializeParticles(params.GetInt("particles_n_initialize"))
		}
	} else {
		t.InitializeParticles(params.GetInt("particles_n_initialize"))
	}

	return t, nil
}

func (t *Solver) checkToggleConflicts() error {
	if t.radiativeEq && t.setTgasToTrad {
		return fmt.Errorf("radiative equilibrium turned on, transport_set_Tgas_to_Trad cannot be set")
	}
	if t.solveTgasWithUpdatedOpacities && t.fixTgasDuringTransport {
		return fmt.Errorf("cannot simultaneously solve Tgas with updated opacities and fix Tgas during transport")
	}
	if t.fixTgasDuringTransport && t.setTgasToTrad {
		return fmt.Errorf("cannot simultaneously fix Tgas during transport and set Tgas to Trad")
	}
	if t.solveTgasWithUpdatedOpacities && t.setTgasToTrad && t.verbose {
		t.log.Warn().Msg("set_Tgas_to_Trad overrides the nested Tgas solve")
	}
	return nil
}

func make2D(n, m int) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, m)
	}
	return out
}

// SetLastIterationFlag marks the final steady-state iteration so emission
// can be pumped up.
func (t *Solver) SetLastIterationFlag() { t.lastIteration = true }

// NParticles is the current active buffer size.
func (t *Solver) NParticles() int { return len(t.particles) }

// InjectParticle appends an externally built packet to the active
// buffer; drivers use this to seed custom initial conditions.
func (t *Solver) InjectParticle(p Particle) bool {
	if len(t.particles)+1 > t.maxTotalParticles {
		t.log.Warn().Msg("out of particle space; not injecting")
		return false
	}
	t.appendParticle(p)
	return true
}

// Particles exposes a read-only view of the buffer for checkpoint tests
// and output writers.
func (t *Solver) Particles() []Particle { return t.particles }

// EscapedParticles is the saved escape list, when enabled.
func (t *Solver) EscapedParticles() []Particle { return t.particlesEscaped }

// ClearEscapedParticles drops the saved list after it has been written.
func (t *Solver) ClearEscapedParticles() { t.particlesEscaped = t.particlesEscaped[:0] }

// TNow is the solver's current time.
func (t *Solver) TNow() float64 { return t.tNow }

// OpticalSpectrum and GammaSpectrum expose the accumulated observer
// spectra for output writers.
func (t *Solver) OpticalSpectrum() *spectrum.Array { return t.opticalSpectrum }
func (t *Solver) GammaSpectrum() *spectrum.Array   { return t.gammaSpectrum }

// Step advances the coupled radiation-gas system by dt.
func (t *Solver) Step(dt float64) {
	// nominal time for iterative calc
	if t.steadyState {
		dt = 1
	}

	t.SetOpacity(dt)
	if t.verbose {
		t.log.Info().Msg("calculated opacities")
	}

	t.WipeRadiation()
	t.EmitParticles(dt)

	nActive := len(t.particles)
	nEscape := t.propagateAll(dt)

	if t.steadyState && nActive > 0 {
		perEsc := float64(nEscape) / float64(nActive)
		if t.verbose {
			t.log.Info().Float64("percent_escaped", 100*perEsc).Msg("steady state iteration")
		}
		if perEsc > 0 {
			t.opticalSpectrum.Rescale(1 / perEsc)
		}
	}

	t.ReduceRadiation(dt)

	if t.radiativeEq {
		t.solveEqTemperature()
	}

	t.reportWarnings()

	if !t.steadyState {
		t.tNow += dt
	}
	t.firstStep = false
}

func (t *Solver) reportWarnings() {
	w := &t.warnings
	if w.brentRoot > 0 {
		t.log.Warn().Int("zones", w.brentRoot).Msg("root not bracketed in at least one brent solve")
	}
	if w.brentIter > 0 {
		t.log.Warn().Int("zones", w.brentIter).Msg("max iterations hit in at least one brent solve")
	}
	if w.nlteNonConv > 0 {
		t.log.Warn().Int("zones", w.nlteNonConv).Msg("NLTE beta iteration not converging")
	}
	if w.laser > 0 {
		t.log.Warn().Int("lines", w.laser).Msg("laser regime lines clamped to tau = 0")
	}
	if w.negDist > 0 {
		t.log.Warn().Int("events", w.negDist).Msg("non-positive interaction distance")
	}
	t.warnings = warningCounters{}
}

// WipeRadiation zeroes every per-zone radiation tally.
func (t *Solver) WipeRadiation() {
	for i := 0; i < t.grid.NZones(); i++ {
		z := t.grid.Zone(i)
		z.ERad = 0
		z.EAbs = 0
		z.LRadioDep = 0
		z.LRadioEmit = 0
		for j := range t.jNu[i] {
			t.jNu[i][j] = 0
		}
	}
}

// WipeSpectra clears the observer spectra between steady-state
// iterations.
func (t *Solver) WipeSpectra() {
	t.opticalSpectrum.Wipe()
	t.gammaSpectrum.Wipe()
}

// setupMBCDF tabulates the Maxwell-Boltzmann speed distribution used for
// Compton scattering of photons.
func (t *Solver) setupMBCDF(minV, maxV float64, numV int) {
	t.mbCDF = utils.NewCDFArray(numV)
	t.mbDV = (maxV - minV) / float64(numV)
	v := 0.0
	for j := 0; j < numV; j++ {
		v += t.mbDV
		t.mbCDF.SetValue(j, 4./math.Sqrt(math.Pi)*v*v*math.Exp(-v*v))
	}
	t.mbCDF.Normalize()
}
