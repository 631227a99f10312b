package transport

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Knights-Templars/pubsed/internal/comm"
	"github.com/Knights-Templars/pubsed/internal/config"
	"github.com/Knights-Templars/pubsed/internal/constants"
	"github.com/Knights-Templars/pubsed/internal/geom"
)

// singleZoneGrid builds one static spherical zone of the given radius.
func singleZoneGrid(radius, rho float64) *geom.Sphere1D {
	proto := geom.Zone{
		Rho:  rho,
		TGas: 1e4,
		EGas: 1e15,
		XGas: []float64{1},
	}
	return geom.NewSphere1D([]float64{0, radius}, proto, []int{1}, []int{1}, 0)
}

func baseParams(extra map[string]any) *config.Reader {
	m := map[string]any{
		"transport_nu_grid":      []float64{1e14, 2e15, 1e14},
		"spectrum_time_grid":     []float64{-0.5, 0.5, 1.0},
		"spectrum_nu_grid":       []float64{0.5e15, 1.5e15, 1e15},
		"spectrum_n_mu":          10,
		"spectrum_n_phi":         1,
		"transport_fix_rng_seed": 1,
		"transport_rng_seed":     1234,
	}
	for k, v := range extra {
		m[k] = v
	}
	return config.NewFromMap(m)
}

func testPhoton(nu float64) Particle {
	return Particle{
		X:    [3]float64{0, 0, 0},
		D:    [3]float64{1, 0, 0},
		Nu:   nu,
		E:    1.0,
		T:    0,
		Ind:  0,
		Type: Photon,
	}
}

func TestVacuumFlight(t *testing.T) {
	g := singleZoneGrid(1e15, 1e-20)
	params := baseParams(map[string]any{"spectrum_n_mu": 10})
	solver, err := New(params, g, comm.Serial{}, nil)
	require.NoError(t, err)

	p := testPhoton(1e15)
	p.D = [3]float64{0, 0, 1} // mu = 1 for the spectrum bin check
	require.True(t, solver.InjectParticle(p))

	solver.Step(1e6)

	assert.Equal(t, 0, solver.NParticles())
	// observer time 0, nu bin 0, top mu bin carries the full packet
	assert.Equal(t, 1.0, solver.OpticalSpectrum().Get(0, 0, 9, 0))
	assert.Equal(t, 1.0, solver.OpticalSpectrum().Total())
}

func TestPureAbsorberEscapeFraction(t *testing.T) {
	// alpha = 1e-10 cm^-1 over L = 1e10 cm: escape fraction e^-1
	g := singleZoneGrid(1e10, 1e-13)
	params := baseParams(map[string]any{
		"opacity_grey_opacity": 1e3, // alpha = kappa*rho = 1e-10
		"opacity_epsilon":      1.0,
		"spectrum_time_grid":   []float64{0, 10, 10},
	})
	solver, err := New(params, g, comm.Serial{}, nil)
	require.NoError(t, err)

	n := 100000
	for i := 0; i < n; i++ {
		require.True(t, solver.InjectParticle(testPhoton(1e15)))
	}
	solver.Step(10)

	escaped := solver.OpticalSpectrum().Total()
	assert.InDelta(t, math.Exp(-1), escaped/float64(n), 5e-3)
	assert.Equal(t, 0, solver.NParticles())
}

func TestIsotropicScatterAllEscape(t *testing.T) {
	// pure scattering at tau = 1: everything escapes, isotropized
	g := singleZoneGrid(1e10, 1e-13)
	params := baseParams(map[string]any{
		"opacity_grey_opacity": 1e3,
		"opacity_epsilon":      0.0,
		"spectrum_time_grid":   []float64{0, 100, 100},
		"spectrum_n_mu":        2,
	})
	solver, err := New(params, g, comm.Serial{}, nil)
	require.NoError(t, err)

	n := 20000
	for i := 0; i < n; i++ {
		require.True(t, solver.InjectParticle(testPhoton(1e15)))
	}
	solver.Step(100)

	escaped := solver.OpticalSpectrum().Total()
	assert.InDelta(t, 1.0, escaped/float64(n), 1e-4)

	// up and down hemispheres balance to Monte Carlo error
	up, down := 0.0, 0.0
	for it := 0; it < solver.OpticalSpectrum().NTime(); it++ {
		for inu := 0; inu < solver.OpticalSpectrum().NNu(); inu++ {
			down += solver.OpticalSpectrum().Get(it, inu, 0, 0)
			up += solver.OpticalSpectrum().Get(it, inu, 1, 0)
		}
	}
	assert.InDelta(t, 0.0, (up-down)/float64(n), 0.02)
}

func TestFleckFactor(t *testing.T) {
	// alpha_P = 1 cm^-1, beta_F = 1, dt = 1e-10 s:
	// eps_imc = 1/(1 + c*alpha_P*dt)
	rho := 1e-13
	g := singleZoneGrid(1e10, rho)
	z := g.Zone(0)
	z.EGas = 4 * constants.RadConst * math.Pow(z.TGas, 4) / rho // beta_F = 1

	params := baseParams(map[string]any{
		"opacity_grey_opacity":  1e13, // alpha = 1 cm^-1
		"opacity_epsilon":       1.0,
		"transport_fleck_alpha": 1.0,
	})
	solver, err := New(params, g, comm.Serial{}, nil)
	require.NoError(t, err)

	dt := 1e-10
	solver.SetOpacity(dt)

	want := 1.0 / (1.0 + constants.C*1.0*dt)
	assert.InEpsilon(t, want, z.EpsIMC, 1e-10)
	assert.InDelta(t, 0.2500, z.EpsIMC, 1e-3)
}

func TestFleckFactorRadiativeEquilibrium(t *testing.T) {
	g := singleZoneGrid(1e10, 1e-13)
	params := baseParams(map[string]any{
		"transport_radiative_equilibrium": 1,
		"opacity_grey_opacity":            1e13,
	})
	solver, err := New(params, g, comm.Serial{}, nil)
	require.NoError(t, err)
	solver.SetOpacity(1e-10)
	assert.Equal(t, 1.0, g.Zone(0).EpsIMC)
}

func TestStoppedParticlesKeepInvariants(t *testing.T) {
	// a time step too short to reach the boundary leaves particles
	// stopped with valid state
	g := singleZoneGrid(1e15, 1e-20)
	params := baseParams(nil)
	solver, err := New(params, g, comm.Serial{}, nil)
	require.NoError(t, err)

	n := 500
	for i := 0; i < n; i++ {
		require.True(t, solver.InjectParticle(testPhoton(1e15)))
	}
	dt := 1e15 / constants.C / 10 // a tenth of the crossing time
	solver.Step(dt)

	assert.Equal(t, n, solver.NParticles())
	for _, p := range solver.Particles() {
		norm := math.Sqrt(p.D[0]*p.D[0] + p.D[1]*p.D[1] + p.D[2]*p.D[2])
		assert.InDelta(t, 1.0, norm, 1e-9)
		assert.Greater(t, p.Nu, 0.0)
		assert.Greater(t, p.E, 0.0)
		assert.GreaterOrEqual(t, p.Ind, 0)
		assert.Less(t, p.Ind, g.NZones())
	}
}

func TestThermalEmissionEnergyBudget(t *testing.T) {
	g := singleZoneGrid(1e10, 1e-13)
	params := baseParams(map[string]any{
		"opacity_grey_opacity":     1e3,
		"opacity_epsilon":          1.0,
		"particles_n_emit_thermal": 1000,
	})
	solver, err := New(params, g, comm.Serial{}, nil)
	require.NoError(t, err)

	dt := 1.0
	solver.SetOpacity(dt)
	z := g.Zone(0)
	require.Greater(t, z.LThermal, 0.0)

	solver.EmitThermal(dt)
	require.Equal(t, 1000, solver.NParticles())

	want := z.LThermal * g.ZoneVolume(0) * dt * z.EpsIMC
	got := 0.0
	for _, p := range solver.Particles() {
		got += p.E
	}
	assert.InEpsilon(t, want, got, 1e-6)
}

func TestCoreEmission(t *testing.T) {
	g := singleZoneGrid(1e10, 1e-20)
	params := baseParams(map[string]any{
		"core_n_emit":           100,
		"core_luminosity":       1e40,
		"core_photon_frequency": 1e15,
	})
	solver, err := New(params, g, comm.Serial{}, nil)
	require.NoError(t, err)

	dt := 2.0
	solver.EmitInnerSource(dt)
	require.Equal(t, 100, solver.NParticles())

	for _, p := range solver.Particles() {
		assert.Equal(t, [3]float64{0, 0, 0}, p.X)
		assert.Equal(t, 1e15, p.Nu)
		assert.InEpsilon(t, 1e40*dt/100, p.E, 1e-12)
		assert.GreaterOrEqual(t, p.T, 0.0)
		assert.LessOrEqual(t, p.T, dt)
	}
}

func TestRadioactiveEmissionAllGammaAtTimeZero(t *testing.T) {
	proto := geom.Zone{Rho: 1e-13, TGas: 1e4, EGas: 1e15, XGas: []float64{1, 0, 0}}
	g := geom.NewSphere1D([]float64{0, 1e10}, proto, []int{28, 27, 26}, []int{56, 56, 56}, 0)
	params := baseParams(map[string]any{
		"particles_n_emit_radioactive": 500,
	})
	solver, err := New(params, g, comm.Serial{}, nil)
	require.NoError(t, err)

	solver.EmitRadioactive(1.0)
	require.Equal(t, 500, solver.NParticles())
	assert.Greater(t, g.Zone(0).LRadioEmit, 0.0)

	// at t = 0 all Ni56 decay energy is gamma-rays
	for _, p := range solver.Particles() {
		assert.Equal(t, GammaRay, p.Type)
	}
}

func TestEnergyConservationThinRadiativeZone(t *testing.T) {
	// an optically thin emitting zone: escaped luminosity approaches the
	// thermal emission rate
	g := singleZoneGrid(1e10, 1e-13)
	params := baseParams(map[string]any{
		"opacity_grey_opacity":            10.0, // tau = 1e-2
		"opacity_epsilon":                 1.0,
		"particles_n_emit_thermal":        20000,
		"transport_radiative_equilibrium": 0,
		"spectrum_time_grid":              []float64{0, 100, 100},
		"transport_fleck_alpha":           0.0, // eps_imc = 1
	})
	solver, err := New(params, g, comm.Serial{}, nil)
	require.NoError(t, err)

	dt := 50.0
	solver.Step(dt)

	z := g.Zone(0)
	emitted := z.LThermal * g.ZoneVolume(0) * dt
	escaped := solver.OpticalSpectrum().Total()
	if emitted > 0 {
		assert.InDelta(t, 1.0, escaped/emitted, 0.03)
	}
}

func TestNonPositiveEmissionCountsNoOp(t *testing.T) {
	g := singleZoneGrid(1e10, 1e-13)
	params := baseParams(nil)
	solver, err := New(params, g, comm.Serial{}, nil)
	require.NoError(t, err)
	solver.EmitParticles(1.0)
	assert.Equal(t, 0, solver.NParticles())
}

func TestBufferOverflowDeclinesEmission(t *testing.T) {
	g := singleZoneGrid(1e10, 1e-13)
	params := baseParams(map[string]any{
		"particles_max_total":      10,
		"particles_n_emit_thermal": 100,
		"opacity_grey_opacity":     1e3,
		"opacity_epsilon":          1.0,
	})
	solver, err := New(params, g, comm.Serial{}, nil)
	require.NoError(t, err)
	solver.SetOpacity(1.0)
	solver.EmitThermal(1.0)
	assert.Equal(t, 0, solver.NParticles())
}

func TestToggleConflictIsFatal(t *testing.T) {
	g := singleZoneGrid(1e10, 1e-13)
	params := baseParams(map[string]any{
		"transport_radiative_equilibrium": 1,
		"transport_set_Tgas_to_Trad":      1,
	})
	_, err := New(params, g, comm.Serial{}, nil)
	assert.Error(t, err)
}
