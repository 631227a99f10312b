package gas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Knights-Templars/pubsed/internal/atomic"
	"github.com/Knights-Templars/pubsed/internal/constants"
	"github.com/Knights-Templars/pubsed/internal/utils"
)

func hydrogenState(opts Options) *State {
	nuGrid := utils.NewLocateArray(1e14, 4e15, 1e14)
	atoms := map[int]*atomic.Atom{1: atomic.NewHydrogen(6)}
	s := NewState(opts, atoms, []int{1}, []int{1}, nuGrid)
	s.Dens = 1e-13
	s.Temp = 1e4
	s.Time = 1e6
	s.SetMassFractions([]float64{1.0})
	return s
}

func TestSolveStateChargeConservation(t *testing.T) {
	s := hydrogenState(Options{})
	status := s.SolveState(nil)
	require.Equal(t, SolveOK, status)

	nH := s.Dens / constants.MProton
	assert.Greater(t, s.NElec, 0.0)
	assert.LessOrEqual(t, s.NElec, 1.000001*nH)

	// at this density and temperature hydrogen is strongly ionized
	assert.Greater(t, s.NElec/nH, 0.5)
}

func TestSolveStateColdGasIsNeutral(t *testing.T) {
	s := hydrogenState(Options{})
	s.Temp = 2000
	status := s.SolveState(nil)
	require.Equal(t, SolveOK, status)
	nH := s.Dens / constants.MProton
	assert.Less(t, s.NElec/nH, 1e-3)
}

func TestGreyOpacityOverride(t *testing.T) {
	opts := Options{GreyOpacity: 0.2, Epsilon: 0.75}
	s := hydrogenState(opts)
	require.Equal(t, SolveOK, s.SolveState(nil))

	ng := 39
	abs := make([]float64, ng)
	scat := make([]float64, ng)
	emis := make([]float64, ng)
	s.ComputeOpacity(abs, scat, emis)

	wantAbs := 0.75 * 0.2 * s.Dens
	wantScat := 0.25 * 0.2 * s.Dens
	for j := range abs {
		assert.InEpsilon(t, wantAbs, abs[j], 1e-12)
		assert.InEpsilon(t, wantScat, scat[j], 1e-12)
	}

	// planck mean of a grey opacity is the grey opacity
	assert.InEpsilon(t, wantAbs, s.GetPlanckMean(abs, scat), 1e-10)
	// rosseland mean of a grey total extinction is the total
	assert.InEpsilon(t, wantAbs+wantScat, s.GetRosselandMean(abs, scat), 1e-10)
}

func TestElectronScatteringOpacity(t *testing.T) {
	opts := Options{UseElectronScattering: true}
	s := hydrogenState(opts)
	require.Equal(t, SolveOK, s.SolveState(nil))

	ng := 39
	abs := make([]float64, ng)
	scat := make([]float64, ng)
	emis := make([]float64, ng)
	s.ComputeOpacity(abs, scat, emis)

	want := constants.ThomsonCS * s.NElec
	for j := range scat {
		assert.InEpsilon(t, want, scat[j], 1e-12)
	}
}

func TestEmissivityIsKirchhoff(t *testing.T) {
	opts := Options{GreyOpacity: 1.0, Epsilon: 1.0}
	s := hydrogenState(opts)
	require.Equal(t, SolveOK, s.SolveState(nil))

	ng := 39
	abs := make([]float64, ng)
	scat := make([]float64, ng)
	emis := make([]float64, ng)
	s.ComputeOpacity(abs, scat, emis)

	nuGrid := utils.NewLocateArray(1e14, 4e15, 1e14)
	for j := 0; j < ng; j++ {
		want := abs[j] * utils.BlackbodyNu(s.Temp, nuGrid.Center(j))
		assert.InDelta(t, want, emis[j], math.Max(1e-30, want*1e-12))
	}
}

func TestFreeFreeScalesWithFrequency(t *testing.T) {
	opts := Options{UseFreeFree: true}
	s := hydrogenState(opts)
	require.Equal(t, SolveOK, s.SolveState(nil))

	ng := 39
	abs := make([]float64, ng)
	scat := make([]float64, ng)
	emis := make([]float64, ng)
	s.ComputeOpacity(abs, scat, emis)

	// free-free falls off steeply toward higher frequency
	assert.Greater(t, abs[0], abs[ng-1])
}

func TestHeatingCoolingBalanceAtBlackbody(t *testing.T) {
	opts := Options{UseFreeFree: true}
	s := hydrogenState(opts)
	require.Equal(t, SolveOK, s.SolveState(nil))

	// a blackbody radiation field at the gas temperature balances
	// free-free heating against cooling
	nuGrid := utils.NewLocateArray(1e14, 4e15, 1e14)
	jNu := make([]float64, nuGrid.Size())
	for j := range jNu {
		jNu[j] = utils.BlackbodyNu(s.Temp, nuGrid.Center(j))
	}
	s.ComputeHeatingCooling(jNu)
	assert.InEpsilon(t, s.FfCooling, s.FfHeating, 1e-10)
}
