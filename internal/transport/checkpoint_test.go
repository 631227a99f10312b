package transport

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Knights-Templars/pubsed/internal/comm"
)

func TestCheckpointRoundTrip(t *testing.T) {
	g := singleZoneGrid(1e15, 1e-20)
	params := baseParams(nil)

	a, err := New(params, g, comm.Serial{}, nil)
	require.NoError(t, err)

	// a handful of packets in assorted states
	for i := 0; i < 25; i++ {
		p := testPhoton(1e15 * float64(i+1) / 10)
		p.X = [3]float64{float64(i) * 1e12, -float64(i) * 2e11, 3e10}
		p.T = float64(i) * 0.1
		if i%3 == 0 {
			p.Type = GammaRay
		}
		require.True(t, a.InjectParticle(p))
	}
	a.OpticalSpectrum().Count(0, 1e15, 0.5, [3]float64{0, 0, 1})

	fname := filepath.Join(t.TempDir(), "chk.bin")
	require.NoError(t, a.WriteCheckpoint(fname))

	// a second solver with a different seed restores the exact state
	params2 := baseParams(map[string]any{"transport_rng_seed": 999})
	g2 := singleZoneGrid(1e15, 1e-20)
	b, err := New(params2, g2, comm.Serial{}, nil)
	require.NoError(t, err)
	require.NoError(t, b.ReadCheckpoint(fname))

	require.Equal(t, a.NParticles(), b.NParticles())
	pa, pb := a.Particles(), b.Particles()
	for i := range pa {
		assert.Equal(t, pa[i].X, pb[i].X, "particle %d position", i)
		assert.Equal(t, pa[i].D, pb[i].D, "particle %d direction", i)
		assert.Equal(t, pa[i].Nu, pb[i].Nu, "particle %d frequency", i)
		assert.Equal(t, pa[i].E, pb[i].E, "particle %d energy", i)
		assert.Equal(t, pa[i].T, pb[i].T, "particle %d time", i)
		assert.Equal(t, pa[i].Ind, pb[i].Ind, "particle %d zone", i)
		assert.Equal(t, pa[i].Type, pb[i].Type, "particle %d type", i)
	}

	assert.Equal(t, a.OpticalSpectrum().Bins(), b.OpticalSpectrum().Bins())
	assert.Equal(t, a.TNow(), b.TNow())
}

func TestCheckpointMissingFileFallsBack(t *testing.T) {
	g := singleZoneGrid(1e15, 1e-20)
	params := baseParams(map[string]any{
		"run_do_restart":   1,
		"run_restart_file": "/nonexistent/chk.bin",
	})
	// init succeeds despite the unreadable restart file
	solver, err := New(params, g, comm.Serial{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, solver.NParticles())
}

func TestCheckpointRNGStateRestored(t *testing.T) {
	g := singleZoneGrid(1e15, 1e-20)
	params := baseParams(nil)

	a, err := New(params, g, comm.Serial{}, nil)
	require.NoError(t, err)

	fname := filepath.Join(t.TempDir(), "chk.bin")
	require.NoError(t, a.WriteCheckpoint(fname))

	b, err := New(baseParams(map[string]any{"transport_rng_seed": 777}), singleZoneGrid(1e15, 1e-20), comm.Serial{}, nil)
	require.NoError(t, err)
	require.NoError(t, b.ReadCheckpoint(fname))

	// identical draws after restore
	for i := 0; i < 50; i++ {
		require.Equal(t, a.rngs.Rank().Uniform(), b.rngs.Rank().Uniform())
		require.Equal(t, a.rngs.Worker(0).Uniform(), b.rngs.Worker(0).Uniform())
	}
}
