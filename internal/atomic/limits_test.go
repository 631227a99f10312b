package atomic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimitLevels(t *testing.T) {
	a := NewHydrogen(8)
	nl := a.NLevels()
	a.Limit(0, 4)
	require.Equal(t, 4, a.NLevels())
	assert.Less(t, a.NLevels(), nl)
	// dropped continuum pointers are cleared
	for i := range a.Levels {
		assert.Equal(t, -1, a.Levels[i].IC)
	}
	// lines into dropped levels are gone
	for i := range a.Lines {
		assert.Less(t, a.Lines[i].Lu, 4)
	}
	// the solve still runs on the truncated atom
	a.SolveLTE(1e4, 1e10)
	sum := 0.0
	for i := range a.Levels {
		sum += a.Levels[i].N
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
}

func TestLimitIonStage(t *testing.T) {
	a := NewHydrogen(5)
	a.Limit(0, 0)
	assert.Equal(t, 6, a.NLevels()) // no-op without limits

	a.Limit(0, 5) // drop the continuum level
	assert.Equal(t, 5, a.NLevels())
	assert.Equal(t, 1, a.NIons())
}
