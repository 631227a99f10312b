package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	r := NewFromMap(map[string]any{})
	assert.Equal(t, 0, r.GetInt("transport_steady_iterate"))
	assert.Equal(t, 1.0, r.GetFloat("transport_fleck_alpha"))
	assert.Equal(t, "", r.GetString("run_restart_file"))
	assert.Equal(t, 1, r.GetInt("spectrum_n_mu"))
}

func TestOverrides(t *testing.T) {
	r := NewFromMap(map[string]any{
		"transport_steady_iterate": 5,
		"core_luminosity":          1e43,
		"transport_nu_grid":        []float64{1e14, 1e16, 1e14},
	})
	assert.Equal(t, 5, r.GetInt("transport_steady_iterate"))
	assert.Equal(t, 1e43, r.GetFloat("core_luminosity"))
	assert.Equal(t, []float64{1e14, 1e16, 1e14}, r.GetVector("transport_nu_grid"))
}

func TestUnknownKeyPanics(t *testing.T) {
	r := NewFromMap(map[string]any{})
	assert.Panics(t, func() { r.GetInt("no_such_parameter") })
}

func TestMissingVectorIsNil(t *testing.T) {
	r := NewFromMap(map[string]any{})
	assert.Nil(t, r.GetVector("spectrum_time_grid"))
}

func TestGetFunctionConstant(t *testing.T) {
	r := NewFromMap(map[string]any{"core_luminosity": 2e42})
	assert.Equal(t, 2e42, r.GetFunction("core_luminosity", 0))
	assert.Equal(t, 2e42, r.GetFunction("core_luminosity", 1e7))
}

func TestGetFunctionTimeTable(t *testing.T) {
	r := NewFromMap(map[string]any{
		"core_luminosity": [][]float64{{0, 1e42}, {10, 3e42}},
	})
	assert.Equal(t, 1e42, r.GetFunction("core_luminosity", -5))
	assert.Equal(t, 3e42, r.GetFunction("core_luminosity", 50))
	assert.InEpsilon(t, 2e42, r.GetFunction("core_luminosity", 5), 1e-12)
}

func TestLoadTomlFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "param.toml")
	body := `
transport_steady_iterate = 3
core_luminosity = 1.0e42
transport_nu_grid = [1.0e14, 1.0e16, 1.0e14]
data_atomic_file = "atoms.dat"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	r, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, r.GetInt("transport_steady_iterate"))
	assert.Equal(t, 1e42, r.GetFloat("core_luminosity"))
	assert.Equal(t, "atoms.dat", r.GetString("data_atomic_file"))
	assert.Len(t, r.GetVector("transport_nu_grid"), 3)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/param.toml")
	assert.Error(t, err)
}
