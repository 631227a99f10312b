// Package config is the parameter reader: a flat TOML file of the keys
// the transport core consumes, with table-driven defaults for anything
// left unset.
package config

import (
	"fmt"
	"math"

	"github.com/BurntSushi/toml"
)

// defaultValues supplies every parameter the core may ask for; a key
// missing from both the file and this table is a configuration error.
var defaultValues = map[string]any{
	"transport_steady_iterate":                    int64(0),
	"transport_radiative_equilibrium":             int64(0),
	"transport_fleck_alpha":                       1.0,
	"transport_solve_Tgas_with_updated_opacities": int64(0),
	"transport_fix_Tgas_during_transport":         int64(0),
	"transport_set_Tgas_to_Trad":                  int64(0),
	"transport_fix_rng_seed":                      int64(0),
	"transport_rng_seed":                          int64(0),
	"transport_use_ddmc":                          int64(0),
	"transport_ddmc_tau_threshold":                10.0,
	"transport_boundary_in_reflect":               int64(0),
	"transport_boundary_out_reflect":              int64(0),
	"transport_store_Jnu":                         int64(1),
	"particles_max_total":                         int64(1e7),
	"particles_n_initialize":                      int64(0),
	"particles_n_emit_thermal":                    int64(0),
	"particles_n_emit_radioactive":                int64(0),
	"particles_n_emit_pointsources":               int64(0),
	"particles_last_iter_pump":                    int64(0),
	"particles_init_photon_frequency":             0.0,
	"particles_pointsource_file":                  "",
	"core_n_emit":                                 int64(0),
	"core_radius":                                 0.0,
	"core_temperature":                            0.0,
	"core_photon_frequency":                       0.0,
	"core_luminosity":                             0.0,
	"core_timescale":                              0.0,
	"core_fix_luminosity":                         int64(0),
	"core_spectrum_file":                          "",
	"opacity_electron_scattering":                 int64(0),
	"opacity_line_expansion":                      int64(0),
	"opacity_fuzz_expansion":                      int64(0),
	"opacity_bound_free":                          int64(0),
	"opacity_bound_bound":                         int64(0),
	"opacity_free_free":                           int64(0),
	"opacity_user_defined":                        int64(0),
	"opacity_user_file":                           "",
	"opacity_grey_opacity":                        0.0,
	"opacity_zone_specific_grey_opacity":          int64(0),
	"opacity_epsilon":                             1.0,
	"opacity_minimum_extinction":                  0.0,
	"opacity_maximum_opacity":                     math.Inf(1),
	"opacity_use_nlte":                            int64(0),
	"opacity_use_collisions_nlte":                 int64(0),
	"opacity_no_ground_recomb":                    int64(0),
	"opacity_atoms_in_nlte":                       []int{},
	"opacity_no_scattering":                       int64(0),
	"opacity_compton_scatter_photons":             int64(0),
	"limits_temp_min":                             1.0,
	"limits_temp_max":                             1e8,
	"spectrum_n_mu":                               int64(1),
	"spectrum_n_phi":                              int64(1),
	"spectrum_particle_list_name":                 "",
	"spectrum_particle_list_maxn":                 0.0,
	"tstep_max_dt":                                math.Inf(1),
	"multiply_particles_n_emit_by_dt_over_dtmax":  int64(0),
	"force_rprocess_heating":                      int64(0),
	"dont_decay_composition":                      int64(0),
	"run_do_restart":                              int64(0),
	"run_restart_file":                            "",
	"data_atomic_file":                            "",
	"data_fuzzline_file":                          "",
	"data_max_ion_stage":                          int64(0),
	"data_max_n_levels":                           int64(0),
	"line_velocity_width":                         0.0,

	// driver-level keys: time stepping, run control, and the built-in
	// uniform-sphere model the standalone binary runs on
	"tstep_time_start":       1.0,
	"tstep_time_stop":        10.0,
	"tstep_max_steps":        int64(10),
	"tstep_min_dt":           0.0,
	"run_checkpoint_file":    "",
	"output_dir":             ".",
	"output_spectrum_prefix": "spectrum",
	"model_n_zones":          int64(1),
	"model_r_inner":          0.0,
	"model_r_outer":          1e15,
	"model_rho":              1e-13,
	"model_temp":             1e4,
	"model_v_outer":          0.0,
	"model_homologous":       int64(0),
	"model_elems_Z":          []int{1},
	"model_elems_A":          []int{1},
	"model_mass_fractions":   []float64{1.0},
	"model_n_levels":         int64(10),
}

// Reader answers parameter queries by key.
type Reader struct {
	values map[string]any
}

// Load parses the TOML parameter file.
func Load(path string) (*Reader, error) {
	values := map[string]any{}
	if _, err := toml.DecodeFile(path, &values); err != nil {
		return nil, fmt.Errorf("reading parameter file %s: %w", path, err)
	}
	return &Reader{values: values}, nil
}

// NewFromMap builds a reader from an in-memory table (tests, drivers).
func NewFromMap(values map[string]any) *Reader {
	m := make(map[string]any, len(values))
	for k, v := range values {
		m[k] = v
	}
	return &Reader{values: m}
}

func (r *Reader) lookup(key string) (any, error) {
	if v, ok := r.values[key]; ok {
		return v, nil
	}
	if v, ok := defaultValues[key]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("unknown parameter %q", key)
}

// GetInt reads an integer-valued parameter.
func (r *Reader) GetInt(key string) int {
	v, err := r.lookup(key)
	if err != nil {
		panic(err)
	}
	switch t := v.(type) {
	case int64:
		return int(t)
	case int:
		return t
	case float64:
		return int(t)
	}
	panic(fmt.Sprintf("parameter %q is not an integer", key))
}

// GetFloat reads a float-valued parameter.
func (r *Reader) GetFloat(key string) float64 {
	v, err := r.lookup(key)
	if err != nil {
		panic(err)
	}
	switch t := v.(type) {
	case float64:
		return t
	case int64:
		return float64(t)
	case int:
		return float64(t)
	}
	panic(fmt.Sprintf("parameter %q is not a float", key))
}

// GetString reads a string-valued parameter.
func (r *Reader) GetString(key string) string {
	v, err := r.lookup(key)
	if err != nil {
		panic(err)
	}
	if s, ok := v.(string); ok {
		return s
	}
	panic(fmt.Sprintf("parameter %q is not a string", key))
}

// GetVector reads a float-array parameter; a missing key returns nil.
func (r *Reader) GetVector(key string) []float64 {
	v, ok := r.values[key]
	if !ok {
		v, ok = defaultValues[key]
		if !ok {
			return nil
		}
	}
	switch t := v.(type) {
	case []float64:
		return t
	case []any:
		out := make([]float64, len(t))
		for i := range t {
			switch e := t[i].(type) {
			case float64:
				out[i] = e
			case int64:
				out[i] = float64(e)
			case int:
				out[i] = float64(e)
			default:
				panic(fmt.Sprintf("parameter %q element %d is not numeric", key, i))
			}
		}
		return out
	case []int:
		out := make([]float64, len(t))
		for i := range t {
			out[i] = float64(t[i])
		}
		return out
	}
	panic(fmt.Sprintf("parameter %q is not a vector", key))
}

// GetIntVector reads an integer-array parameter.
func (r *Reader) GetIntVector(key string) []int {
	fs := r.GetVector(key)
	out := make([]int, len(fs))
	for i := range fs {
		out[i] = int(fs[i])
	}
	return out
}

// GetFunction evaluates a possibly time-dependent parameter at t. A
// scalar is constant in time; a list of [t, y] pairs interpolates
// linearly and clamps at the ends.
func (r *Reader) GetFunction(key string, t float64) float64 {
	v, err := r.lookup(key)
	if err != nil {
		panic(err)
	}
	switch tv := v.(type) {
	case float64:
		return tv
	case int64:
		return float64(tv)
	case int:
		return float64(tv)
	case []any:
		var ts, ys []float64
		for _, row := range tv {
			pair, ok := row.([]any)
			if !ok || len(pair) != 2 {
				panic(fmt.Sprintf("parameter %q is not a [t, y] table", key))
			}
			ts = append(ts, asFloat(pair[0]))
			ys = append(ys, asFloat(pair[1]))
		}
		return interpClamped(ts, ys, t)
	case [][]float64:
		var ts, ys []float64
		for _, pair := range tv {
			ts = append(ts, pair[0])
			ys = append(ys, pair[1])
		}
		return interpClamped(ts, ys, t)
	}
	panic(fmt.Sprintf("parameter %q is neither scalar nor a time table", key))
}

func asFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int64:
		return float64(t)
	case int:
		return float64(t)
	}
	panic(fmt.Sprintf("value %v is not numeric", v))
}

func interpClamped(ts, ys []float64, t float64) float64 {
	if len(ts) == 0 {
		return 0
	}
	if t <= ts[0] {
		return ys[0]
	}
	if t >= ts[len(ts)-1] {
		return ys[len(ys)-1]
	}
	for i := 1; i < len(ts); i++ {
		if t < ts[i] {
			f := (t - ts[i-1]) / (ts[i] - ts[i-1])
			return ys[i-1] + f*(ys[i]-ys[i-1])
		}
	}
	return ys[len(ys)-1]
}
