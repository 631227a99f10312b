// pubsed is a time-dependent Monte Carlo radiation transport engine for
// radiating astrophysical flows. The standalone binary runs the coupled
// transport/gas-state step loop on a built-in uniform-sphere model; the
// transport core itself only talks to the grid and parameter-reader
// interfaces, so a hydro driver can embed it the same way.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Knights-Templars/pubsed/internal/atomic"
	"github.com/Knights-Templars/pubsed/internal/comm"
	"github.com/Knights-Templars/pubsed/internal/config"
	"github.com/Knights-Templars/pubsed/internal/constants"
	"github.com/Knights-Templars/pubsed/internal/geom"
	"github.com/Knights-Templars/pubsed/internal/spectrum"
	"github.com/Knights-Templars/pubsed/internal/transport"
	"github.com/Knights-Templars/pubsed/internal/utils"
)

func main() {
	configFileNamePointer := flag.String("input", "param", "run parameters in toml format")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	startTime := time.Now()
	fmt.Printf("# Current time: %s\n", startTime.UTC().Format(time.UnixDate))

	configFileName := strings.TrimSuffix(*configFileNamePointer, ".toml")
	params, err := config.Load(configFileName + ".toml")
	if err != nil {
		log.Fatal().Err(err).Msg("cannot read parameter file")
	}

	if atomFile := params.GetString("data_atomic_file"); atomFile != "" {
		if _, err := os.Stat(atomFile); err != nil {
			log.Fatal().Str("file", atomFile).Msg("can't open atom datafile")
		}
	}

	grid := buildGrid(params)
	atoms := buildAtoms(params, grid)

	solver, err := transport.New(params, grid, comm.Serial{}, atoms)
	if err != nil {
		log.Fatal().Err(err).Msg("transport init failed")
	}

	steadyIterate := params.GetInt("transport_steady_iterate")
	tStart := params.GetFloat("tstep_time_start")
	tStop := params.GetFloat("tstep_time_stop")
	maxSteps := params.GetInt("tstep_max_steps")
	maxDt := params.GetFloat("tstep_max_dt")
	minDt := params.GetFloat("tstep_min_dt")

	if steadyIterate > 0 {
		for it := 0; it < steadyIterate; it++ {
			if it == steadyIterate-1 {
				solver.SetLastIterationFlag()
			} else {
				solver.WipeSpectra()
			}
			solver.Step(1)
			fmt.Printf("# iteration %d/%d, particles alive %d\n", it+1, steadyIterate, solver.NParticles())
		}
	} else {
		tNow := tStart
		for step := 0; step < maxSteps && tNow < tStop; step++ {
			// logarithmic time stepping bounded by the configured limits
			dt := 0.1 * tNow
			if dt > maxDt {
				dt = maxDt
			}
			if dt < minDt {
				dt = minDt
			}
			if tNow+dt > tStop {
				dt = tStop - tNow
			}
			grid.Time = tNow
			solver.Step(dt)
			tNow += dt
			fmt.Printf("# step %d, t = %.6e s, dt = %.4e s, particles alive %d\n",
				step+1, tNow, dt, solver.NParticles())
		}
	}

	if err := writeSpectra(params, solver); err != nil {
		log.Error().Err(err).Msg("spectrum output failed")
	}

	if ckpt := params.GetString("run_checkpoint_file"); ckpt != "" {
		if err := solver.WriteCheckpoint(ckpt); err != nil {
			log.Error().Err(err).Msg("checkpoint write failed")
		}
	}

	fmt.Printf("# Elapsed time: %v\n", time.Since(startTime))
}

// buildGrid sets up the built-in uniform sphere model.
func buildGrid(params *config.Reader) *geom.Sphere1D {
	nz := params.GetInt("model_n_zones")
	rIn := params.GetFloat("model_r_inner")
	rOut := params.GetFloat("model_r_outer")
	walls := make([]float64, nz+1)
	for i := range walls {
		walls[i] = rIn + (rOut-rIn)*float64(i)/float64(nz)
	}

	elemsZ := params.GetIntVector("model_elems_Z")
	elemsA := params.GetIntVector("model_elems_A")
	xGas := params.GetVector("model_mass_fractions")

	temp := params.GetFloat("model_temp")
	meanA := 0.0
	for k := range elemsA {
		meanA += xGas[k] * float64(elemsA[k])
	}
	if meanA == 0 {
		meanA = 1
	}

	proto := geom.Zone{
		Rho:  params.GetFloat("model_rho"),
		TGas: temp,
		// ideal monatomic gas specific energy
		EGas: 1.5 * constants.K * temp / (meanA * constants.MProton),
		XGas: xGas,
	}

	g := geom.NewSphere1D(walls, proto, elemsZ, elemsA, params.GetFloat("tstep_time_start"))
	g.Homologous = params.GetInt("model_homologous") != 0
	g.VOuter = params.GetFloat("model_v_outer")
	return g
}

// buildAtoms supplies model atoms for the elements that have them: only
// the built-in hydrogen model atom is created; other elements get no model
// atom, and the atomic data file is not read here.
func buildAtoms(params *config.Reader, g *geom.Sphere1D) map[int]*atomic.Atom {
	atoms := map[int]*atomic.Atom{}
	nLevels := params.GetInt("model_n_levels")
	if maxLev := params.GetInt("data_max_n_levels"); maxLev > 0 && maxLev < nLevels {
		nLevels = maxLev
	}
	for _, z := range g.ElemsZ() {
		if z == 1 {
			atoms[1] = atomic.NewHydrogen(nLevels)
		}
	}
	if maxStage := params.GetInt("data_max_ion_stage"); maxStage > 0 {
		for _, a := range atoms {
			a.Limit(maxStage, 0)
		}
	}
	return atoms
}

// writeSpectra dumps the observer spectra as CSV tables, rows in natural
// order.
func writeSpectra(params *config.Reader, solver *transport.Solver) error {
	outDir := params.GetString("output_dir")
	prefix := params.GetString("output_spectrum_prefix")

	for _, out := range []struct {
		name string
		spec *spectrum.Array
	}{
		{"optical", solver.OpticalSpectrum()},
		{"gamma", solver.GammaSpectrum()},
	} {
		var rows utils.CSV
		for it := 0; it < out.spec.NTime(); it++ {
			for inu := 0; inu < out.spec.NNu(); inu++ {
				e := 0.0
				for imu := 0; imu < out.spec.NMu(); imu++ {
					for iphi := 0; iphi < out.spec.NPhi(); iphi++ {
						e += out.spec.Get(it, inu, imu, iphi)
					}
				}
				rows = append(rows, []string{
					strconv.FormatFloat(out.spec.TimeCenter(it), 'e', 8, 64),
					strconv.FormatFloat(out.spec.NuCenter(inu), 'e', 8, 64),
					strconv.FormatFloat(e, 'e', 8, 64),
				})
			}
		}
		if err := utils.WriteAsCSV(rows, outDir+"/", prefix, out.name,
			[]string{"t_obs (s)", "nu (Hz)", "L (erg)"}); err != nil {
			return err
		}
	}
	return nil
}
