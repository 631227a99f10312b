package transport

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// checkpoint magic and version
var checkpointMagic = [8]byte{'P', 'S', 'E', 'D', 'C', 'H', 'K', '1'}

// WriteCheckpoint persists the particle buffer, the accumulated spectra,
// the RNG streams, and the clock, so a restart reproduces the run
// bit-for-bit.
func (t *Solver) WriteCheckpoint(fname string) error {
	f, err := os.Create(fname)
	if err != nil {
		return fmt.Errorf("creating checkpoint %s: %w", fname, err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	if err := binary.Write(w, binary.LittleEndian, checkpointMagic); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, t.tNow); err != nil {
		return err
	}

	// particle fields as parallel 1-D arrays
	n := int64(len(t.particles))
	if err := binary.Write(w, binary.LittleEndian, n); err != nil {
		return err
	}
	writeField := func(get func(*Particle) float64) error {
		for i := range t.particles {
			if err := binary.Write(w, binary.LittleEndian, get(&t.particles[i])); err != nil {
				return err
			}
		}
		return nil
	}
	for c := 0; c < 3; c++ {
		c := c
		if err := writeField(func(p *Particle) float64 { return p.X[c] }); err != nil {
			return err
		}
	}
	for c := 0; c < 3; c++ {
		c := c
		if err := writeField(func(p *Particle) float64 { return p.D[c] }); err != nil {
			return err
		}
	}
	if err := writeField(func(p *Particle) float64 { return p.Nu }); err != nil {
		return err
	}
	if err := writeField(func(p *Particle) float64 { return p.E }); err != nil {
		return err
	}
	if err := writeField(func(p *Particle) float64 { return p.T }); err != nil {
		return err
	}
	for i := range t.particles {
		if err := binary.Write(w, binary.LittleEndian, int64(t.particles[i].Ind)); err != nil {
			return err
		}
	}
	for i := range t.particles {
		if err := binary.Write(w, binary.LittleEndian, int64(t.particles[i].Type)); err != nil {
			return err
		}
	}

	// spectra
	for _, bins := range [][]float64{t.opticalSpectrum.Bins(), t.gammaSpectrum.Bins()} {
		if err := binary.Write(w, binary.LittleEndian, int64(len(bins))); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, bins); err != nil {
			return err
		}
	}

	// rng streams
	state, err := t.rngs.MarshalBinary()
	if err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, int64(len(state))); err != nil {
		return err
	}
	if _, err := w.Write(state); err != nil {
		return err
	}

	return w.Flush()
}

// ReadCheckpoint restores the state written by WriteCheckpoint.
func (t *Solver) ReadCheckpoint(fname string) error {
	f, err := os.Open(fname)
	if err != nil {
		return fmt.Errorf("opening checkpoint %s: %w", fname, err)
	}
	defer f.Close()
	r := bufio.NewReader(f)

	var magic [8]byte
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return err
	}
	if magic != checkpointMagic {
		return fmt.Errorf("checkpoint %s: bad magic", fname)
	}
	if err := binary.Read(r, binary.LittleEndian, &t.tNow); err != nil {
		return err
	}

	var n int64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return err
	}
	t.particles = make([]Particle, n)
	readField := func(set func(*Particle, float64)) error {
		for i := range t.particles {
			var v float64
			if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
				return err
			}
			set(&t.particles[i], v)
		}
		return nil
	}
	for c := 0; c < 3; c++ {
		c := c
		if err := readField(func(p *Particle, v float64) { p.X[c] = v; p.XInteract[c] = v }); err != nil {
			return err
		}
	}
	for c := 0; c < 3; c++ {
		c := c
		if err := readField(func(p *Particle, v float64) { p.D[c] = v }); err != nil {
			return err
		}
	}
	if err := readField(func(p *Particle, v float64) { p.Nu = v }); err != nil {
		return err
	}
	if err := readField(func(p *Particle, v float64) { p.E = v }); err != nil {
		return err
	}
	if err := readField(func(p *Particle, v float64) { p.T = v }); err != nil {
		return err
	}
	for i := range t.particles {
		var v int64
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return err
		}
		t.particles[i].Ind = int(v)
	}
	for i := range t.particles {
		var v int64
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return err
		}
		t.particles[i].Type = PType(v)
	}

	for _, bins := range [][]float64{t.opticalSpectrum.Bins(), t.gammaSpectrum.Bins()} {
		var nb int64
		if err := binary.Read(r, binary.LittleEndian, &nb); err != nil {
			return err
		}
		if int(nb) != len(bins) {
			return fmt.Errorf("checkpoint %s: spectrum shape mismatch", fname)
		}
		if err := binary.Read(r, binary.LittleEndian, bins); err != nil {
			return err
		}
	}

	var ns int64
	if err := binary.Read(r, binary.LittleEndian, &ns); err != nil {
		return err
	}
	state := make([]byte, ns)
	if _, err := io.ReadFull(r, state); err != nil {
		return err
	}
	return t.rngs.UnmarshalBinary(state)
}
