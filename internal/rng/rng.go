// Package rng provides per-worker random streams whose state can be
// captured and restored for checkpointing.
package rng

import (
	"math"
	randv2 "math/rand/v2"
	"time"
)

// Stream is one independent random stream backed by a PCG source.
type Stream struct {
	src *randv2.PCG
	rnd *randv2.Rand
}

func newStream(seed1, seed2 uint64) *Stream {
	src := randv2.NewPCG(seed1, seed2)
	return &Stream{src: src, rnd: randv2.New(src)}
}

// Uniform draws from [0, 1).
func (s *Stream) Uniform() float64 { return s.rnd.Float64() }

// Exp draws a unit-mean exponential deviate, guarding the log argument.
func (s *Stream) Exp() float64 { return -math.Log(1 - s.rnd.Float64()) }

// MarshalBinary captures the stream state.
func (s *Stream) MarshalBinary() ([]byte, error) { return s.src.MarshalBinary() }

// UnmarshalBinary restores the stream state.
func (s *Stream) UnmarshalBinary(data []byte) error { return s.src.UnmarshalBinary(data) }

// Set owns one stream per worker thread plus one for the rank itself.
type Set struct {
	rank    *Stream
	workers []*Stream
}

// NewSet seeds nworkers+1 streams. With fixSeed the streams are a pure
// function of (seed, rank, worker id); otherwise the wall clock enters.
func NewSet(nworkers int, fixSeed bool, seed uint64, rankID int) *Set {
	base := seed
	if !fixSeed {
		base = uint64(time.Now().UnixNano())
	}
	set := &Set{rank: newStream(base, uint64(rankID)<<32)}
	for w := 0; w < nworkers; w++ {
		set.workers = append(set.workers, newStream(base, uint64(rankID)<<32|uint64(w+1)))
	}
	return set
}

// Rank is the stream for rank-serial sampling (emission counts, CDF draws).
func (s *Set) Rank() *Stream { return s.rank }

// Worker is the stream owned by worker w.
func (s *Set) Worker(w int) *Stream { return s.workers[w] }

func (s *Set) NumWorkers() int { return len(s.workers) }

// MarshalBinary concatenates all stream states with 2-byte lengths.
func (s *Set) MarshalBinary() ([]byte, error) {
	var out []byte
	all := append([]*Stream{s.rank}, s.workers...)
	for _, st := range all {
		b, err := st.MarshalBinary()
		if err != nil {
			return nil, err
		}
		out = append(out, byte(len(b)), byte(len(b)>>8))
		out = append(out, b...)
	}
	return out, nil
}

// UnmarshalBinary restores as many streams as the buffer holds.
func (s *Set) UnmarshalBinary(data []byte) error {
	all := append([]*Stream{s.rank}, s.workers...)
	for _, st := range all {
		if len(data) < 2 {
			return nil
		}
		n := int(data[0]) | int(data[1])<<8
		data = data[2:]
		if len(data) < n {
			return nil
		}
		if err := st.UnmarshalBinary(data[:n]); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}
