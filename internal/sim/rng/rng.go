// Package rng provides the explicit random source threaded through an
// accretion run. Every run owns its own Source; nothing here is global.
package rng

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"

	"golang.org/x/exp/rand"
)

// Source is the only randomness the accretion engine consumes.
type Source interface {
	// Float64 returns a uniform draw in [0, 1).
	Float64() float64
}

// PCG is a seeded, version-stable Source backed by the PCG generator.
type PCG struct {
	seed int64
	r    *rand.Rand
}

func New(seed int64) *PCG {
	return &PCG{
		seed: seed,
		r:    rand.New(rand.NewSource(uint64(seed))),
	}
}

func (p *PCG) Float64() float64 { return p.r.Float64() }

// Seed reports the seed the source was created with.
func (p *PCG) Seed() int64 { return p.seed }

// Uniform draws from [lo, hi).
func Uniform(src Source, lo, hi float64) float64 {
	return lo + (hi-lo)*src.Float64()
}

// NewSeed returns a high-entropy seed for runs started without one.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}
