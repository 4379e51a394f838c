package humanoid

import (
	"math"
	"math/rand"
)

// PinkNoiseGenerator produces 1/f noise with the stochastic Voss-McCartney
// algorithm. Successive samples are correlated over long spans, which gives
// typing cadence its drifting rhythm.
type PinkNoiseGenerator struct {
	rng    *rand.Rand
	values []float64
	p      []float64
	sum    float64
	scale  float64
}

// NewPinkNoiseGenerator creates a generator with n white sources. n <= 0 means 12.
func NewPinkNoiseGenerator(rng *rand.Rand, n int) *PinkNoiseGenerator {
	if n <= 0 {
		n = 12
	}
	g := &PinkNoiseGenerator{
		rng:    rng,
		values: make([]float64, n),
		p:      make([]float64, n),
		scale:  1.0 / math.Sqrt(float64(n)),
	}

	// Source i changes with probability proportional to 2^-i.
	total := 0.0
	for i := range g.p {
		g.p[i] = math.Pow(2, float64(-i))
		total += g.p[i]
	}
	for i := range g.p {
		g.p[i] /= total
		g.values[i] = g.white()
		g.sum += g.values[i]
	}
	return g
}

func (g *PinkNoiseGenerator) white() float64 {
	return g.rng.Float64()*2.0 - 1.0
}

// Next returns the next sample, roughly in [-sqrt(n), sqrt(n)] / sqrt(n).
func (g *PinkNoiseGenerator) Next() float64 {
	r := g.rng.Float64()
	idx := len(g.p) - 1
	acc := 0.0
	for i, p := range g.p {
		acc += p
		if r < acc {
			idx = i
			break
		}
	}
	v := g.white()
	g.sum += v - g.values[idx]
	g.values[idx] = v
	return g.sum * g.scale
}
