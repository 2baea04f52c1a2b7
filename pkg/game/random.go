package game

import "math/rand/v2"

// Random is the source of randomness for game events. It can be replaced in
// tests with a seeded or scripted implementation.
type Random interface {
	// Intn returns a uniform int in [0, n).
	Intn(n int) int
	// NormFloat64 returns a standard normal sample (mean 0, stddev 1).
	NormFloat64() float64
}

// pcgRandom is a Random backed by a PCG generator. It is not safe for
// concurrent use; give each session its own.
type pcgRandom struct {
	r *rand.Rand
}

// NewRandom returns a Random seeded with seed. The same seed always yields
// the same sequence.
func NewRandom(seed uint64) Random {
	return &pcgRandom{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// NewRandomFromEntropy returns a Random seeded from the runtime's entropy source.
func NewRandomFromEntropy() Random {
	return NewRandom(rand.Uint64())
}

func (p *pcgRandom) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return p.r.IntN(n)
}

func (p *pcgRandom) NormFloat64() float64 {
	return p.r.NormFloat64()
}
