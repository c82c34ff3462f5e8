package common

import (
	"math/rand/v2"
	"sync"
)

// Rand is a *rand.Rand safe for concurrent use.
type Rand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRand wraps rng. A nil rng is replaced by a randomly seeded one.
func NewRand(rng *rand.Rand) *Rand {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Rand{rng: rng}
}

// Uniform returns a value in [lo, hi).
func (r *Rand) Uniform(lo, hi float64) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo + (hi-lo)*r.rng.Float64()
}

// IntRange returns a value in [lo, hi], both inclusive.
func (r *Rand) IntRange(lo, hi int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo + r.rng.IntN(hi-lo+1)
}

func (r *Rand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64()
}

func (r *Rand) Perm(n int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Perm(n)
}
