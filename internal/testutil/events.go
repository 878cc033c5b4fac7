// Package testutil provides deterministic inputs for lookup tests.
package testutil

import (
	"math/rand/v2"
	"sync"

	"github.com/roach88/corrlookup/internal/ragged"
)

// EventGenerator produces reproducible ragged collections: a number of
// events, each with a variable count of objects.
//
// The same seed always yields the same sequence of arrays, so batch results
// can be compared across engine configurations or snapshotted.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
// Concurrent callers interleave draws, so reproducibility holds only for a
// fixed call order.
type EventGenerator struct {
	mu      sync.Mutex
	seed    uint64
	maxObjs int
	rng     *rand.Rand
}

// NewEventGenerator creates a generator with at most maxObjs objects per
// event. Values below 0 are treated as 0.
func NewEventGenerator(seed uint64, maxObjs int) *EventGenerator {
	g := &EventGenerator{seed: seed, maxObjs: max(maxObjs, 0)}
	g.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return g
}

// Reset restarts the sequence from the seed.
func (g *EventGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rng = rand.New(rand.NewPCG(g.seed, g.seed^0x9e3779b97f4a7c15))
}

// Counts draws the object count of each of n events, uniform in
// [0, maxObjs].
func (g *EventGenerator) Counts(n int) []int {
	g.mu.Lock()
	defer g.mu.Unlock()
	counts := make([]int, n)
	for i := range counts {
		counts[i] = g.rng.IntN(g.maxObjs + 1)
	}
	return counts
}

// Uniform draws one value per object, uniform in [lo, hi), into an array
// with the given per-event counts.
func (g *EventGenerator) Uniform(counts []int, lo, hi float64) ragged.Array {
	g.mu.Lock()
	defer g.mu.Unlock()
	total := 0
	for _, c := range counts {
		total += c
	}
	content := make([]float64, total)
	for i := range content {
		content[i] = lo + (hi-lo)*g.rng.Float64()
	}
	return mustCounts(counts, content)
}

// Falling draws one value per object from a 1/x² spectrum starting at lo,
// truncated at hi.
func (g *EventGenerator) Falling(counts []int, lo, hi float64) ragged.Array {
	g.mu.Lock()
	defer g.mu.Unlock()
	total := 0
	for _, c := range counts {
		total += c
	}
	content := make([]float64, total)
	for i := range content {
		// inverse CDF of 1/x² on [lo, hi)
		u := g.rng.Float64()
		content[i] = lo * hi / (hi - u*(hi-lo))
	}
	return mustCounts(counts, content)
}

// Jets draws n events of jets as (eta, pt) arrays sharing one structure.
// eta is uniform in [-etaMax, etaMax); pt falls from ptMin to ptMax.
func (g *EventGenerator) Jets(n int, etaMax, ptMin, ptMax float64) (eta, pt ragged.Array) {
	counts := g.Counts(n)
	return g.Uniform(counts, -etaMax, etaMax), g.Falling(counts, ptMin, ptMax)
}

func mustCounts(counts []int, content []float64) ragged.Array {
	a, err := ragged.FromCounts(counts, content)
	if err != nil {
		panic(err)
	}
	return a
}
