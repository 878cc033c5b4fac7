package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventGenerator_Deterministic(t *testing.T) {
	a := NewEventGenerator(42, 6)
	b := NewEventGenerator(42, 6)

	etaA, ptA := a.Jets(100, 2.5, 20, 1000)
	etaB, ptB := b.Jets(100, 2.5, 20, 1000)

	assert.Equal(t, etaA.Offsets(), etaB.Offsets())
	assert.Equal(t, etaA.Flat(), etaB.Flat())
	assert.Equal(t, ptA.Flat(), ptB.Flat())
}

func TestEventGenerator_SeedsDiffer(t *testing.T) {
	a := NewEventGenerator(1, 6).Counts(50)
	b := NewEventGenerator(2, 6).Counts(50)
	assert.NotEqual(t, a, b)
}

func TestEventGenerator_Reset(t *testing.T) {
	g := NewEventGenerator(7, 4)
	first := g.Counts(20)
	g.Counts(20)

	g.Reset()
	assert.Equal(t, first, g.Counts(20))
}

func TestEventGenerator_Ranges(t *testing.T) {
	g := NewEventGenerator(3, 8)
	eta, pt := g.Jets(500, 2.5, 20, 1000)

	require.True(t, eta.SameStructure(pt))
	assert.Equal(t, 500, eta.Len())

	for _, c := range eta.Counts() {
		assert.GreaterOrEqual(t, c, 0)
		assert.LessOrEqual(t, c, 8)
	}
	for _, v := range eta.Flat() {
		assert.GreaterOrEqual(t, v, -2.5)
		assert.Less(t, v, 2.5)
	}
	for _, v := range pt.Flat() {
		assert.GreaterOrEqual(t, v, 20.0)
		assert.Less(t, v, 1000.0)
	}
}

func TestEventGenerator_ZeroObjects(t *testing.T) {
	g := NewEventGenerator(5, -1)
	eta, _ := g.Jets(10, 2.5, 20, 1000)
	assert.Equal(t, 10, eta.Len())
	assert.Equal(t, 0, eta.NumElements())
}

func TestEventGenerator_ThreadSafe(t *testing.T) {
	g := NewEventGenerator(9, 3)
	const numGoroutines = 50

	var wg sync.WaitGroup
	totals := make([]int, numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			totals[i] = len(g.Counts(10))
		}(i)
	}
	wg.Wait()

	for _, n := range totals {
		assert.Equal(t, 10, n)
	}
}
