package rng_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/impostor/internal/game/rng"
)

func TestCryptoSource_Range(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 1000).Draw(rt, "n")
		v := rng.NewCryptoSource().Intn(n)
		assert.GreaterOrEqual(rt, v, 0)
		assert.Less(rt, v, n)
	})
}

func TestCryptoSource_PanicsOnNonPositive(t *testing.T) {
	src := rng.NewCryptoSource()
	assert.Panics(t, func() { src.Intn(0) })
	assert.Panics(t, func() { src.Intn(-3) })
}

func TestSequence_ReplaysModuloN(t *testing.T) {
	seq := rng.NewSequence(0, 5, 7)
	assert.Equal(t, 0, seq.Intn(4))
	assert.Equal(t, 1, seq.Intn(4))
	assert.Equal(t, 3, seq.Intn(4))
	// wraps around
	assert.Equal(t, 0, seq.Intn(10))
}

func TestNewSequence_RequiresValues(t *testing.T) {
	assert.Panics(t, func() { rng.NewSequence() })
}
