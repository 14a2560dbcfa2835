// Package rng provides the randomness abstraction used by word selection,
// impostor selection, and room code generation.
package rng

import (
	"crypto/rand"
	"math/big"
	"sync"
)

// Source is the randomness provider for all uniform draws in the game.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
}

// cryptoSource implements Source using crypto/rand.
//
// Invariant: All values produced are uniformly distributed in [0, n) for any n > 0.
type cryptoSource struct{}

// NewCryptoSource returns a Source backed by crypto/rand.
//
// Postcondition: Every value returned by Intn is in [0, n).
func NewCryptoSource() Source {
	return &cryptoSource{}
}

// Intn returns a uniformly distributed random int in [0, n).
//
// Precondition: n > 0. Panics with "rng: Intn called with n <= 0" if n <= 0.
// Panics with "rng: crypto/rand failure: <err>" if crypto/rand fails.
func (c *cryptoSource) Intn(n int) int {
	if n <= 0 {
		panic("rng: Intn called with n <= 0")
	}
	val, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("rng: crypto/rand failure: " + err.Error())
	}
	return int(val.Int64())
}

// Sequence replays a fixed list of values, reducing each modulo n.
// After the list is exhausted it starts over from the beginning.
// Intended for deterministic tests.
type Sequence struct {
	mu     sync.Mutex
	values []int
	pos    int
}

// NewSequence returns a Sequence that yields values in order.
//
// Precondition: values must be non-empty and non-negative.
func NewSequence(values ...int) *Sequence {
	if len(values) == 0 {
		panic("rng: NewSequence requires at least one value")
	}
	return &Sequence{values: values}
}

// Intn returns the next value of the sequence modulo n.
//
// Precondition: n > 0.
// Postcondition: the returned value is in [0, n).
func (s *Sequence) Intn(n int) int {
	if n <= 0 {
		panic("rng: Intn called with n <= 0")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.values[s.pos%len(s.values)]
	s.pos++
	return v % n
}
