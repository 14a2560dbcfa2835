package words

import (
	"fmt"

	"github.com/cory-johannsen/impostor/internal/game/rng"
)

const (
	// maxMinHistory bounds the exclusion window for large categories.
	maxMinHistory = 100
	// historyFloor is the smallest retained history length cap.
	historyFloor = 200
)

// MinHistory returns the number of most recent picks that stay excluded
// before any index of a category with n words may repeat.
//
// Postcondition: result == min(100, n/2).
func MinHistory(n int) int {
	return min(maxMinHistory, n/2)
}

// HistoryCap returns the maximum retained history length for a category with n words.
//
// Postcondition: result == max(MinHistory(n), 200).
func HistoryCap(n int) int {
	return max(MinHistory(n), historyFloor)
}

// Picker selects word indices that avoid recent repeats.
type Picker struct {
	bank *Bank
	src  rng.Source
}

// NewPicker creates a Picker over bank drawing from src.
//
// Precondition: bank and src must be non-nil.
func NewPicker(bank *Bank, src rng.Source) *Picker {
	return &Picker{bank: bank, src: src}
}

// Bank returns the word bank the picker draws from.
func (p *Picker) Bank() *Bank {
	return p.bank
}

// Pick chooses an index for category not present in history and returns it
// with the updated history. The history argument is never modified.
//
// When history already covers every index, it is cut down to its most recent
// MinHistory entries and the choice is retried against the shorter list.
//
// Postcondition: 0 <= idx < Len(category); the returned history ends with idx
// and has length <= HistoryCap(Len(category)). Returns ErrInvalidCategory if
// the category is unknown or empty.
func (p *Picker) Pick(category string, history []int) (int, []int, error) {
	n := p.bank.Len(category)
	if n == 0 {
		return 0, nil, fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}
	minHistory := MinHistory(n)

	hist := append([]int(nil), history...)
	candidates := candidatesFor(n, hist)
	if len(candidates) == 0 {
		// MinHistory(n) < n, so the shortened history always frees an index.
		hist = hist[len(hist)-min(minHistory, len(hist)):]
		candidates = candidatesFor(n, hist)
	}

	idx := candidates[p.src.Intn(len(candidates))]
	hist = append(hist, idx)
	if limit := HistoryCap(n); len(hist) > limit {
		hist = hist[len(hist)-limit:]
	}
	return idx, hist, nil
}

func candidatesFor(n int, history []int) []int {
	used := make(map[int]struct{}, len(history))
	for _, i := range history {
		used[i] = struct{}{}
	}
	out := make([]int, 0, n)
	for i := range n {
		if _, ok := used[i]; !ok {
			out = append(out, i)
		}
	}
	return out
}
