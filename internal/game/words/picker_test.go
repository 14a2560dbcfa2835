package words_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/impostor/internal/game/rng"
	"github.com/cory-johannsen/impostor/internal/game/words"
)

func bankWithSizes(t require.TestingT, sizes map[string]int) *words.Bank {
	cats := make(map[string][]string, len(sizes))
	for name, n := range sizes {
		list := make([]string, n)
		for i := range list {
			list[i] = fmt.Sprintf("%s-%d", name, i)
		}
		cats[name] = list
	}
	b, err := words.NewBank(cats)
	require.NoError(t, err)
	return b
}

func TestMinHistory(t *testing.T) {
	assert.Equal(t, 0, words.MinHistory(1))
	assert.Equal(t, 1, words.MinHistory(3))
	assert.Equal(t, 50, words.MinHistory(100))
	assert.Equal(t, 100, words.MinHistory(201))
	assert.Equal(t, 100, words.MinHistory(5000))
}

func TestHistoryCap(t *testing.T) {
	assert.Equal(t, 200, words.HistoryCap(10))
	assert.Equal(t, 200, words.HistoryCap(5000))
}

func TestPick_UnknownCategory(t *testing.T) {
	p := words.NewPicker(bankWithSizes(t, map[string]int{"General": 4}), rng.NewCryptoSource())
	_, _, err := p.Pick("Animals", nil)
	assert.ErrorIs(t, err, words.ErrInvalidCategory)
}

func TestPick_DoesNotMutateInputHistory(t *testing.T) {
	p := words.NewPicker(bankWithSizes(t, map[string]int{"General": 4}), rng.NewSequence(0))
	in := []int{0, 1, 2, 3}
	snapshot := append([]int(nil), in...)
	_, out, err := p.Pick("General", in)
	require.NoError(t, err)
	assert.Equal(t, snapshot, in)
	assert.NotEqual(t, in, out)
}

func TestPick_EmptyHistoryUsesFullList(t *testing.T) {
	// Sequence value 3 selects the fourth candidate; with no history that is index 3.
	p := words.NewPicker(bankWithSizes(t, map[string]int{"Animals": 5}), rng.NewSequence(3))
	idx, hist, err := p.Pick("Animals", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, idx)
	assert.Equal(t, []int{3}, hist)
}

func TestPick_ExcludesHistory(t *testing.T) {
	p := words.NewPicker(bankWithSizes(t, map[string]int{"General": 4}), rng.NewSequence(0))
	idx, hist, err := p.Pick("General", []int{0, 1, 3})
	require.NoError(t, err)
	assert.Equal(t, 2, idx)
	assert.Equal(t, []int{0, 1, 3, 2}, hist)
}

func TestPick_RecyclesWhenExhausted(t *testing.T) {
	// L=4 -> minHistory=2; history covers all, so only the last two stay excluded.
	p := words.NewPicker(bankWithSizes(t, map[string]int{"General": 4}), rng.NewSequence(0))
	idx, hist, err := p.Pick("General", []int{2, 0, 3, 1})
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, []int{3, 1, 0}, hist)
}

func TestPick_SingleWordCategory(t *testing.T) {
	p := words.NewPicker(bankWithSizes(t, map[string]int{"Solo": 1}), rng.NewCryptoSource())
	var hist []int
	for range 10 {
		idx, next, err := p.Pick("Solo", hist)
		require.NoError(t, err)
		assert.Equal(t, 0, idx)
		hist = next
	}
}

func TestPick_HistoryIsCapped(t *testing.T) {
	p := words.NewPicker(bankWithSizes(t, map[string]int{"Big": 500}), rng.NewCryptoSource())
	var hist []int
	for range 450 {
		_, next, err := p.Pick("Big", hist)
		require.NoError(t, err)
		hist = next
	}
	assert.Len(t, hist, words.HistoryCap(500))
}

// TestPick_NoRepeatWithinWindow_Property verifies that no index appears twice
// within any window of MinHistory(L) consecutive picks, and that every pick
// is inside [0, L).
func TestPick_NoRepeatWithinWindow_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		l := rapid.IntRange(1, 80).Draw(rt, "L")
		picks := rapid.IntRange(1, 400).Draw(rt, "picks")
		b := bankWithSizes(rt, map[string]int{"C": l})
		p := words.NewPicker(b, rng.NewCryptoSource())

		minHistory := words.MinHistory(l)
		var hist []int
		seq := make([]int, 0, picks)
		for range picks {
			idx, next, err := p.Pick("C", hist)
			if err != nil {
				rt.Fatalf("pick failed for L=%d: %v", l, err)
			}
			if idx < 0 || idx >= l {
				rt.Fatalf("index %d outside [0, %d)", idx, l)
			}
			if len(next) > words.HistoryCap(l) {
				rt.Fatalf("history length %d exceeds cap %d", len(next), words.HistoryCap(l))
			}
			seq = append(seq, idx)
			hist = next
		}

		for i := range seq {
			for j := i + 1; j < len(seq) && j <= i+minHistory; j++ {
				if seq[i] == seq[j] {
					rt.Fatalf("index %d repeated at picks %d and %d (minHistory=%d)", seq[i], i, j, minHistory)
				}
			}
		}
	})
}
