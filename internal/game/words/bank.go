// Package words provides the read-only word bank and the anti-repeat picker
// that selects a word index for each round.
package words

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidCategory is returned when a category is unknown or has no words.
var ErrInvalidCategory = errors.New("invalid category")

// Bank is an immutable mapping from category name to an ordered list of
// distinct words.
//
// Invariant: every category holds at least one word and no duplicates.
// A Bank is never mutated after construction and is safe for concurrent use.
type Bank struct {
	categories map[string][]string
	names      []string
}

// NewBank builds a Bank from the given mapping, copying every list.
//
// Precondition: categories must be non-empty.
// Postcondition: Returns a Bank or an error describing the first invalid category.
func NewBank(categories map[string][]string) (*Bank, error) {
	if len(categories) == 0 {
		return nil, errors.New("word bank must contain at least one category")
	}
	b := &Bank{
		categories: make(map[string][]string, len(categories)),
		names:      make([]string, 0, len(categories)),
	}
	for name, list := range categories {
		if err := validateCategory(name, list); err != nil {
			return nil, err
		}
		b.categories[name] = append([]string(nil), list...)
		b.names = append(b.names, name)
	}
	sort.Strings(b.names)
	return b, nil
}

func validateCategory(name string, list []string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("category name must not be empty")
	}
	if len(list) == 0 {
		return fmt.Errorf("category %q has no words", name)
	}
	seen := make(map[string]struct{}, len(list))
	for i, w := range list {
		if strings.TrimSpace(w) == "" {
			return fmt.Errorf("category %q: word %d is empty", name, i)
		}
		if _, dup := seen[w]; dup {
			return fmt.Errorf("category %q: duplicate word %q", name, w)
		}
		seen[w] = struct{}{}
	}
	return nil
}

// Has reports whether category exists.
func (b *Bank) Has(category string) bool {
	_, ok := b.categories[category]
	return ok
}

// Len returns the number of words in category, or 0 if unknown.
func (b *Bank) Len(category string) int {
	return len(b.categories[category])
}

// Word returns the word at idx in category.
//
// Postcondition: Returns ErrInvalidCategory for an unknown category, or an
// error when idx is outside [0, Len(category)).
func (b *Bank) Word(category string, idx int) (string, error) {
	list, ok := b.categories[category]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}
	if idx < 0 || idx >= len(list) {
		return "", fmt.Errorf("word index %d out of range for category %q (len %d)", idx, category, len(list))
	}
	return list[idx], nil
}

// Categories returns the category names in sorted order.
func (b *Bank) Categories() []string {
	return append([]string(nil), b.names...)
}

// WordCount returns the total number of words across all categories.
func (b *Bank) WordCount() int {
	n := 0
	for _, list := range b.categories {
		n += len(list)
	}
	return n
}
