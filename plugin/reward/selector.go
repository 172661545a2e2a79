// Package reward picks and hands out mining rewards.
package reward

import (
	"sync"
)

// Category is a kind of reward. The declaration order is the selection order.
type Category uint8

const (
	CategoryTiered Category = iota
	CategoryKey
	CategoryPlain
)

func (c Category) String() string {
	switch c {
	case CategoryTiered:
		return "tiered-item"
	case CategoryKey:
		return "currency-key"
	case CategoryPlain:
		return "plain-item"
	}
	return "unknown"
}

// Weight is the configured chance of one category.
type Weight struct {
	Category Category
	Enabled  bool
	Chance   float64
}

// Candidate is one weighted entry of a reward list.
type Candidate[T any] struct {
	Weight  float64
	Payload T
}

// Rand is the randomness used for selection. *rand.Rand from math/rand/v2
// satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// Selector draws from weighted lists. It holds no state besides its random
// source, which is guarded so a Selector can be shared.
type Selector struct {
	mu   sync.Mutex
	rand Rand
}

func NewSelector(r Rand) *Selector {
	return &Selector{rand: r}
}

func (s *Selector) float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rand.Float64()
}

func (s *Selector) intN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rand.IntN(n)
}

// Roll reports true with probability chance.
func (s *Selector) Roll(chance float64) bool {
	if chance <= 0 {
		return false
	}
	if chance >= 1 {
		return true
	}
	return s.float64() < chance
}

// Between returns an integer in [lo, hi].
func (s *Selector) Between(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + s.intN(hi-lo+1)
}

// SelectCategory picks an enabled category proportionally to its chance, in
// the order the weights are given. It returns false if no category has a
// positive chance.
func (s *Selector) SelectCategory(weights []Weight) (Category, bool) {
	candidates := make([]Candidate[Category], 0, len(weights))
	for _, w := range weights {
		if !w.Enabled {
			continue
		}
		candidates = append(candidates, Candidate[Category]{Weight: w.Chance, Payload: w.Category})
	}
	return Pick(s, candidates)
}

// Pick draws one payload proportionally to its weight. Non-positive weights
// are never drawn. If rounding leaves the roll past the last boundary, the
// last candidate is returned.
func Pick[T any](s *Selector, candidates []Candidate[T]) (T, bool) {
	var zero T
	total := 0.0
	for _, c := range candidates {
		if c.Weight > 0 {
			total += c.Weight
		}
	}
	if total <= 0 {
		return zero, false
	}
	roll := s.float64() * total
	cumulative := 0.0
	for _, c := range candidates {
		if c.Weight <= 0 {
			continue
		}
		cumulative += c.Weight
		if cumulative > roll {
			return c.Payload, true
		}
	}
	return candidates[len(candidates)-1].Payload, true
}
