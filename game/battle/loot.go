package battle

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/kasuganosora/modforge/game/mod"
)

// Boundary selects how a drawn chance is compared against a rarity window.
type Boundary int

const (
	// BoundaryInclusiveUpper matches when min < chance <= max. Every chance in
	// [1,total] lands in exactly one window.
	BoundaryInclusiveUpper Boundary = iota
	// BoundaryStrict matches when min < chance < max. Chances equal to a
	// window's upper edge select nothing.
	BoundaryStrict
)

func (b Boundary) String() string {
	switch b {
	case BoundaryInclusiveUpper:
		return "inclusive_upper"
	case BoundaryStrict:
		return "strict"
	}
	return "unknown"
}

// ParseBoundary resolves a configured boundary mode.
func ParseBoundary(s string) (Boundary, error) {
	switch s {
	case "", "inclusive_upper", "inclusive":
		return BoundaryInclusiveUpper, nil
	case "strict":
		return BoundaryStrict, nil
	}
	return 0, fmt.Errorf("battle: unknown loot boundary %q", s)
}

// RarityWeight is one row of a drop table.
type RarityWeight struct {
	Rarity mod.Rarity `json:"rarity" yaml:"rarity"`
	Weight int        `json:"weight" yaml:"weight"`
}

// Selector draws rarities from weighted drop tables.
type Selector struct {
	Boundary Boundary

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSelector creates a Selector with its own random source.
func NewSelector(b Boundary) *Selector {
	return NewSelectorWithSource(b, rand.NewSource(time.Now().UnixNano()))
}

// NewSelectorWithSource creates a Selector drawing from src.
func NewSelectorWithSource(b Boundary, src rand.Source) *Selector {
	return &Selector{Boundary: b, rng: rand.New(src)}
}

// TotalWeight sums the positive weights of table.
func TotalWeight(table []RarityWeight) int {
	total := 0
	for _, w := range table {
		if w.Weight > 0 {
			total += w.Weight
		}
	}
	return total
}

// Select draws a chance uniformly in [1,total] and returns the matching rarity.
// An empty table or a zero total yields RarityNone.
func (s *Selector) Select(table []RarityWeight) mod.Rarity {
	total := TotalWeight(table)
	if total <= 0 {
		return mod.RarityNone
	}
	s.mu.Lock()
	chance := s.rng.Intn(total) + 1
	s.mu.Unlock()
	return s.SelectWithChance(table, chance)
}

// SelectWithChance walks the windows [min, min+weight) in table order and
// returns the first rarity whose window contains chance under the configured
// boundary. Non-positive weights occupy no window.
func (s *Selector) SelectWithChance(table []RarityWeight, chance int) mod.Rarity {
	min := 0
	for _, w := range table {
		if w.Weight <= 0 {
			continue
		}
		max := min + w.Weight
		if s.contains(min, max, chance) {
			return w.Rarity
		}
		min = max
	}
	return mod.RarityNone
}

func (s *Selector) contains(min, max, chance int) bool {
	if s.Boundary == BoundaryStrict {
		return min < chance && chance < max
	}
	return min < chance && chance <= max
}

// PickIndex returns a uniform index in [0,n), or -1 when n <= 0.
func (s *Selector) PickIndex(n int) int {
	if n <= 0 {
		return -1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

// IntRange returns a uniform integer in [min,max). When max <= min it returns min.
func (s *Selector) IntRange(min, max int) int {
	if max <= min {
		return min
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return min + s.rng.Intn(max-min)
}
