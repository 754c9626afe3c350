package mod

import (
	"encoding/json"
	"math"
)

// DamageTable holds base damage per element. An element without an entry
// deals no damage. Values are never negative.
type DamageTable struct {
	values  [elementCount]float64
	present [elementCount]bool
}

// NewDamageTable builds a table from base values; negatives are floored at 0.
func NewDamageTable(base map[Element]float64) DamageTable {
	var t DamageTable
	for e, v := range base {
		if !e.Valid() {
			continue
		}
		t.values[e] = floorZero(v)
		t.present[e] = true
	}
	return t
}

// Get returns the value for e and whether e has an entry.
func (t DamageTable) Get(e Element) (float64, bool) {
	if !e.Valid() {
		return 0, false
	}
	return t.values[e], t.present[e]
}

// Has reports whether e has an entry.
func (t DamageTable) Has(e Element) bool {
	return e.Valid() && t.present[e]
}

// Len returns the number of elements with an entry.
func (t DamageTable) Len() int {
	n := 0
	for _, p := range t.present {
		if p {
			n++
		}
	}
	return n
}

// Each calls fn for every present element in declaration order.
func (t DamageTable) Each(fn func(e Element, v float64)) {
	for i, p := range t.present {
		if p {
			fn(Element(i), t.values[i])
		}
	}
}

// apply adds delta to e. An existing entry is floored at 0; a missing entry
// is only created by a non-negative delta.
func (t *DamageTable) apply(e Element, delta float64) {
	if !e.Valid() || math.IsNaN(delta) {
		return
	}
	if t.present[e] {
		t.values[e] = floorZero(t.values[e] + delta)
		return
	}
	if delta >= 0 {
		t.values[e] = delta
		t.present[e] = true
	}
}

// Map returns the present entries.
func (t DamageTable) Map() map[Element]float64 {
	out := make(map[Element]float64)
	t.Each(func(e Element, v float64) { out[e] = v })
	return out
}

func (t DamageTable) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Map())
}

func (t *DamageTable) UnmarshalJSON(b []byte) error {
	var in map[Element]float64
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*t = NewDamageTable(in)
	return nil
}

func floorZero(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}
